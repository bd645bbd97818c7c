package catalog

import (
	"fmt"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// StaleMultipartUploads detects buckets accumulating incomplete multipart
// uploads, which bill for storage nobody can read. Only the upload debris
// is optimizable, not the bucket itself.
type StaleMultipartUploads struct{}

func (s *StaleMultipartUploads) Name() string             { return "stale-multipart-uploads" }
func (s *StaleMultipartUploads) Family() inventory.Family { return inventory.FamilyObjectBucket }
func (s *StaleMultipartUploads) Severity() int            { return 40 }
func (s *StaleMultipartUploads) CostFraction() float64    { return 0.1 }

func (s *StaleMultipartUploads) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	stale := rec.Signal(inventory.SignalStaleUploadCount)
	if stale == nil || *stale <= 0 {
		return Match{}, false
	}
	return Match{
		Reason:  fmt.Sprintf("%.0f stale multipart uploads with no abort lifecycle", *stale),
		Signals: map[string]float64{inventory.SignalStaleUploadCount: *stale},
	}, true
}

// EmptyBucket detects buckets that hold no objects at all.
type EmptyBucket struct{}

func (s *EmptyBucket) Name() string             { return "empty-bucket" }
func (s *EmptyBucket) Family() inventory.Family { return inventory.FamilyObjectBucket }
func (s *EmptyBucket) Severity() int            { return 35 }
func (s *EmptyBucket) CostFraction() float64    { return 1.0 }

func (s *EmptyBucket) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	objects := rec.Signal(inventory.SignalObjectCount)
	if objects == nil || *objects > 0 {
		return Match{}, false
	}
	signals := map[string]float64{inventory.SignalObjectCount: 0}
	reason := "bucket contains no objects"
	if rec.AgeDays != nil {
		signals["age_days"] = *rec.AgeDays
		reason = fmt.Sprintf("bucket has held no objects for its %.0f-day lifetime", *rec.AgeDays)
	}
	return Match{Reason: reason, Signals: signals}, true
}
