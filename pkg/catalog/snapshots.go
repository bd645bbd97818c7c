package catalog

import (
	"fmt"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// OrphanedSnapshot detects snapshots whose source volume no longer
// exists. Collectors normalize that condition into the "orphaned" state.
type OrphanedSnapshot struct{}

func (s *OrphanedSnapshot) Name() string             { return "orphaned-snapshot" }
func (s *OrphanedSnapshot) Family() inventory.Family { return inventory.FamilyDiskSnapshot }
func (s *OrphanedSnapshot) Severity() int            { return 75 }
func (s *OrphanedSnapshot) CostFraction() float64    { return 1.0 }

func (s *OrphanedSnapshot) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State != "orphaned" {
		return Match{}, false
	}
	signals := map[string]float64{}
	reason := "source volume of this snapshot no longer exists"
	if rec.AgeDays != nil {
		signals["age_days"] = *rec.AgeDays
	}
	return Match{Reason: reason, Signals: signals}, true
}

// AgedSnapshot flags snapshots older than the family's minimum age, which
// doubles as the retention horizon for this family.
type AgedSnapshot struct{}

func (s *AgedSnapshot) Name() string             { return "aged-snapshot" }
func (s *AgedSnapshot) Family() inventory.Family { return inventory.FamilyDiskSnapshot }
func (s *AgedSnapshot) Severity() int            { return 45 }
func (s *AgedSnapshot) CostFraction() float64    { return 1.0 }

func (s *AgedSnapshot) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.AgeDays == nil {
		return Match{}, false
	}
	// The minimum-age gate enforces the retention horizon; here we only
	// need to report the observed age.
	return Match{
		Reason:  fmt.Sprintf("snapshot is %.0f days old, past the %d-day retention horizon", *rec.AgeDays, rule.MinAgeDays),
		Signals: map[string]float64{"age_days": *rec.AgeDays},
	}, true
}
