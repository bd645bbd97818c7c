package catalog

import (
	"fmt"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// UnattachedVolume detects block volumes not attached to any machine.
type UnattachedVolume struct{}

func (s *UnattachedVolume) Name() string             { return "unattached-volume" }
func (s *UnattachedVolume) Family() inventory.Family { return inventory.FamilyBlockVolume }
func (s *UnattachedVolume) Severity() int            { return 90 }
func (s *UnattachedVolume) CostFraction() float64    { return 1.0 }

func (s *UnattachedVolume) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State != "available" {
		return Match{}, false
	}

	signals := map[string]float64{}
	reason := "volume is not attached to any machine"
	if rec.AgeDays != nil {
		signals["age_days"] = *rec.AgeDays
		reason = fmt.Sprintf("volume has been unattached for %.0f days", *rec.AgeDays)
	}
	return Match{Reason: reason, Signals: signals}, true
}

// PremiumVolumeUnderused detects provisioned-IOPS volumes whose observed
// peak IOPS would fit a cheaper general-purpose tier. Only the tier delta
// is optimizable, so the cost fraction is partial.
type PremiumVolumeUnderused struct{}

func (s *PremiumVolumeUnderused) Name() string             { return "premium-volume-underused" }
func (s *PremiumVolumeUnderused) Family() inventory.Family { return inventory.FamilyBlockVolume }
func (s *PremiumVolumeUnderused) Severity() int            { return 50 }
func (s *PremiumVolumeUnderused) CostFraction() float64    { return 0.4 }

// premiumTiers are volume tiers billed for provisioned performance.
var premiumTiers = map[string]bool{
	"io1":         true,
	"io2":         true,
	"premium-ssd": true,
}

func (s *PremiumVolumeUnderused) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State != "in-use" || !premiumTiers[rec.Size.Tier] {
		return Match{}, false
	}
	iops := rec.Signal(inventory.SignalIOPSMax)
	if iops == nil || *iops >= rule.IOPSFloor {
		return Match{}, false
	}

	return Match{
		Reason:  fmt.Sprintf("premium %s volume peaked at %.0f IOPS; a general-purpose tier would suffice", rec.Size.Tier, *iops),
		Signals: map[string]float64{inventory.SignalIOPSMax: *iops},
	}, true
}
