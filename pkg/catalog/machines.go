package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// DeallocatedMachine detects machines that are stopped but still billed
// for their attached storage and reserved addresses.
type DeallocatedMachine struct{}

func (s *DeallocatedMachine) Name() string             { return "deallocated-machine" }
func (s *DeallocatedMachine) Family() inventory.Family { return inventory.FamilyVirtualMachine }
func (s *DeallocatedMachine) Severity() int            { return 80 }
func (s *DeallocatedMachine) CostFraction() float64    { return 1.0 }

func stoppedState(state string) bool {
	switch state {
	case "stopped", "deallocated", "terminated-pending":
		return true
	}
	return false
}

func (s *DeallocatedMachine) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if !stoppedState(rec.State) {
		return Match{}, false
	}
	signals := map[string]float64{}
	reason := "machine is stopped"
	if rec.AgeDays != nil {
		signals["age_days"] = *rec.AgeDays
		reason = fmt.Sprintf("machine has been stopped for %.0f days", *rec.AgeDays)
	}
	return Match{Reason: reason, Signals: signals}, true
}

// NeverStartedMachine detects machines with no recorded CPU history at
// all: provisioned, never used.
type NeverStartedMachine struct{}

func (s *NeverStartedMachine) Name() string             { return "never-started-machine" }
func (s *NeverStartedMachine) Family() inventory.Family { return inventory.FamilyVirtualMachine }
func (s *NeverStartedMachine) Severity() int            { return 70 }
func (s *NeverStartedMachine) CostFraction() float64    { return 1.0 }

func (s *NeverStartedMachine) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State == "running" {
		return Match{}, false
	}
	// A missing signal means the collector found no usage history, which
	// is distinct from a reported zero.
	if _, reported := rec.Signals[inventory.SignalCPUMaxPercent]; !reported {
		return Match{}, false
	}
	if rec.Signal(inventory.SignalCPUMaxPercent) != nil {
		return Match{}, false
	}
	return Match{
		Reason:  "machine has no usage history since provisioning",
		Signals: map[string]float64{},
	}, true
}

// IdleMachine detects running machines whose peak CPU stays under the
// configured idle threshold.
type IdleMachine struct{}

func (s *IdleMachine) Name() string             { return "idle-machine" }
func (s *IdleMachine) Family() inventory.Family { return inventory.FamilyVirtualMachine }
func (s *IdleMachine) Severity() int            { return 60 }
func (s *IdleMachine) CostFraction() float64    { return 1.0 }

func (s *IdleMachine) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State != "running" {
		return Match{}, false
	}
	cpu := rec.Signal(inventory.SignalCPUMaxPercent)
	if cpu == nil || *cpu >= rule.IdleCPUPercent {
		return Match{}, false
	}
	return Match{
		Reason:  fmt.Sprintf("max CPU %.2f%% stayed below the %.1f%% idle threshold", *cpu, rule.IdleCPUPercent),
		Signals: map[string]float64{inventory.SignalCPUMaxPercent: *cpu},
	}, true
}

// UntaggedMachine flags machines missing the tenant's required tags.
type UntaggedMachine struct{}

func (s *UntaggedMachine) Name() string             { return "untagged-machine" }
func (s *UntaggedMachine) Family() inventory.Family { return inventory.FamilyVirtualMachine }
func (s *UntaggedMachine) Severity() int            { return 40 }
func (s *UntaggedMachine) CostFraction() float64    { return 0 }

func (s *UntaggedMachine) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if len(rule.RequiredTags) == 0 {
		return Match{}, false
	}
	var missing []string
	for _, key := range rule.RequiredTags {
		if !rec.HasTag(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return Match{}, false
	}
	sort.Strings(missing)
	return Match{
		Reason:  fmt.Sprintf("missing required tags: %s", strings.Join(missing, ", ")),
		Signals: map[string]float64{"missing_tags": float64(len(missing))},
	}, true
}
