package catalog

import (
	"testing"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

func fptr(v float64) *float64 { return &v }

func TestBuiltinCoversEveryFamily(t *testing.T) {
	c := Builtin()
	for _, family := range inventory.Families() {
		if len(c.Scenarios(family)) == 0 {
			t.Errorf("family %s has no scenarios", family)
		}
		if _, ok := c.Defaults()[family]; !ok {
			t.Errorf("family %s has no default rule", family)
		}
	}
	if c.Exclusions() == nil {
		t.Error("builtin catalog has no exclusion registry")
	}
}

func TestScenarioOrderIsStable(t *testing.T) {
	first := Builtin()
	second := Builtin()
	for _, family := range inventory.Families() {
		a := first.Scenarios(family)
		b := second.Scenarios(family)
		if len(a) != len(b) {
			t.Fatalf("scenario count differs for %s", family)
		}
		for i := range a {
			if a[i].Name() != b[i].Name() {
				t.Errorf("scenario order differs for %s at %d: %s vs %s",
					family, i, a[i].Name(), b[i].Name())
			}
		}
	}
}

func TestMultipleScenariosCanMatchOneRecord(t *testing.T) {
	c := Builtin()
	rule := c.Defaults()[inventory.FamilyVirtualMachine]
	rule.RequiredTags = []string{"owner"}

	var nilCPU *float64
	rec := inventory.Record{
		IdentityKey: "aws/us-east-1/i-1",
		Family:      inventory.FamilyVirtualMachine,
		State:       "stopped",
		AgeDays:     fptr(40),
		Signals:     map[string]*float64{inventory.SignalCPUMaxPercent: nilCPU},
	}

	var matched []string
	for _, s := range c.Scenarios(inventory.FamilyVirtualMachine) {
		if _, ok := s.Evaluate(rec, rule); ok {
			matched = append(matched, s.Name())
		}
	}

	want := map[string]bool{
		"deallocated-machine":   true,
		"never-started-machine": true,
		"untagged-machine":      true,
	}
	if len(matched) != len(want) {
		t.Fatalf("expected %d matches, got %v", len(want), matched)
	}
	for _, name := range matched {
		if !want[name] {
			t.Errorf("unexpected match %s", name)
		}
	}
}

func TestUnattachedVolumePredicate(t *testing.T) {
	s := &UnattachedVolume{}
	rule := rules.DetectionRule{Enabled: true, MinAgeDays: 7}

	attached := inventory.Record{Family: inventory.FamilyBlockVolume, State: "in-use"}
	if _, ok := s.Evaluate(attached, rule); ok {
		t.Error("attached volume must not match")
	}

	unattached := inventory.Record{Family: inventory.FamilyBlockVolume, State: "available", AgeDays: fptr(35)}
	m, ok := s.Evaluate(unattached, rule)
	if !ok {
		t.Fatal("unattached volume must match")
	}
	if m.Signals["age_days"] != 35 {
		t.Errorf("match should carry the observed age, got %v", m.Signals)
	}
	if m.Reason == "" {
		t.Error("match must carry a rendered reason")
	}
}

func TestPremiumVolumeRespectsIOPSFloor(t *testing.T) {
	s := &PremiumVolumeUnderused{}
	rec := inventory.Record{
		Family:  inventory.FamilyBlockVolume,
		State:   "in-use",
		Size:    inventory.SizeAttributes{Tier: "io2"},
		Signals: map[string]*float64{inventory.SignalIOPSMax: fptr(150)},
	}

	if _, ok := s.Evaluate(rec, rules.DetectionRule{IOPSFloor: 100}); ok {
		t.Error("volume peaking above the floor must not match")
	}
	if _, ok := s.Evaluate(rec, rules.DetectionRule{IOPSFloor: 200}); !ok {
		t.Error("volume peaking below a raised floor must match")
	}

	rec.Signals[inventory.SignalIOPSMax] = nil
	if _, ok := s.Evaluate(rec, rules.DetectionRule{IOPSFloor: 200}); ok {
		t.Error("unknown IOPS must not match")
	}
}

func TestIdleMachineRespectsThreshold(t *testing.T) {
	s := &IdleMachine{}
	rule := rules.DetectionRule{IdleCPUPercent: 5.0}

	busy := inventory.Record{State: "running", Signals: map[string]*float64{inventory.SignalCPUMaxPercent: fptr(42)}}
	if _, ok := s.Evaluate(busy, rule); ok {
		t.Error("busy machine must not match")
	}

	idle := inventory.Record{State: "running", Signals: map[string]*float64{inventory.SignalCPUMaxPercent: fptr(1.5)}}
	if _, ok := s.Evaluate(idle, rule); !ok {
		t.Error("idle machine must match")
	}

	// Unknown CPU is not evidence of idleness.
	unknown := inventory.Record{State: "running"}
	if _, ok := s.Evaluate(unknown, rule); ok {
		t.Error("machine without CPU signal must not match")
	}
}

func TestNoBackendTargetsNilSignal(t *testing.T) {
	s := &NoBackendTargets{}
	rec := inventory.Record{Family: inventory.FamilyLoadBalancer}
	if _, ok := s.Evaluate(rec, rules.DetectionRule{}); ok {
		t.Error("missing backend signal must not match")
	}

	rec.Signals = map[string]*float64{inventory.SignalBackendTargets: fptr(0)}
	m, ok := s.Evaluate(rec, rules.DetectionRule{})
	if !ok {
		t.Fatal("zero backends must match")
	}
	if m.Reason != "load balancer has 0 backend targets" {
		t.Errorf("unexpected reason: %q", m.Reason)
	}
}
