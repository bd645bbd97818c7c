package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudvigil/cloudvigil/pkg/catalog"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

func fptr(v float64) *float64 { return &v }

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestCompileAndMatch(t *testing.T) {
	e := testEngine(t)

	s, err := e.Compile(CustomScenario{
		Name:         "prod-volume-without-owner",
		TargetFamily: inventory.FamilyBlockVolume,
		Condition:    `state == 'available' && age_days > 30.0 && !('owner' in tags)`,
		Reason:       "unattached production volume has no owner tag",
		Severity:     70,
		CostFraction: 1.0,
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	matching := inventory.Record{
		Family: inventory.FamilyBlockVolume, State: "available",
		AgeDays: fptr(45), Tags: map[string]string{"env": "prod"},
	}
	m, ok := s.Evaluate(matching, rules.DetectionRule{})
	if !ok {
		t.Fatal("expected match")
	}
	if m.Reason != "unattached production volume has no owner tag" {
		t.Errorf("unexpected reason %q", m.Reason)
	}

	owned := matching
	owned.Tags = map[string]string{"owner": "platform"}
	if _, ok := s.Evaluate(owned, rules.DetectionRule{}); ok {
		t.Error("owned volume must not match")
	}
}

func TestCompileRejectsBadExpression(t *testing.T) {
	e := testEngine(t)
	_, err := e.Compile(CustomScenario{
		Name:         "broken",
		TargetFamily: inventory.FamilyBlockVolume,
		Condition:    `state ==`,
		Severity:     50,
	})
	if err == nil {
		t.Fatal("expected compilation error")
	}
}

func TestCompileRejectsOutOfRangeFields(t *testing.T) {
	e := testEngine(t)
	if _, err := e.Compile(CustomScenario{Name: "x", Condition: "true", Severity: 150}); err == nil {
		t.Error("severity above 100 must be rejected")
	}
	if _, err := e.Compile(CustomScenario{Name: "x", Condition: "true", Severity: 50, CostFraction: 2}); err == nil {
		t.Error("cost fraction above 1 must be rejected")
	}
	if _, err := e.Compile(CustomScenario{Condition: "true"}); err == nil {
		t.Error("unnamed scenario must be rejected")
	}
}

func TestSignalsAreVisible(t *testing.T) {
	e := testEngine(t)
	s, err := e.Compile(CustomScenario{
		Name:         "cold-machine",
		TargetFamily: inventory.FamilyVirtualMachine,
		Condition:    `'cpu_max_percent' in signals && signals['cpu_max_percent'] < 2.0`,
		Severity:     60,
		CostFraction: 1.0,
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	rec := inventory.Record{
		Family:  inventory.FamilyVirtualMachine,
		State:   "running",
		Signals: map[string]*float64{inventory.SignalCPUMaxPercent: fptr(0.8)},
	}
	if _, ok := s.Evaluate(rec, rules.DetectionRule{}); !ok {
		t.Error("low-CPU machine must match")
	}

	// Nil signal values stay invisible; the expression's existence guard
	// keeps it from matching.
	rec.Signals = map[string]*float64{inventory.SignalCPUMaxPercent: nil}
	if _, ok := s.Evaluate(rec, rules.DetectionRule{}); ok {
		t.Error("unknown CPU must not match")
	}
}

func TestUnknownAgeHandling(t *testing.T) {
	e := testEngine(t)
	s, err := e.Compile(CustomScenario{
		Name:         "aged-or-unknown",
		TargetFamily: inventory.FamilyBlockVolume,
		Condition:    `!age_known || age_days > 10.0`,
		Severity:     40,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Evaluate(inventory.Record{}, rules.DetectionRule{}); !ok {
		t.Error("unknown age must satisfy !age_known")
	}
	if _, ok := s.Evaluate(inventory.Record{AgeDays: fptr(5)}, rules.DetectionRule{}); ok {
		t.Error("young known age must not match")
	}
}

func TestLoadFileIntoCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	doc := `
- name: unowned-volume
  resource_family: block-storage-volume
  condition: "state == 'available' && !('owner' in tags)"
  reason: available volume has no owner tag
  severity: 45
  cost_fraction: 1.0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	specs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "unowned-volume" {
		t.Fatalf("unexpected specs: %+v", specs)
	}

	scenarios, err := testEngine(t).CompileAll(specs)
	if err != nil {
		t.Fatalf("CompileAll failed: %v", err)
	}

	cat := catalog.Builtin()
	for _, s := range scenarios {
		cat.Register(s)
	}

	rec := inventory.Record{
		Family: inventory.FamilyBlockVolume, State: "available",
		Tags: map[string]string{"env": "prod"},
	}
	var matched bool
	for _, s := range cat.Scenarios(inventory.FamilyBlockVolume) {
		if s.Name() != "unowned-volume" {
			continue
		}
		_, matched = s.Evaluate(rec, rules.DetectionRule{})
	}
	if !matched {
		t.Error("registered custom scenario must match the unowned volume")
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file must be an error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed YAML must be an error")
	}
}

func TestCompileAllFailsAsUnit(t *testing.T) {
	e := testEngine(t)
	_, err := e.CompileAll([]CustomScenario{
		{Name: "ok", Condition: "true", Severity: 10},
		{Name: "bad", Condition: "state ==", Severity: 10},
	})
	if err == nil {
		t.Fatal("batch with one bad scenario must be rejected")
	}
}
