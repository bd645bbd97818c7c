package detect

import (
	"context"
	"testing"

	"github.com/cloudvigil/cloudvigil/pkg/catalog"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/pricing"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

func fptr(v float64) *float64 { return &v }

func volumeRecord(age *float64) inventory.Record {
	return inventory.Record{
		IdentityKey: "aws/us-east-1/vol-1",
		Family:      inventory.FamilyBlockVolume,
		Provider:    inventory.ProviderAWS,
		Region:      "us-east-1",
		NativeID:    "vol-1",
		State:       "available",
		AgeDays:     age,
		Size:        inventory.SizeAttributes{CapacityGB: 100, Tier: "gp3"},
	}
}

func newEvaluator(prices pricing.Source) *Evaluator {
	return NewEvaluator(catalog.Builtin(), prices, nil)
}

func TestYoungResourceYieldsNothing(t *testing.T) {
	e := newEvaluator(pricing.DefaultStaticSource())
	rule := catalog.Builtin().Defaults()[inventory.FamilyBlockVolume]

	got := e.Evaluate(context.Background(), volumeRecord(fptr(0)), rule)
	if len(got) != 0 {
		t.Fatalf("volume younger than min_age_days must yield nothing, got %v", got)
	}
}

func TestAgedVolumeYieldsHighConfidenceFinding(t *testing.T) {
	e := newEvaluator(pricing.DefaultStaticSource())
	rule := catalog.Builtin().Defaults()[inventory.FamilyBlockVolume]

	got := e.Evaluate(context.Background(), volumeRecord(fptr(35)), rule)
	if len(got) != 1 {
		t.Fatalf("expected exactly one detection, got %d", len(got))
	}
	d := got[0]
	if d.Scenario != "unattached-volume" {
		t.Errorf("unexpected scenario %s", d.Scenario)
	}
	if d.Confidence != ConfidenceHigh {
		t.Errorf("age 35 against high threshold 30 must grade high, got %s", d.Confidence)
	}
	if d.MonthlyWaste == nil || *d.MonthlyWaste != 8.0 {
		t.Errorf("expected monthly waste 8.0 for 100GB gp3, got %v", d.MonthlyWaste)
	}
}

func TestDisabledFamilyYieldsNothing(t *testing.T) {
	e := newEvaluator(pricing.DefaultStaticSource())
	rule := catalog.Builtin().Defaults()[inventory.FamilyBlockVolume]
	rule.Enabled = false

	if got := e.Evaluate(context.Background(), volumeRecord(fptr(35)), rule); len(got) != 0 {
		t.Fatalf("disabled family must yield nothing, got %v", got)
	}
}

type fixedSource struct{ price float64 }

func (f fixedSource) MonthlyCost(ctx context.Context, family inventory.Family, region string, size inventory.SizeAttributes) (float64, error) {
	return f.price, nil
}

func TestAlreadyWastedProratesAt30DayMonth(t *testing.T) {
	e := newEvaluator(fixedSource{price: 30})
	rule := catalog.Builtin().Defaults()[inventory.FamilyBlockVolume]

	got := e.Evaluate(context.Background(), volumeRecord(fptr(15)), rule)
	if len(got) != 1 {
		t.Fatalf("expected one detection, got %d", len(got))
	}
	if got[0].AlreadyWasted == nil || *got[0].AlreadyWasted != 15.0 {
		t.Errorf("30/month over 15 days must accrue 15.0, got %v", got[0].AlreadyWasted)
	}
}

type unpricedSource struct{}

func (unpricedSource) MonthlyCost(ctx context.Context, family inventory.Family, region string, size inventory.SizeAttributes) (float64, error) {
	return 0, pricing.ErrPriceUnavailable
}

func TestMissingPriceKeepsDetection(t *testing.T) {
	e := newEvaluator(unpricedSource{})
	rule := catalog.Builtin().Defaults()[inventory.FamilyBlockVolume]

	got := e.Evaluate(context.Background(), volumeRecord(fptr(35)), rule)
	if len(got) != 1 {
		t.Fatalf("missing price must not suppress the detection, got %d", len(got))
	}
	if got[0].MonthlyWaste != nil || got[0].AlreadyWasted != nil {
		t.Error("cost fields must stay nil without a price")
	}
}

func TestUnknownAgeGradesLowAndPassesGate(t *testing.T) {
	e := newEvaluator(unpricedSource{})
	rule := catalog.Builtin().Defaults()[inventory.FamilyBlockVolume]

	got := e.Evaluate(context.Background(), volumeRecord(nil), rule)
	if len(got) != 1 {
		t.Fatalf("unknown age must pass the min-age gate, got %d detections", len(got))
	}
	if got[0].Confidence != ConfidenceLow {
		t.Errorf("unknown age must grade low, got %s", got[0].Confidence)
	}
}

func TestConfidenceIsMonotonicInAge(t *testing.T) {
	rule := rules.DetectionRule{
		Enabled:                true,
		ConfidenceMediumDays:   14,
		ConfidenceHighDays:     30,
		ConfidenceCriticalDays: 90,
	}

	prev := ConfidenceLow
	for _, age := range []float64{1, 13, 14, 29, 30, 89, 90, 400} {
		got := confidenceFor(fptr(age), rule)
		if got.Rank() < prev.Rank() {
			t.Fatalf("confidence dropped from %s to %s at age %g", prev, got, age)
		}
		prev = got
	}

	cases := []struct {
		age  float64
		want Confidence
	}{
		{13, ConfidenceLow},
		{14, ConfidenceMedium},
		{30, ConfidenceHigh},
		{90, ConfidenceCritical},
	}
	for _, tc := range cases {
		if got := confidenceFor(fptr(tc.age), rule); got != tc.want {
			t.Errorf("age %g: expected %s, got %s", tc.age, tc.want, got)
		}
	}
}

func TestCostFractionScalesWaste(t *testing.T) {
	e := newEvaluator(fixedSource{price: 120})
	rule := catalog.Builtin().Defaults()[inventory.FamilyRelationalDatabase]

	rec := inventory.Record{
		IdentityKey: "aws/us-east-1/db-1",
		Family:      inventory.FamilyRelationalDatabase,
		Provider:    inventory.ProviderAWS,
		Region:      "us-east-1",
		NativeID:    "db-1",
		State:       "stopped",
		AgeDays:     fptr(20),
		Size:        inventory.SizeAttributes{Engine: "postgres"},
	}

	got := e.Evaluate(context.Background(), rec, rule)
	if len(got) == 0 {
		t.Fatal("stopped database must match")
	}
	var found bool
	for _, d := range got {
		if d.Scenario == "stopped-database" {
			found = true
			if d.MonthlyWaste == nil || *d.MonthlyWaste != 72.0 {
				t.Errorf("stopped database keeps storage billing: expected 72.0, got %v", d.MonthlyWaste)
			}
		}
	}
	if !found {
		t.Error("stopped-database scenario missing from detections")
	}
}
