package rules

import (
	"errors"
	"testing"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

func iptr(v int) *int         { return &v }
func bptr(v bool) *bool       { return &v }
func fptr(v float64) *float64 { return &v }

func baseRule() DetectionRule {
	return DetectionRule{
		Enabled:                true,
		MinAgeDays:             7,
		ConfidenceMediumDays:   14,
		ConfidenceHighDays:     30,
		ConfidenceCriticalDays: 90,
		IdleCPUPercent:         5.0,
		RequestFloor:           10,
		ConnectionFloor:        0,
		IOPSFloor:              100,
		StaleUploadDays:        7,
	}
}

func TestMergeOverlaysFieldByField(t *testing.T) {
	def := baseRule()
	merged := Merge(def, Override{MinAgeDays: iptr(21)})

	if merged.MinAgeDays != 21 {
		t.Errorf("expected overridden MinAgeDays 21, got %d", merged.MinAgeDays)
	}

	// Every other field inherits the default.
	merged.MinAgeDays = def.MinAgeDays
	if merged.Enabled != def.Enabled ||
		merged.ConfidenceMediumDays != def.ConfidenceMediumDays ||
		merged.ConfidenceHighDays != def.ConfidenceHighDays ||
		merged.ConfidenceCriticalDays != def.ConfidenceCriticalDays ||
		merged.IdleCPUPercent != def.IdleCPUPercent ||
		merged.RequestFloor != def.RequestFloor ||
		merged.ConnectionFloor != def.ConnectionFloor ||
		merged.IOPSFloor != def.IOPSFloor ||
		merged.StaleUploadDays != def.StaleUploadDays {
		t.Errorf("merge touched fields beyond the override: %+v vs %+v", merged, def)
	}
}

func TestMergeDisableIsAnOverride(t *testing.T) {
	merged := Merge(baseRule(), Override{Enabled: bptr(false)})
	if merged.Enabled {
		t.Error("expected Enabled=false after disable override")
	}
}

func TestValidateThresholdOrdering(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*DetectionRule)
		wantErr bool
	}{
		{"valid", func(r *DetectionRule) {}, false},
		{"equal tiers allowed", func(r *DetectionRule) {
			r.ConfidenceMediumDays = 30
			r.ConfidenceHighDays = 30
			r.ConfidenceCriticalDays = 30
		}, false},
		{"high below medium", func(r *DetectionRule) { r.ConfidenceHighDays = 5 }, true},
		{"critical below high", func(r *DetectionRule) { r.ConfidenceCriticalDays = 10 }, true},
		{"negative min age", func(r *DetectionRule) { r.MinAgeDays = -1 }, true},
		{"cpu over 100", func(r *DetectionRule) { r.IdleCPUPercent = 120 }, true},
		{"negative floor", func(r *DetectionRule) { r.RequestFloor = -1 }, true},
		{"negative iops floor", func(r *DetectionRule) { r.IOPSFloor = -5 }, true},
		{"negative stale window", func(r *DetectionRule) { r.StaleUploadDays = -1 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := baseRule()
			tc.mutate(&r)
			err := Validate(inventory.FamilyBlockVolume, r)
			if tc.wantErr {
				var cerr *ConfigurationError
				if !errors.As(err, &cerr) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
