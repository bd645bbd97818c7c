package inventory

import (
	"errors"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestNormalizeComputesStableIdentityKey(t *testing.T) {
	p := Payload{
		Family:   FamilyBlockVolume,
		Provider: ProviderAWS,
		Region:   "us-east-1",
		NativeID: "vol-0abc123",
		State:    "available",
		AgeDays:  fptr(12),
		Tags:     map[string]string{"Name": "scratch"},
	}

	first, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	// Mutable attributes must not influence the key.
	p.Tags = map[string]string{"Name": "renamed"}
	p.State = "in-use"
	second, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if first.IdentityKey != second.IdentityKey {
		t.Errorf("identity key changed across scans: %q vs %q", first.IdentityKey, second.IdentityKey)
	}
	if first.IdentityKey != "aws/us-east-1/vol-0abc123" {
		t.Errorf("unexpected identity key: %q", first.IdentityKey)
	}
}

func TestNormalizeRejectsMissingIdentityFields(t *testing.T) {
	cases := []struct {
		name  string
		p     Payload
		field string
	}{
		{
			name:  "missing native id",
			p:     Payload{Family: FamilyBlockVolume, Provider: ProviderAWS, Region: "us-east-1"},
			field: "native_id",
		},
		{
			name:  "missing family",
			p:     Payload{Provider: ProviderAWS, Region: "us-east-1", NativeID: "vol-1"},
			field: "resource_family",
		},
		{
			name:  "missing region",
			p:     Payload{Family: FamilyBlockVolume, Provider: ProviderAWS, NativeID: "vol-1"},
			field: "region",
		},
		{
			name:  "bad provider",
			p:     Payload{Family: FamilyBlockVolume, Provider: "dialup", Region: "us-east-1", NativeID: "vol-1"},
			field: "provider",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.p)
			var nerr *NormalizationError
			if !errors.As(err, &nerr) {
				t.Fatalf("expected NormalizationError, got %v", err)
			}
			if nerr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, nerr.Field)
			}
		})
	}
}

func TestNormalizeCopiesMutableInputs(t *testing.T) {
	tags := map[string]string{"env": "dev"}
	signals := map[string]*float64{SignalCPUMaxPercent: fptr(3.2)}
	p := Payload{
		Family:   FamilyVirtualMachine,
		Provider: ProviderGCP,
		Region:   "europe-west1",
		NativeID: "inst-9",
		Tags:     tags,
		Signals:  signals,
	}

	rec, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	tags["env"] = "prod"
	*signals[SignalCPUMaxPercent] = 99

	if rec.Tags["env"] != "dev" {
		t.Error("record tags aliased the payload map")
	}
	if *rec.Signal(SignalCPUMaxPercent) != 3.2 {
		t.Error("record signals aliased the payload map")
	}
}

func TestNormalizeClampsNegativeAge(t *testing.T) {
	p := Payload{
		Family:   FamilyStaticIP,
		Provider: ProviderAzure,
		Region:   "westus",
		NativeID: "ip-1",
		AgeDays:  fptr(-3),
	}
	rec, err := Normalize(p)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if rec.AgeDays == nil || *rec.AgeDays != 0 {
		t.Errorf("expected clamped age 0, got %v", rec.AgeDays)
	}
}

func TestNormalizeAllPartitionsFailures(t *testing.T) {
	payloads := []Payload{
		{Family: FamilyBlockVolume, Provider: ProviderAWS, Region: "us-east-1", NativeID: "vol-ok"},
		{Family: FamilyBlockVolume, Provider: ProviderAWS, Region: "us-east-1"}, // no id
		{Family: FamilyBlockVolume, Provider: ProviderAWS, Region: "us-east-1", NativeID: "vol-ok2"},
	}

	records, errs := NormalizeAll(payloads)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}
