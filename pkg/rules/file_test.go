package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := writeTemp(t, "rules.yaml", `
block-storage-volume:
  min_age_days: 14
  confidence_high_days: 45
virtual-machine:
  enabled: false
`)

	overrides, err := LoadOverrideFile(path)
	if err != nil {
		t.Fatalf("LoadOverrideFile failed: %v", err)
	}

	vol := overrides[inventory.FamilyBlockVolume]
	if vol.MinAgeDays == nil || *vol.MinAgeDays != 14 {
		t.Errorf("expected min_age_days 14, got %v", vol.MinAgeDays)
	}
	if vol.ConfidenceHighDays == nil || *vol.ConfidenceHighDays != 45 {
		t.Errorf("expected confidence_high_days 45, got %v", vol.ConfidenceHighDays)
	}
	if vol.Enabled != nil {
		t.Error("enabled should be unset for volumes")
	}

	vm := overrides[inventory.FamilyVirtualMachine]
	if vm.Enabled == nil || *vm.Enabled {
		t.Errorf("expected enabled=false for machines, got %v", vm.Enabled)
	}
}

func TestLoadHCLOverrides(t *testing.T) {
	path := writeTemp(t, "rules.hcl", `
rule "block-storage-volume" {
  min_age_days         = 14
  confidence_high_days = 45
}

rule "load-balancer" {
  request_floor = 100
  required_tags = ["owner", "cost-center"]
}
`)

	overrides, err := LoadOverrideFile(path)
	if err != nil {
		t.Fatalf("LoadOverrideFile failed: %v", err)
	}

	vol := overrides[inventory.FamilyBlockVolume]
	if vol.MinAgeDays == nil || *vol.MinAgeDays != 14 {
		t.Errorf("expected min_age_days 14, got %v", vol.MinAgeDays)
	}

	lb := overrides[inventory.FamilyLoadBalancer]
	if lb.RequestFloor == nil || *lb.RequestFloor != 100 {
		t.Errorf("expected request_floor 100, got %v", lb.RequestFloor)
	}
	if len(lb.RequiredTags) != 2 {
		t.Errorf("expected 2 required tags, got %v", lb.RequiredTags)
	}
}

func TestLoadOverrideFileRejectsUnknownExtension(t *testing.T) {
	path := writeTemp(t, "rules.toml", "")
	if _, err := LoadOverrideFile(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
