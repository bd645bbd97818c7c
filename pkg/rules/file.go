package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// LoadOverrideFile reads a tenant override set from a YAML or HCL file,
// chosen by extension. Loaded overrides are not yet validated against the
// defaults; callers push them through Store.SetOverride.
func LoadOverrideFile(path string) (map[inventory.Family]Override, error) {
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		return loadYAMLOverrides(path)
	case ".hcl":
		return loadHCLOverrides(path)
	default:
		return nil, fmt.Errorf("unsupported rule file extension %q (want .yaml, .yml or .hcl)", ext)
	}
}

func loadYAMLOverrides(path string) (map[inventory.Family]Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	out := make(map[inventory.Family]Override)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	return out, nil
}

// hclRuleFile mirrors the HCL rule override layout:
//
//	rule "block-storage-volume" {
//	  min_age_days         = 14
//	  confidence_high_days = 45
//	}
type hclRuleFile struct {
	Rules []hclRule `hcl:"rule,block"`
}

type hclRule struct {
	Family                 string   `hcl:"family,label"`
	Enabled                *bool    `hcl:"enabled,optional"`
	MinAgeDays             *int     `hcl:"min_age_days,optional"`
	ConfidenceMediumDays   *int     `hcl:"confidence_medium_days,optional"`
	ConfidenceHighDays     *int     `hcl:"confidence_high_days,optional"`
	ConfidenceCriticalDays *int     `hcl:"confidence_critical_days,optional"`
	IdleCPUPercent         *float64 `hcl:"idle_cpu_percent,optional"`
	RequestFloor           *float64 `hcl:"request_floor,optional"`
	ConnectionFloor        *float64 `hcl:"connection_floor,optional"`
	RequiredTags           []string `hcl:"required_tags,optional"`
}

func loadHCLOverrides(path string) (map[inventory.Family]Override, error) {
	var file hclRuleFile
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}

	out := make(map[inventory.Family]Override, len(file.Rules))
	for _, r := range file.Rules {
		out[inventory.Family(r.Family)] = Override{
			Enabled:                r.Enabled,
			MinAgeDays:             r.MinAgeDays,
			ConfidenceMediumDays:   r.ConfidenceMediumDays,
			ConfidenceHighDays:     r.ConfidenceHighDays,
			ConfidenceCriticalDays: r.ConfidenceCriticalDays,
			IdleCPUPercent:         r.IdleCPUPercent,
			RequestFloor:           r.RequestFloor,
			ConnectionFloor:        r.ConnectionFloor,
			RequiredTags:           r.RequiredTags,
		}
	}
	return out, nil
}
