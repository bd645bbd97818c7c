// Package rules defines detection thresholds and the tenant configuration
// store. Defaults ship with the scenario catalog and are immutable; tenants
// layer field-by-field overrides on top of them. Overrides are validated at
// write time so malformed threshold sets never reach evaluation.
package rules

import (
	"fmt"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// DetectionRule is the strongly-typed threshold set a family's scenarios
// are evaluated against. Not every field applies to every scenario; each
// scenario documents which thresholds it reads.
type DetectionRule struct {
	// Enabled gates every scenario of the family. Disabling a family is an
	// override with Enabled=false; the default is never removed.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// MinAgeDays is the minimum resource age before any scenario may fire.
	MinAgeDays int `json:"min_age_days" yaml:"min_age_days" mapstructure:"min_age_days"`

	// Confidence tier thresholds, in days since the resource became
	// suspect. Ordering critical >= high >= medium is enforced by Validate.
	ConfidenceMediumDays   int `json:"confidence_medium_days" yaml:"confidence_medium_days" mapstructure:"confidence_medium_days"`
	ConfidenceHighDays     int `json:"confidence_high_days" yaml:"confidence_high_days" mapstructure:"confidence_high_days"`
	ConfidenceCriticalDays int `json:"confidence_critical_days" yaml:"confidence_critical_days" mapstructure:"confidence_critical_days"`

	// IdleCPUPercent: a machine whose max CPU stays below this is idle.
	IdleCPUPercent float64 `json:"idle_cpu_percent" yaml:"idle_cpu_percent" mapstructure:"idle_cpu_percent"`

	// RequestFloor: a load balancer with fewer requests over the lookback
	// window is considered unused.
	RequestFloor float64 `json:"request_floor" yaml:"request_floor" mapstructure:"request_floor"`

	// ConnectionFloor: a database at or below this many peak connections is
	// considered idle.
	ConnectionFloor float64 `json:"connection_floor" yaml:"connection_floor" mapstructure:"connection_floor"`

	// IOPSFloor: an in-use provisioned-IOPS volume peaking below this
	// would fit a general-purpose tier.
	IOPSFloor float64 `json:"iops_floor" yaml:"iops_floor" mapstructure:"iops_floor"`

	// StaleUploadDays is how old an incomplete multipart upload must be
	// before it counts as stale.
	StaleUploadDays int `json:"stale_upload_days" yaml:"stale_upload_days" mapstructure:"stale_upload_days"`

	// RequiredTags trip the untagged scenario when absent.
	RequiredTags []string `json:"required_tags,omitempty" yaml:"required_tags,omitempty" mapstructure:"required_tags"`
}

// Override is the tenant-editable overlay for a DetectionRule. Nil fields
// inherit the catalog default; the overlay is additive, never a wholesale
// replacement unless every field is set.
type Override struct {
	Enabled                *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MinAgeDays             *int     `json:"min_age_days,omitempty" yaml:"min_age_days,omitempty"`
	ConfidenceMediumDays   *int     `json:"confidence_medium_days,omitempty" yaml:"confidence_medium_days,omitempty"`
	ConfidenceHighDays     *int     `json:"confidence_high_days,omitempty" yaml:"confidence_high_days,omitempty"`
	ConfidenceCriticalDays *int     `json:"confidence_critical_days,omitempty" yaml:"confidence_critical_days,omitempty"`
	IdleCPUPercent         *float64 `json:"idle_cpu_percent,omitempty" yaml:"idle_cpu_percent,omitempty"`
	RequestFloor           *float64 `json:"request_floor,omitempty" yaml:"request_floor,omitempty"`
	ConnectionFloor        *float64 `json:"connection_floor,omitempty" yaml:"connection_floor,omitempty"`
	IOPSFloor              *float64 `json:"iops_floor,omitempty" yaml:"iops_floor,omitempty"`
	StaleUploadDays        *int     `json:"stale_upload_days,omitempty" yaml:"stale_upload_days,omitempty"`
	RequiredTags           []string `json:"required_tags,omitempty" yaml:"required_tags,omitempty"`
}

// IsZero reports whether the override sets nothing.
func (o Override) IsZero() bool {
	return o.Enabled == nil && o.MinAgeDays == nil &&
		o.ConfidenceMediumDays == nil && o.ConfidenceHighDays == nil &&
		o.ConfidenceCriticalDays == nil && o.IdleCPUPercent == nil &&
		o.RequestFloor == nil && o.ConnectionFloor == nil &&
		o.IOPSFloor == nil && o.StaleUploadDays == nil &&
		o.RequiredTags == nil
}

// Merge overlays the override onto the default, field by field.
func Merge(def DetectionRule, o Override) DetectionRule {
	out := def
	if o.Enabled != nil {
		out.Enabled = *o.Enabled
	}
	if o.MinAgeDays != nil {
		out.MinAgeDays = *o.MinAgeDays
	}
	if o.ConfidenceMediumDays != nil {
		out.ConfidenceMediumDays = *o.ConfidenceMediumDays
	}
	if o.ConfidenceHighDays != nil {
		out.ConfidenceHighDays = *o.ConfidenceHighDays
	}
	if o.ConfidenceCriticalDays != nil {
		out.ConfidenceCriticalDays = *o.ConfidenceCriticalDays
	}
	if o.IdleCPUPercent != nil {
		out.IdleCPUPercent = *o.IdleCPUPercent
	}
	if o.RequestFloor != nil {
		out.RequestFloor = *o.RequestFloor
	}
	if o.ConnectionFloor != nil {
		out.ConnectionFloor = *o.ConnectionFloor
	}
	if o.IOPSFloor != nil {
		out.IOPSFloor = *o.IOPSFloor
	}
	if o.StaleUploadDays != nil {
		out.StaleUploadDays = *o.StaleUploadDays
	}
	if o.RequiredTags != nil {
		out.RequiredTags = append([]string(nil), o.RequiredTags...)
	}
	return out
}

// ConfigurationError marks a rule write rejected by validation.
type ConfigurationError struct {
	Family inventory.Family
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid rule configuration for %s: %s", e.Family, e.Detail)
}

// Validate enforces the threshold ordering invariants. It runs on the
// merged effective rule at write time, never during evaluation.
func Validate(family inventory.Family, r DetectionRule) error {
	fail := func(detail string) error {
		return &ConfigurationError{Family: family, Detail: detail}
	}

	if r.MinAgeDays < 0 {
		return fail(fmt.Sprintf("min_age_days must be >= 0, got %d", r.MinAgeDays))
	}
	if r.ConfidenceMediumDays < 0 {
		return fail(fmt.Sprintf("confidence_medium_days must be >= 0, got %d", r.ConfidenceMediumDays))
	}
	if r.ConfidenceHighDays < r.ConfidenceMediumDays {
		return fail(fmt.Sprintf("confidence_high_days (%d) must be >= confidence_medium_days (%d)",
			r.ConfidenceHighDays, r.ConfidenceMediumDays))
	}
	if r.ConfidenceCriticalDays < r.ConfidenceHighDays {
		return fail(fmt.Sprintf("confidence_critical_days (%d) must be >= confidence_high_days (%d)",
			r.ConfidenceCriticalDays, r.ConfidenceHighDays))
	}
	if r.IdleCPUPercent < 0 || r.IdleCPUPercent > 100 {
		return fail(fmt.Sprintf("idle_cpu_percent must be within [0,100], got %g", r.IdleCPUPercent))
	}
	if r.RequestFloor < 0 {
		return fail(fmt.Sprintf("request_floor must be >= 0, got %g", r.RequestFloor))
	}
	if r.ConnectionFloor < 0 {
		return fail(fmt.Sprintf("connection_floor must be >= 0, got %g", r.ConnectionFloor))
	}
	if r.IOPSFloor < 0 {
		return fail(fmt.Sprintf("iops_floor must be >= 0, got %g", r.IOPSFloor))
	}
	if r.StaleUploadDays < 0 {
		return fail(fmt.Sprintf("stale_upload_days must be >= 0, got %d", r.StaleUploadDays))
	}
	return nil
}
