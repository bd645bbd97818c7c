// Package inventory defines the canonical resource model shared by the
// detection pipeline: normalized payloads from collector adapters, the
// immutable per-scan Record, and the deduplication machinery that keeps
// exactly one Record per canonical identity key.
package inventory

import (
	"fmt"
	"strings"
)

// Provider identifies a supported cloud provider.
type Provider string

const (
	ProviderAWS        Provider = "aws"
	ProviderAzure      Provider = "azure"
	ProviderGCP        Provider = "gcp"
	ProviderKubernetes Provider = "kubernetes"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAWS, ProviderAzure, ProviderGCP, ProviderKubernetes:
		return true
	}
	return false
}

// Family is a taxonomy leaf grouping physically similar resources.
// It is the join key between Record, Scenario and DetectionRule.
type Family string

const (
	FamilyBlockVolume        Family = "block-storage-volume"
	FamilyVirtualMachine     Family = "virtual-machine"
	FamilyLoadBalancer       Family = "load-balancer"
	FamilyStaticIP           Family = "static-ip"
	FamilyDiskSnapshot       Family = "disk-snapshot"
	FamilyRelationalDatabase Family = "relational-database"
	FamilyGraphDatabase      Family = "graph-database"
	FamilyObjectBucket       Family = "object-storage-bucket"
)

// Families lists every taxonomy leaf in stable order. Scan orchestration
// iterates this slice, so ordering here decides sub-pipeline ordering.
func Families() []Family {
	return []Family{
		FamilyBlockVolume,
		FamilyVirtualMachine,
		FamilyLoadBalancer,
		FamilyStaticIP,
		FamilyDiskSnapshot,
		FamilyRelationalDatabase,
		FamilyGraphDatabase,
		FamilyObjectBucket,
	}
}

// Payload is the normalized resource shape handed over by collector
// adapters. Collectors own the vendor wire protocols; the engine only ever
// sees this struct.
type Payload struct {
	Family   Family              `json:"resource_family"`
	Provider Provider            `json:"provider"`
	Region   string              `json:"region"`
	NativeID string              `json:"native_id"`
	AgeDays  *float64            `json:"age_days,omitempty"`
	State    string              `json:"state"`
	Tags     map[string]string   `json:"tags,omitempty"`
	Size     SizeAttributes      `json:"size_attributes"`
	Signals  map[string]*float64 `json:"usage_signals,omitempty"`
}

// SizeAttributes captures the billable dimensions of a resource. Not every
// field applies to every family.
type SizeAttributes struct {
	CapacityGB int    `json:"capacity_gb,omitempty"`
	Tier       string `json:"tier,omitempty"`
	Engine     string `json:"engine,omitempty"`
}

// Record is the canonical snapshot of one physical resource at scan time.
// Records are immutable after creation and scoped to a single scan run.
type Record struct {
	IdentityKey string
	Family      Family
	Provider    Provider
	Region      string
	NativeID    string
	AgeDays     *float64
	State       string
	Tags        map[string]string
	Size        SizeAttributes
	Signals     map[string]*float64
}

// Signal returns the named usage signal, or nil if the collector did not
// report it. A nil value means "unknown", never "zero".
func (r Record) Signal(name string) *float64 {
	if r.Signals == nil {
		return nil
	}
	return r.Signals[name]
}

// HasTag reports whether the record carries the tag key, any value.
func (r Record) HasTag(key string) bool {
	_, ok := r.Tags[key]
	return ok
}

// identityKey derives the canonical identity key from provider-stable
// identifiers only. Names and tags are mutable and must never feed into it:
// repeated scans of an unchanged resource always yield the same key, and
// overlapping provider enumerations of the same resource collide on it.
func identityKey(p Provider, region, nativeID string) string {
	return fmt.Sprintf("%s/%s/%s", p, strings.ToLower(region), strings.ToLower(nativeID))
}

// Well-known usage signal names emitted by collector adapters.
const (
	SignalCPUMaxPercent    = "cpu_max_percent"
	SignalRequestCount     = "request_count"
	SignalBackendTargets   = "backend_targets"
	SignalConnectionsMax   = "connections_max"
	SignalStaleUploadCount = "stale_upload_count"
	SignalObjectCount      = "object_count"
	SignalIOPSMax          = "iops_max"
)
