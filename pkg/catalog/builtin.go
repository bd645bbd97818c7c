package catalog

import (
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// graphEngines are database engines that belong to the graph-database
// family even when the generic relational-database listing reports them.
var graphEngines = map[string]bool{
	"neptune":    true,
	"neo4j":      true,
	"janusgraph": true,
	"gremlin":    true,
}

// Builtin assembles the shipped catalog: every family default, every
// built-in scenario, and the known provider-overlap exclusions. Scenario
// registration order is the evaluation order and must stay stable.
func Builtin() *Catalog {
	c := New()

	c.RegisterFamily(inventory.FamilyBlockVolume, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             7,
		ConfidenceMediumDays:   14,
		ConfidenceHighDays:     30,
		ConfidenceCriticalDays: 90,
		IOPSFloor:              100,
	})
	c.RegisterFamily(inventory.FamilyVirtualMachine, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             7,
		ConfidenceMediumDays:   14,
		ConfidenceHighDays:     30,
		ConfidenceCriticalDays: 90,
		IdleCPUPercent:         5.0,
	})
	c.RegisterFamily(inventory.FamilyLoadBalancer, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             7,
		ConfidenceMediumDays:   14,
		ConfidenceHighDays:     30,
		ConfidenceCriticalDays: 60,
		RequestFloor:           10,
	})
	c.RegisterFamily(inventory.FamilyStaticIP, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             3,
		ConfidenceMediumDays:   7,
		ConfidenceHighDays:     14,
		ConfidenceCriticalDays: 30,
	})
	c.RegisterFamily(inventory.FamilyDiskSnapshot, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             90,
		ConfidenceMediumDays:   120,
		ConfidenceHighDays:     180,
		ConfidenceCriticalDays: 365,
	})
	c.RegisterFamily(inventory.FamilyRelationalDatabase, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             7,
		ConfidenceMediumDays:   14,
		ConfidenceHighDays:     30,
		ConfidenceCriticalDays: 60,
		ConnectionFloor:        0,
	})
	c.RegisterFamily(inventory.FamilyGraphDatabase, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             7,
		ConfidenceMediumDays:   14,
		ConfidenceHighDays:     30,
		ConfidenceCriticalDays: 60,
		ConnectionFloor:        0,
	})
	c.RegisterFamily(inventory.FamilyObjectBucket, rules.DetectionRule{
		Enabled:                true,
		MinAgeDays:             30,
		ConfidenceMediumDays:   60,
		ConfidenceHighDays:     90,
		ConfidenceCriticalDays: 180,
		StaleUploadDays:        7,
	})

	c.Register(&UnattachedVolume{})
	c.Register(&PremiumVolumeUnderused{})
	c.Register(&DeallocatedMachine{})
	c.Register(&NeverStartedMachine{})
	c.Register(&IdleMachine{})
	c.Register(&UntaggedMachine{})
	c.Register(&NoBackendTargets{})
	c.Register(&NoTraffic{})
	c.Register(&UnassociatedAddress{})
	c.Register(&OrphanedSnapshot{})
	c.Register(&AgedSnapshot{})
	c.Register(&StoppedDatabase{})
	c.Register(&ZeroConnections{})
	c.Register(&IdleGraphDatabase{})
	c.Register(&StaleMultipartUploads{})
	c.Register(&EmptyBucket{})

	c.SetExclusions(inventory.NewExclusionSet(
		inventory.ExclusionRule{
			Family: inventory.FamilyRelationalDatabase,
			Excludes: func(p inventory.Payload) bool {
				return graphEngines[p.Size.Engine]
			},
			Reason: "graph-database engines also surface in the generic relational-database listing",
		},
	))

	return c
}
