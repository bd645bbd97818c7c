// Package catalog is the immutable scenario registry: it maps each resource
// family to its detection scenarios, its default threshold rule, and the
// exclusion rules guarding known provider-enumeration overlaps. Everything
// here is static; per-tenant threshold changes live in the rules store.
package catalog

import (
	"fmt"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// Match is a raw scenario hit. It carries the signal values the predicate
// used so the finding can explain itself without re-deriving anything.
type Match struct {
	Reason  string
	Signals map[string]float64
}

// Scenario is a named, pure predicate over a record and its effective
// rule. Implementations must not touch the clock, I/O, or shared state.
type Scenario interface {
	Name() string
	Family() inventory.Family
	// Severity is the base risk score (0-100) attached to findings.
	Severity() int
	// CostFraction scales the resource's monthly price into the waste
	// estimate. 1.0 means the whole resource is waste; partially
	// optimizable scenarios report only their optimizable delta.
	CostFraction() float64
	Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool)
}

// Catalog holds scenario registrations in insertion order per family.
// Ordering is stable across runs so finding output stays deterministic.
type Catalog struct {
	scenarios  map[inventory.Family][]Scenario
	defaults   map[inventory.Family]rules.DetectionRule
	exclusions *inventory.ExclusionSet
	names      map[string]Scenario
}

// New returns an empty catalog. Most callers want Builtin.
func New() *Catalog {
	return &Catalog{
		scenarios: make(map[inventory.Family][]Scenario),
		defaults:  make(map[inventory.Family]rules.DetectionRule),
		names:     make(map[string]Scenario),
	}
}

// RegisterFamily installs the default rule for a family. Panics on a
// duplicate registration or an invalid default: both are programmer errors
// caught at startup, not tenant input.
func (c *Catalog) RegisterFamily(family inventory.Family, def rules.DetectionRule) {
	if _, ok := c.defaults[family]; ok {
		panic(fmt.Sprintf("catalog: family %s registered twice", family))
	}
	if err := rules.Validate(family, def); err != nil {
		panic(fmt.Sprintf("catalog: invalid default for %s: %v", family, err))
	}
	c.defaults[family] = def
}

// Register appends a scenario to its family's list.
func (c *Catalog) Register(s Scenario) {
	if _, ok := c.defaults[s.Family()]; !ok {
		panic(fmt.Sprintf("catalog: scenario %s registered before family %s", s.Name(), s.Family()))
	}
	if _, ok := c.names[s.Name()]; ok {
		panic(fmt.Sprintf("catalog: scenario %s registered twice", s.Name()))
	}
	c.names[s.Name()] = s
	c.scenarios[s.Family()] = append(c.scenarios[s.Family()], s)
}

// SetExclusions installs the provider-overlap exclusion registry.
func (c *Catalog) SetExclusions(set *inventory.ExclusionSet) {
	c.exclusions = set
}

// Scenarios returns the family's scenarios in registration order.
func (c *Catalog) Scenarios(family inventory.Family) []Scenario {
	return c.scenarios[family]
}

// Scenario looks a scenario up by name.
func (c *Catalog) Scenario(name string) (Scenario, bool) {
	s, ok := c.names[name]
	return s, ok
}

// Defaults returns a copy of the family default rules, suitable for
// seeding a rules.Store.
func (c *Catalog) Defaults() map[inventory.Family]rules.DetectionRule {
	out := make(map[inventory.Family]rules.DetectionRule, len(c.defaults))
	for f, r := range c.defaults {
		out[f] = r
	}
	return out
}

// Exclusions returns the overlap exclusion registry.
func (c *Catalog) Exclusions() *inventory.ExclusionSet {
	return c.exclusions
}
