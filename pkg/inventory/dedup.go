package inventory

import (
	"fmt"
)

// ExclusionRule declares a known overlap between provider enumerations:
// some provider APIs return rows that logically belong to a different
// family (a managed graph-database cluster also shows up in the generic
// relational-database listing). Rules are declarative and registered next
// to the families they guard so the overlap handling stays auditable in
// one place instead of being scattered through evaluation code.
type ExclusionRule struct {
	// Family whose enumeration produced the row under suspicion.
	Family Family
	// Excludes reports whether the payload belongs to another family and
	// must be dropped before deduplication.
	Excludes func(Payload) bool
	// Reason is logged when the rule fires.
	Reason string
}

// ExclusionSet is the registry of exclusion rules keyed by family.
type ExclusionSet struct {
	rules map[Family][]ExclusionRule
}

// NewExclusionSet builds a registry from the given rules.
func NewExclusionSet(rules ...ExclusionRule) *ExclusionSet {
	s := &ExclusionSet{rules: make(map[Family][]ExclusionRule)}
	for _, r := range rules {
		s.rules[r.Family] = append(s.rules[r.Family], r)
	}
	return s
}

// Excluded reports whether the payload is claimed by another family, along
// with the reason of the first matching rule.
func (s *ExclusionSet) Excluded(p Payload) (bool, string) {
	if s == nil {
		return false, ""
	}
	for _, r := range s.rules[p.Family] {
		if r.Excludes(p) {
			return true, r.Reason
		}
	}
	return false, ""
}

// DuplicateWarning records a canonical-identity collision that survived the
// exclusion rules. First-seen wins; the loser is reported for rule-catalog
// correction, never silently dropped.
type DuplicateWarning struct {
	IdentityKey string
	KeptFamily  Family
	LostFamily  Family
}

func (w DuplicateWarning) Error() string {
	return fmt.Sprintf("duplicate record for %s: kept %s, dropped %s (no exclusion rule registered)",
		w.IdentityKey, w.KeptFamily, w.LostFamily)
}

// Deduplicate guarantees exactly one Record per canonical identity key
// within a scan run. Registered exclusions have already been applied by
// Filter before normalization; collisions reaching this point are the
// defensive fallback and each one produces a DuplicateWarning.
func Deduplicate(records []Record) ([]Record, []DuplicateWarning) {
	seen := make(map[string]Record, len(records))
	order := make([]string, 0, len(records))
	var warnings []DuplicateWarning

	for _, rec := range records {
		prev, ok := seen[rec.IdentityKey]
		if !ok {
			seen[rec.IdentityKey] = rec
			order = append(order, rec.IdentityKey)
			continue
		}
		warnings = append(warnings, DuplicateWarning{
			IdentityKey: rec.IdentityKey,
			KeptFamily:  prev.Family,
			LostFamily:  rec.Family,
		})
	}

	out := make([]Record, 0, len(seen))
	for _, key := range order {
		out = append(out, seen[key])
	}
	return out, warnings
}

// Filter drops payloads claimed by another family per the exclusion set.
// It returns the survivors and the reasons for each dropped row.
func Filter(payloads []Payload, exclusions *ExclusionSet) ([]Payload, []string) {
	kept := make([]Payload, 0, len(payloads))
	var dropped []string
	for _, p := range payloads {
		if excluded, reason := exclusions.Excluded(p); excluded {
			dropped = append(dropped, fmt.Sprintf("%s %s: %s", p.Family, p.NativeID, reason))
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}
