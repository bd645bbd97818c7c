package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/storage"
)

// Store resolves (tenant, family) to an effective DetectionRule by
// overlaying tenant overrides onto the catalog defaults. Defaults are fixed
// at construction and never mutated; only the per-tenant overlay documents
// change. Reads are safe for concurrent use across many tenants.
type Store struct {
	defaults map[inventory.Family]DetectionRule
	blobs    storage.BlobStore

	mu    sync.RWMutex
	cache map[string]map[inventory.Family]Override // tenant -> overrides
}

// NewStore builds a configuration store over the given defaults and blob
// backend.
func NewStore(defaults map[inventory.Family]DetectionRule, blobs storage.BlobStore) *Store {
	defs := make(map[inventory.Family]DetectionRule, len(defaults))
	for f, r := range defaults {
		defs[f] = r
	}
	return &Store{
		defaults: defs,
		blobs:    blobs,
		cache:    make(map[string]map[inventory.Family]Override),
	}
}

// Default returns the shipped default rule for the family.
func (s *Store) Default(family inventory.Family) (DetectionRule, bool) {
	r, ok := s.defaults[family]
	return r, ok
}

// EffectiveRule resolves the rule a tenant's scan evaluates against.
func (s *Store) EffectiveRule(ctx context.Context, tenant string, family inventory.Family) (DetectionRule, error) {
	def, ok := s.defaults[family]
	if !ok {
		return DetectionRule{}, fmt.Errorf("no default rule registered for family %s", family)
	}

	overrides, err := s.tenantOverrides(ctx, tenant)
	if err != nil {
		return DetectionRule{}, err
	}
	o, ok := overrides[family]
	if !ok {
		return def, nil
	}
	return Merge(def, o), nil
}

// EffectiveRules snapshots every family's effective rule for a tenant.
// The orchestrator calls this once per scan run and threads the snapshot
// through the pipeline, keeping evaluation free of shared mutable state.
func (s *Store) EffectiveRules(ctx context.Context, tenant string) (map[inventory.Family]DetectionRule, error) {
	overrides, err := s.tenantOverrides(ctx, tenant)
	if err != nil {
		return nil, err
	}

	out := make(map[inventory.Family]DetectionRule, len(s.defaults))
	for family, def := range s.defaults {
		if o, ok := overrides[family]; ok {
			out[family] = Merge(def, o)
		} else {
			out[family] = def
		}
	}
	return out, nil
}

// GetOverride returns the stored override for (tenant, family), if any.
func (s *Store) GetOverride(ctx context.Context, tenant string, family inventory.Family) (Override, bool, error) {
	overrides, err := s.tenantOverrides(ctx, tenant)
	if err != nil {
		return Override{}, false, err
	}
	o, ok := overrides[family]
	return o, ok, nil
}

// SetOverride validates and persists a tenant override. The merged
// effective rule must pass validation; the default catalog is untouched.
func (s *Store) SetOverride(ctx context.Context, tenant string, family inventory.Family, o Override) error {
	def, ok := s.defaults[family]
	if !ok {
		return &ConfigurationError{Family: family, Detail: "unknown resource family"}
	}
	if err := Validate(family, Merge(def, o)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ctx, tenant)
	if err != nil {
		return err
	}
	next := copyOverrides(current)
	if o.IsZero() {
		delete(next, family)
	} else {
		next[family] = o
	}
	return s.saveLocked(ctx, tenant, next)
}

// ResetToDefault removes the tenant override, restoring the shipped
// default exactly.
func (s *Store) ResetToDefault(ctx context.Context, tenant string, family inventory.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ctx, tenant)
	if err != nil {
		return err
	}
	if _, ok := current[family]; !ok {
		return nil
	}
	next := copyOverrides(current)
	delete(next, family)
	return s.saveLocked(ctx, tenant, next)
}

// tenantOverrides hands out the cached overlay map. The map is shared
// with concurrent readers and must never be mutated in place: writers go
// through copyOverrides and swap a fresh map into the cache.
func (s *Store) tenantOverrides(ctx context.Context, tenant string) (map[inventory.Family]Override, error) {
	s.mu.RLock()
	cached, ok := s.cache[tenant]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, tenant)
}

func (s *Store) loadLocked(ctx context.Context, tenant string) (map[inventory.Family]Override, error) {
	if cached, ok := s.cache[tenant]; ok {
		return cached, nil
	}

	overrides := make(map[inventory.Family]Override)
	data, err := s.blobs.Get(ctx, overrideKey(tenant))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load overrides for tenant %s: %w", tenant, err)
		}
	} else if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("decode overrides for tenant %s: %w", tenant, err)
	}

	s.cache[tenant] = overrides
	return overrides, nil
}

func (s *Store) saveLocked(ctx context.Context, tenant string, overrides map[inventory.Family]Override) error {
	data, err := json.MarshalIndent(overrides, "", "  ")
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, overrideKey(tenant), data); err != nil {
		return fmt.Errorf("persist overrides for tenant %s: %w", tenant, err)
	}
	s.cache[tenant] = overrides
	return nil
}

func copyOverrides(m map[inventory.Family]Override) map[inventory.Family]Override {
	out := make(map[inventory.Family]Override, len(m)+1)
	for f, o := range m {
		out[f] = o
	}
	return out
}

func overrideKey(tenant string) string {
	return fmt.Sprintf("rules/%s.json", tenant)
}
