package findings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/storage"
)

// Store persists findings one JSON document per account. Reconcile is the
// only writer; reads serve the API and exports.
type Store struct {
	blobs  storage.BlobStore
	logger *slog.Logger
	mu     sync.Mutex
}

func NewStore(blobs storage.BlobStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{blobs: blobs, logger: logger}
}

func accountKey(accountID string) string {
	return fmt.Sprintf("findings/%s.json", accountID)
}

// Reconcile folds one scan's findings into the account document:
// existing findings are updated in place keeping their ID and FirstSeen,
// new ones are inserted, and open findings the scan no longer reports are
// resolved. Calling it twice with the same input is a no-op the second
// time apart from LastSeen.
func (s *Store) Reconcile(ctx context.Context, accountID string, observed []Finding, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}

	byKey := make(map[string]int, len(existing))
	for i, f := range existing {
		byKey[f.key()] = i
	}

	seen := make(map[string]bool, len(observed))
	for _, obs := range observed {
		k := obs.key()
		seen[k] = true
		if i, ok := byKey[k]; ok {
			prev := existing[i]
			obs.ID = prev.ID
			obs.FirstSeen = prev.FirstSeen
			obs.Status = StatusOpen
			obs.ResolvedAt = nil
			obs.LastSeen = now
			existing[i] = obs
			continue
		}
		obs.FirstSeen = now
		obs.LastSeen = now
		obs.Status = StatusOpen
		existing = append(existing, obs)
	}

	resolved := 0
	for i := range existing {
		if existing[i].Status != StatusOpen || seen[existing[i].key()] {
			continue
		}
		existing[i].Status = StatusResolved
		t := now
		existing[i].ResolvedAt = &t
		resolved++
	}
	if resolved > 0 {
		s.logger.Info("resolved stale findings", "account_id", accountID, "count", resolved)
	}

	sortFindings(existing)
	return s.save(ctx, accountID, existing)
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Status        Status
	Family        inventory.Family
	Scenario      string
	MinConfidence detect.Confidence
}

func (f Filter) matches(x Finding) bool {
	if f.Status != "" && x.Status != f.Status {
		return false
	}
	if f.Family != "" && x.Family != f.Family {
		return false
	}
	if f.Scenario != "" && x.Scenario != f.Scenario {
		return false
	}
	if f.MinConfidence != "" && x.Confidence.Rank() < f.MinConfidence.Rank() {
		return false
	}
	return true
}

// List returns the account's findings matching the filter, in the stable
// document order (severity desc, then identity key, then scenario).
func (s *Store) List(ctx context.Context, accountID string, filter Filter) ([]Finding, error) {
	all, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]Finding, 0, len(all))
	for _, f := range all {
		if filter.matches(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Accounts lists every account with a findings document.
func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	keys, err := s.blobs.List(ctx, "findings/")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(k, "findings/"), ".json")
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) load(ctx context.Context, accountID string) ([]Finding, error) {
	data, err := s.blobs.Get(ctx, accountKey(accountID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading findings for %s: %w", accountID, err)
	}
	var out []Finding
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding findings for %s: %w", accountID, err)
	}
	return out, nil
}

func (s *Store) save(ctx context.Context, accountID string, all []Finding) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, accountKey(accountID), data); err != nil {
		return fmt.Errorf("persisting findings for %s: %w", accountID, err)
	}
	return nil
}

func sortFindings(all []Finding) {
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Severity != all[j].Severity {
			return all[i].Severity > all[j].Severity
		}
		if all[i].IdentityKey != all[j].IdentityKey {
			return all[i].IdentityKey < all[j].IdentityKey
		}
		return all[i].Scenario < all[j].Scenario
	})
}
