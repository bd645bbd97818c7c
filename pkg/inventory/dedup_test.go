package inventory

import (
	"testing"
)

func graphEngineExclusion() *ExclusionSet {
	return NewExclusionSet(ExclusionRule{
		Family: FamilyRelationalDatabase,
		Excludes: func(p Payload) bool {
			return p.Size.Engine == "neptune"
		},
		Reason: "graph-database engines surface in the relational listing",
	})
}

func TestFilterAppliesRegisteredExclusion(t *testing.T) {
	payloads := []Payload{
		{
			Family: FamilyRelationalDatabase, Provider: ProviderAWS,
			Region: "us-east-1", NativeID: "db-graph-1",
			Size: SizeAttributes{Engine: "neptune"},
		},
		{
			Family: FamilyGraphDatabase, Provider: ProviderAWS,
			Region: "us-east-1", NativeID: "db-graph-1",
			Size: SizeAttributes{Engine: "neptune"},
		},
	}

	kept, dropped := Filter(payloads, graphEngineExclusion())
	if len(kept) != 1 {
		t.Fatalf("expected 1 surviving payload, got %d", len(kept))
	}
	if kept[0].Family != FamilyGraphDatabase {
		t.Errorf("expected the graph-database row to win, got %s", kept[0].Family)
	}
	if len(dropped) != 1 {
		t.Errorf("expected 1 drop reason, got %d", len(dropped))
	}

	records, _ := NormalizeAll(kept)
	deduped, warnings := Deduplicate(records)
	if len(deduped) != 1 {
		t.Fatalf("expected exactly 1 record after dedup, got %d", len(deduped))
	}
	if len(warnings) != 0 {
		t.Errorf("registered exclusion should not produce warnings, got %v", warnings)
	}
}

func TestDeduplicateFirstSeenWinsOnUnregisteredOverlap(t *testing.T) {
	records := []Record{
		{IdentityKey: "aws/us-east-1/db-1", Family: FamilyRelationalDatabase},
		{IdentityKey: "aws/us-east-1/db-1", Family: FamilyGraphDatabase},
		{IdentityKey: "aws/us-east-1/db-2", Family: FamilyRelationalDatabase},
	}

	deduped, warnings := Deduplicate(records)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 records, got %d", len(deduped))
	}
	if deduped[0].Family != FamilyRelationalDatabase {
		t.Errorf("first-seen record should win, got %s", deduped[0].Family)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 duplicate warning, got %d", len(warnings))
	}
	w := warnings[0]
	if w.KeptFamily != FamilyRelationalDatabase || w.LostFamily != FamilyGraphDatabase {
		t.Errorf("warning misattributed: %+v", w)
	}
}

func TestDeduplicatePreservesInputOrder(t *testing.T) {
	records := []Record{
		{IdentityKey: "k3"},
		{IdentityKey: "k1"},
		{IdentityKey: "k2"},
		{IdentityKey: "k1"},
	}
	deduped, _ := Deduplicate(records)
	want := []string{"k3", "k1", "k2"}
	for i, rec := range deduped {
		if rec.IdentityKey != want[i] {
			t.Fatalf("order not preserved: got %v at %d, want %v", rec.IdentityKey, i, want[i])
		}
	}
}
