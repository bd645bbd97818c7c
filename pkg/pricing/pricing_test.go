package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

func TestStaticSourceScalesByCapacity(t *testing.T) {
	s := DefaultStaticSource()
	got, err := s.MonthlyCost(context.Background(), inventory.FamilyBlockVolume, "us-east-1",
		inventory.SizeAttributes{CapacityGB: 100})
	if err != nil {
		t.Fatalf("MonthlyCost failed: %v", err)
	}
	if got != 8.0 {
		t.Errorf("expected 8.0/month for 100GB, got %g", got)
	}
}

func TestStaticSourceUnknownFamily(t *testing.T) {
	s := &StaticSource{}
	_, err := s.MonthlyCost(context.Background(), inventory.FamilyVirtualMachine, "us-east-1", inventory.SizeAttributes{})
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

type countingSource struct {
	calls int
	price float64
}

func (c *countingSource) MonthlyCost(ctx context.Context, family inventory.Family, region string, size inventory.SizeAttributes) (float64, error) {
	c.calls++
	return c.price, nil
}

func TestCachedSourceHitsBackendOnce(t *testing.T) {
	backend := &countingSource{price: 30}
	c := NewCachedSource(backend, t.TempDir())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.MonthlyCost(ctx, inventory.FamilyVirtualMachine, "us-east-1",
			inventory.SizeAttributes{Tier: "m5.large"})
		if err != nil {
			t.Fatalf("MonthlyCost failed: %v", err)
		}
		if got != 30 {
			t.Errorf("expected 30, got %g", got)
		}
	}

	if backend.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", backend.calls)
	}
}

func TestCachedSourcePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewCachedSource(&countingSource{price: 12}, dir)
	if _, err := first.MonthlyCost(ctx, inventory.FamilyLoadBalancer, "us-east-1", inventory.SizeAttributes{}); err != nil {
		t.Fatalf("MonthlyCost failed: %v", err)
	}

	backend := &countingSource{price: 99}
	second := NewCachedSource(backend, dir)
	got, err := second.MonthlyCost(ctx, inventory.FamilyLoadBalancer, "us-east-1", inventory.SizeAttributes{})
	if err != nil {
		t.Fatalf("MonthlyCost failed: %v", err)
	}
	if got != 12 {
		t.Errorf("expected cached 12, got %g", got)
	}
	if backend.calls != 0 {
		t.Errorf("expected no backend calls on warm cache, got %d", backend.calls)
	}
}

func TestParsePriceFromJSON(t *testing.T) {
	doc := `{"terms":{"OnDemand":{"SKU1":{"priceDimensions":{"D1":{"pricePerUnit":{"USD":"0.0800000000"}}}}}}}`
	got, err := parsePriceFromJSON(doc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != 0.08 {
		t.Errorf("expected 0.08, got %g", got)
	}

	if _, err := parsePriceFromJSON(`{"terms":{}}`); err == nil {
		t.Error("expected error for document without OnDemand terms")
	}
}
