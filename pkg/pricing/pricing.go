// Package pricing supplies monthly cost estimates for resources. Pricing
// is an external collaborator: a missing price is an expected condition
// (ErrPriceUnavailable), never a reason to suppress a detection.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// ErrPriceUnavailable signals that no price is known for the resource.
var ErrPriceUnavailable = errors.New("pricing: no price available")

// Source resolves the estimated monthly cost of one resource.
type Source interface {
	MonthlyCost(ctx context.Context, family inventory.Family, region string, size inventory.SizeAttributes) (float64, error)
}

// StaticSource serves prices from a fixed per-family table, optionally
// scaled by capacity. Used in mock mode and tests.
type StaticSource struct {
	// PerUnit maps family to a price per GB-month where capacity applies.
	PerUnit map[inventory.Family]float64
	// Flat maps family to a flat monthly price.
	Flat map[inventory.Family]float64
}

// DefaultStaticSource approximates on-demand us-east-1 list prices.
func DefaultStaticSource() *StaticSource {
	return &StaticSource{
		PerUnit: map[inventory.Family]float64{
			inventory.FamilyBlockVolume:  0.08,
			inventory.FamilyDiskSnapshot: 0.05,
			inventory.FamilyObjectBucket: 0.023,
		},
		Flat: map[inventory.Family]float64{
			inventory.FamilyVirtualMachine:     70.0,
			inventory.FamilyLoadBalancer:       16.43,
			inventory.FamilyStaticIP:           3.65,
			inventory.FamilyRelationalDatabase: 120.0,
			inventory.FamilyGraphDatabase:      260.0,
		},
	}
}

func (s *StaticSource) MonthlyCost(ctx context.Context, family inventory.Family, region string, size inventory.SizeAttributes) (float64, error) {
	if rate, ok := s.PerUnit[family]; ok {
		if size.CapacityGB <= 0 {
			return 0, ErrPriceUnavailable
		}
		return rate * float64(size.CapacityGB), nil
	}
	if flat, ok := s.Flat[family]; ok {
		return flat, nil
	}
	return 0, ErrPriceUnavailable
}

type priceRecord struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// CachedSource wraps another Source with a TTL'd JSON file cache so
// repeated scans do not hammer the vendor pricing API.
type CachedSource struct {
	next      Source
	mu        sync.RWMutex
	cache     map[string]priceRecord
	cachePath string
	ttl       time.Duration
}

// NewCachedSource builds a cache over next, persisted under cacheDir.
func NewCachedSource(next Source, cacheDir string) *CachedSource {
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	os.MkdirAll(cacheDir, 0755)

	c := &CachedSource{
		next:      next,
		cache:     make(map[string]priceRecord),
		cachePath: filepath.Join(cacheDir, "pricing.json"),
		ttl:       15 * 24 * time.Hour,
	}
	c.loadCache()
	return c
}

func (c *CachedSource) loadCache() {
	data, err := os.ReadFile(c.cachePath)
	if err == nil {
		json.Unmarshal(data, &c.cache)
	}
}

func (c *CachedSource) saveCache() {
	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err == nil {
		os.WriteFile(c.cachePath, data, 0644)
	}
}

func (c *CachedSource) MonthlyCost(ctx context.Context, family inventory.Family, region string, size inventory.SizeAttributes) (float64, error) {
	key := fmt.Sprintf("%s-%s-%s-%d", family, region, size.Tier, size.CapacityGB)

	c.mu.RLock()
	record, ok := c.cache[key]
	c.mu.RUnlock()

	if ok && time.Since(time.Unix(record.Timestamp, 0)) < c.ttl {
		return record.Price, nil
	}

	price, err := c.next.MonthlyCost(ctx, family, region, size)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cache[key] = priceRecord{Price: price, Timestamp: time.Now().Unix()}
	c.saveCache()
	c.mu.Unlock()

	return price, nil
}
