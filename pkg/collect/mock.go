package collect

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// MockCollector replays a fixed payload slice. Tests build these inline;
// mock mode builds them from MockFleet.
type MockCollector struct {
	FamilyName inventory.Family
	Payloads   []inventory.Payload
	Err        error
}

func (m *MockCollector) Family() inventory.Family { return m.FamilyName }

func (m *MockCollector) Collect(ctx context.Context) ([]inventory.Payload, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Payloads, nil
}

// MockFleet fabricates a deterministic fake estate with waste seeded into
// every family, so demo scans always find something. The seed fixes the
// generated IDs and ages across runs.
func MockFleet(seed int64) []Collector {
	rng := rand.New(rand.NewSource(seed))
	age := func(min, max int) *float64 {
		v := float64(min + rng.Intn(max-min+1))
		return &v
	}
	f := func(v float64) *float64 { return &v }

	var out []Collector
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyBlockVolume,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyBlockVolume, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("vol-%08x", rng.Uint32()),
				State: "available", AgeDays: age(30, 200),
				Size: inventory.SizeAttributes{CapacityGB: 100, Tier: "gp3"},
			},
			{
				Family: inventory.FamilyBlockVolume, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("vol-%08x", rng.Uint32()),
				State: "in-use", AgeDays: age(60, 400),
				Size:    inventory.SizeAttributes{CapacityGB: 500, Tier: "io2"},
				Signals: map[string]*float64{inventory.SignalIOPSMax: f(40)},
			},
			{
				Family: inventory.FamilyBlockVolume, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("vol-%08x", rng.Uint32()),
				State: "in-use", AgeDays: age(10, 50),
				Size: inventory.SizeAttributes{CapacityGB: 50, Tier: "gp3"},
			},
		},
	})
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyVirtualMachine,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyVirtualMachine, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("i-%08x", rng.Uint32()),
				State: "stopped", AgeDays: age(40, 120),
				Tags: map[string]string{"team": "data"},
				Size: inventory.SizeAttributes{Tier: "m5.large"},
			},
			{
				Family: inventory.FamilyVirtualMachine, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("i-%08x", rng.Uint32()),
				State: "running", AgeDays: age(20, 90),
				Tags:    map[string]string{"team": "web", "owner": "platform"},
				Size:    inventory.SizeAttributes{Tier: "c5.xlarge"},
				Signals: map[string]*float64{inventory.SignalCPUMaxPercent: f(1.2)},
			},
		},
	})
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyLoadBalancer,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyLoadBalancer, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("app/demo/%08x", rng.Uint32()),
				State: "active", AgeDays: age(30, 100),
				Signals: map[string]*float64{
					inventory.SignalBackendTargets: f(0),
					inventory.SignalRequestCount:   f(0),
				},
			},
		},
	})
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyStaticIP,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyStaticIP, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("eipalloc-%08x", rng.Uint32()),
				State: "unassociated", AgeDays: age(10, 60),
			},
		},
	})
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyDiskSnapshot,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyDiskSnapshot, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: fmt.Sprintf("snap-%08x", rng.Uint32()),
				State: "orphaned", AgeDays: age(120, 500),
				Size: inventory.SizeAttributes{CapacityGB: 200},
			},
		},
	})
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyRelationalDatabase,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyRelationalDatabase, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: "demo-orders-db",
				State: "stopped", AgeDays: age(20, 80),
				Size: inventory.SizeAttributes{Engine: "postgres"},
			},
			// Shows up in both the relational and graph listings; the
			// exclusion registry keeps only the graph copy.
			{
				Family: inventory.FamilyRelationalDatabase, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: "demo-graph-db",
				State: "available", AgeDays: age(20, 80),
				Size: inventory.SizeAttributes{Engine: "neptune"},
			},
		},
	})
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyGraphDatabase,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyGraphDatabase, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: "demo-graph-db",
				State: "available", AgeDays: age(20, 80),
				Size:    inventory.SizeAttributes{Engine: "neptune"},
				Signals: map[string]*float64{inventory.SignalConnectionsMax: f(0)},
			},
		},
	})
	out = append(out, &MockCollector{
		FamilyName: inventory.FamilyObjectBucket,
		Payloads: []inventory.Payload{
			{
				Family: inventory.FamilyObjectBucket, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: "demo-stale-uploads-bucket",
				State: "active", AgeDays: age(90, 300),
				Size:    inventory.SizeAttributes{CapacityGB: 40},
				Signals: map[string]*float64{inventory.SignalStaleUploadCount: f(37)},
			},
			{
				Family: inventory.FamilyObjectBucket, Provider: inventory.ProviderAWS,
				Region: "us-east-1", NativeID: "demo-empty-bucket",
				State: "active", AgeDays: age(60, 200),
				Size:    inventory.SizeAttributes{CapacityGB: 1},
				Signals: map[string]*float64{inventory.SignalObjectCount: f(0)},
			},
		},
	})
	return out
}
