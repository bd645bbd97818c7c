package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

type flakyCollector struct {
	failures int
	calls    int
}

func (f *flakyCollector) Family() inventory.Family { return inventory.FamilyBlockVolume }

func (f *flakyCollector) Collect(ctx context.Context) ([]inventory.Payload, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &TransientError{Err: errors.New("throttled")}
	}
	return []inventory.Payload{{NativeID: "vol-1"}}, nil
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	flaky := &flakyCollector{failures: 2}
	c := WithRetry(flaky, 10*time.Second)

	got, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("retry should have recovered: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(got))
	}
	if flaky.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", flaky.calls)
	}
}

type deniedCollector struct{ calls int }

func (d *deniedCollector) Family() inventory.Family { return inventory.FamilyBlockVolume }

func (d *deniedCollector) Collect(ctx context.Context) ([]inventory.Payload, error) {
	d.calls++
	return nil, &CredentialError{Provider: inventory.ProviderAWS, Err: errors.New("expired token")}
}

func TestRetryDoesNotRetryCredentialErrors(t *testing.T) {
	denied := &deniedCollector{}
	c := WithRetry(denied, 10*time.Second)

	_, err := c.Collect(context.Background())
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if denied.calls != 1 {
		t.Errorf("credential errors must not be retried, got %d attempts", denied.calls)
	}
}

func TestMockFleetIsDeterministic(t *testing.T) {
	ctx := context.Background()

	a := MockFleet(42)
	b := MockFleet(42)
	if len(a) != len(b) {
		t.Fatalf("fleet sizes differ: %d vs %d", len(a), len(b))
	}

	for i := range a {
		pa, err := a[i].Collect(ctx)
		if err != nil {
			t.Fatal(err)
		}
		pb, err := b[i].Collect(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(pa) != len(pb) {
			t.Fatalf("family %s payload counts differ", a[i].Family())
		}
		for j := range pa {
			if pa[j].NativeID != pb[j].NativeID {
				t.Errorf("same seed must generate same IDs: %s vs %s", pa[j].NativeID, pb[j].NativeID)
			}
		}
	}
}

func TestMockFleetCoversEveryFamily(t *testing.T) {
	seen := map[inventory.Family]bool{}
	for _, c := range MockFleet(1) {
		seen[c.Family()] = true
	}
	for _, family := range inventory.Families() {
		if !seen[family] {
			t.Errorf("mock fleet missing family %s", family)
		}
	}
}
