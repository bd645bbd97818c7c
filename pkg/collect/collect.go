// Package collect defines the contract between the detection engine and
// provider adapters. A collector enumerates one resource family from one
// cloud account and hands back normalized payloads; the engine never sees
// vendor SDK types.
package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// Collector enumerates one resource family for the account it was built
// for. Implementations must be safe for concurrent use; the orchestrator
// runs family pipelines in parallel.
type Collector interface {
	Family() inventory.Family
	Collect(ctx context.Context) ([]inventory.Payload, error)
}

// CredentialError marks an authentication or authorization failure.
// These fail the whole scan immediately: every other family would hit
// the same wall, and retrying cannot help.
type CredentialError struct {
	Provider inventory.Provider
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credentials rejected by %s: %v", e.Provider, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// TransientError marks a retryable provider fault (throttle, timeout,
// 5xx). The retry wrapper consumes these; one surviving a full backoff
// budget fails only its own family.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// WithRetry wraps a collector with exponential backoff over transient
// errors. Credential errors and context cancellation pass through
// untouched.
func WithRetry(c Collector, maxElapsed time.Duration) Collector {
	return &retryCollector{next: c, maxElapsed: maxElapsed}
}

type retryCollector struct {
	next       Collector
	maxElapsed time.Duration
}

func (r *retryCollector) Family() inventory.Family { return r.next.Family() }

func (r *retryCollector) Collect(ctx context.Context) ([]inventory.Payload, error) {
	var out []inventory.Payload

	operation := func() error {
		payloads, err := r.next.Collect(ctx)
		if err != nil {
			var transient *TransientError
			if errors.As(err, &transient) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = payloads
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = r.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}
