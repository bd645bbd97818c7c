package aws

import (
	"time"

	"github.com/cloudvigil/cloudvigil/pkg/collect"
)

// defaultRetryBudget bounds how long a single family keeps retrying
// transient provider faults before giving up.
const defaultRetryBudget = 2 * time.Minute

// Options tune the collector set. Zero values select defaults.
type Options struct {
	// RetryBudget bounds the transient-error retry policy per family.
	RetryBudget time.Duration

	// StaleUploadDays is the effective stale multipart upload window for
	// the account's tenant.
	StaleUploadDays int
}

// Collectors builds the full collector set for one session, each wrapped
// with the transient-error retry policy.
func Collectors(s *Session, opts Options) []collect.Collector {
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = defaultRetryBudget
	}
	metrics := NewMetricsClient(s.Config)
	raw := []collect.Collector{
		NewVolumeCollector(s, metrics),
		NewMachineCollector(s, metrics),
		NewLoadBalancerCollector(s, metrics),
		NewAddressCollector(s),
		NewSnapshotCollector(s),
		NewDatabaseCollector(s, metrics),
		NewGraphDatabaseCollector(s, metrics),
		NewBucketCollector(s, opts.StaleUploadDays),
	}
	out := make([]collect.Collector, 0, len(raw))
	for _, c := range raw {
		out = append(out, collect.WithRetry(c, opts.RetryBudget))
	}
	return out
}
