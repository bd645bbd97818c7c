package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/cloudvigil/cloudvigil/pkg/catalog"
	"github.com/cloudvigil/cloudvigil/pkg/collect"
	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// Orchestrator drives scan runs. At most one run per account may be in
// flight; family pipelines within a run execute concurrently up to the
// configured limit.
type Orchestrator struct {
	catalog   *catalog.Catalog
	rules     *rules.Store
	evaluator *detect.Evaluator
	findings  *findings.Store
	logger    *slog.Logger

	concurrency int
	now         func() time.Time

	mu      sync.Mutex
	runs    map[string]*Run
	active  map[string]string // accountID -> in-flight run ID
	cancels map[string]context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency caps the number of family pipelines running at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(cat *catalog.Catalog, ruleStore *rules.Store, eval *detect.Evaluator, findingStore *findings.Store, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		catalog:     cat,
		rules:       ruleStore,
		evaluator:   eval,
		findings:    findingStore,
		logger:      logger,
		concurrency: 4,
		now:         time.Now,
		runs:        make(map[string]*Run),
		active:      make(map[string]string),
		cancels:     make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartScan launches an asynchronous run over the given collectors and
// returns its ID. A second scan of an account already being scanned is
// rejected with ErrScanInProgress.
func (o *Orchestrator) StartScan(ctx context.Context, account CloudAccount, collectors []collect.Collector) (string, error) {
	o.mu.Lock()
	if runID, busy := o.active[account.ID]; busy {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: run %s", ErrScanInProgress, runID)
	}

	run := &Run{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TenantID:  account.TenantID,
		Status:    StatusPending,
		StartedAt: o.now(),
		Families:  make(map[inventory.Family]FamilyResult),
	}
	o.runs[run.ID] = run
	o.active[account.ID] = run.ID

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancels[run.ID] = cancel
	o.mu.Unlock()

	go o.execute(runCtx, run.ID, account, collectors)
	return run.ID, nil
}

// Progress returns a snapshot of the run.
func (o *Orchestrator) Progress(runID string) (Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run.clone(), nil
}

// Runs snapshots every known run, newest first.
func (o *Orchestrator) Runs() []Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Run, 0, len(o.runs))
	for _, r := range o.runs {
		out = append(out, r.clone())
	}
	return out
}

// Cancel aborts an in-flight run. Cancelling a terminal run is a no-op.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status.Terminal() {
		return nil
	}
	if cancel, ok := o.cancels[runID]; ok {
		cancel()
	}
	return nil
}

// Wait blocks until the run reaches a terminal state or the context
// expires. CLI scans use it; the API polls Progress instead. A run that
// completed with one or more failed family pipelines is returned together
// with an error wrapping ErrPartialResult; its findings are still valid.
func (o *Orchestrator) Wait(ctx context.Context, runID string) (Run, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		run, err := o.Progress(runID)
		if err != nil {
			return Run{}, err
		}
		if run.Status.Terminal() {
			if run.Status == StatusCompleted {
				for _, fr := range run.Families {
					if fr.Error != "" {
						return run, &RunError{RunID: run.ID, Err: ErrPartialResult}
					}
				}
			}
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) execute(ctx context.Context, runID string, account CloudAccount, collectors []collect.Collector) {
	ctx, span := otel.Tracer("cloudvigil/scan").Start(ctx, "scan.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("scan.run_id", runID),
		attribute.String("scan.account_id", account.ID),
	)

	o.updateRun(runID, func(r *Run) { r.Status = StatusInProgress })
	logger := o.logger.With("run_id", runID, "account_id", account.ID)
	logger.Info("scan started", "families", len(collectors))

	// The rule snapshot is taken once; override writes during the run do
	// not affect it.
	ruleSet, err := o.rules.EffectiveRules(ctx, account.TenantID)
	if err != nil {
		o.finish(runID, StatusFailed, fmt.Sprintf("loading rules: %v", err))
		return
	}

	payloads, credErr := o.collectAll(ctx, runID, logger, collectors)
	if credErr != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			o.finish(runID, StatusCancelled, "")
			return
		}
		o.finish(runID, StatusFailed, credErr.Error())
		return
	}
	if ctx.Err() != nil {
		o.finish(runID, StatusCancelled, "")
		return
	}

	records := o.assemble(runID, logger, payloads)
	observed := o.evaluate(ctx, runID, account, ruleSet, records)

	if err := o.findings.Reconcile(ctx, account.ID, observed, o.now()); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			o.finish(runID, StatusCancelled, "")
			return
		}
		o.finish(runID, StatusFailed, fmt.Sprintf("persisting findings: %v", err))
		return
	}

	o.finish(runID, StatusCompleted, "")
	run, _ := o.Progress(runID)
	logger.Info("scan completed",
		"records", run.TotalRecords,
		"findings", run.TotalFindings,
		"warnings", len(run.Warnings))
}

// collectAll fans the collectors out with bounded parallelism. A family
// failure is captured in its FamilyResult and does not stop the others;
// a credential failure aborts everything.
func (o *Orchestrator) collectAll(ctx context.Context, runID string, logger *slog.Logger, collectors []collect.Collector) (map[inventory.Family][]inventory.Payload, error) {
	var (
		mu       sync.Mutex
		payloads = make(map[inventory.Family][]inventory.Payload)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, c := range collectors {
		g.Go(func() error {
			family := c.Family()
			started := o.now()

			got, err := c.Collect(gctx)
			elapsed := o.now().Sub(started)

			result := FamilyResult{Family: family, StartedAt: started, Elapsed: elapsed}
			if err != nil {
				var credErr *collect.CredentialError
				if errors.As(err, &credErr) {
					return credErr
				}
				logger.Error("family collection failed", "family", family, "error", err)
				result.Error = err.Error()
				o.updateRun(runID, func(r *Run) { r.Families[family] = r.Families[family].merge(result) })
				return nil
			}

			result.Records = len(got)
			o.updateRun(runID, func(r *Run) { r.Families[family] = r.Families[family].merge(result) })

			mu.Lock()
			payloads[family] = append(payloads[family], got...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// assemble filters, normalizes and deduplicates the collected payloads
// into the canonical per-run record set.
func (o *Orchestrator) assemble(runID string, logger *slog.Logger, byFamily map[inventory.Family][]inventory.Payload) []inventory.Record {
	var all []inventory.Payload
	for _, family := range inventory.Families() {
		all = append(all, byFamily[family]...)
	}

	kept, dropped := inventory.Filter(all, o.catalog.Exclusions())
	for _, reason := range dropped {
		logger.Debug("payload excluded", "reason", reason)
	}

	records, normErrs := inventory.NormalizeAll(kept)
	for _, err := range normErrs {
		logger.Warn("payload dropped during normalization", "error", err)
	}

	records, dupes := inventory.Deduplicate(records)
	o.updateRun(runID, func(r *Run) {
		for _, err := range normErrs {
			r.Warnings = append(r.Warnings, err.Error())
		}
		for _, w := range dupes {
			logger.Warn("duplicate identity collision", "error", w.Error())
			r.Warnings = append(r.Warnings, w.Error())
		}
		r.TotalRecords = len(records)
	})
	return records
}

func (o *Orchestrator) evaluate(ctx context.Context, runID string, account CloudAccount, ruleSet map[inventory.Family]rules.DetectionRule, records []inventory.Record) []findings.Finding {
	now := o.now()
	var observed []findings.Finding
	perFamily := make(map[inventory.Family]int)

	for _, rec := range records {
		rule, ok := ruleSet[rec.Family]
		if !ok {
			continue
		}
		for _, d := range o.evaluator.Evaluate(ctx, rec, rule) {
			observed = append(observed, findings.New(account.ID, rec, d, now))
			perFamily[rec.Family]++
		}
	}

	o.updateRun(runID, func(r *Run) {
		r.TotalFindings = len(observed)
		for family, n := range perFamily {
			fr := r.Families[family]
			fr.Family = family
			fr.Findings = n
			r.Families[family] = fr
		}
	})
	return observed
}

func (o *Orchestrator) updateRun(runID string, fn func(*Run)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if run, ok := o.runs[runID]; ok {
		fn(run)
	}
}

// finish moves the run to a terminal state and releases the account's
// scan slot in the same critical section, so a caller observing the
// terminal status can immediately start a new scan.
func (o *Orchestrator) finish(runID string, status Status, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.runs[runID]
	if !ok {
		return
	}
	if !run.Status.Terminal() {
		run.Status = status
		run.FailureReason = reason
		t := o.now()
		run.EndedAt = &t
	}
	if o.active[run.AccountID] == runID {
		delete(o.active, run.AccountID)
	}
	delete(o.cancels, runID)
}
