// Package scan orchestrates full detection runs: fan out family
// pipelines, evaluate records, reconcile findings, and track run state
// for the API and CLI.
package scan

import (
	"errors"
	"fmt"
	"time"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// CloudAccount identifies one scannable account and the tenant whose
// rule overrides apply to it.
type CloudAccount struct {
	ID       string             `json:"id"`
	TenantID string             `json:"tenant_id"`
	Provider inventory.Provider `json:"provider"`
	Regions  []string           `json:"regions,omitempty"`
}

// Status is the lifecycle state of a scan run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the run can no longer change state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// FamilyResult records one family pipeline's outcome inside a run.
type FamilyResult struct {
	Family    inventory.Family `json:"resource_family"`
	Records   int              `json:"records"`
	Findings  int              `json:"findings"`
	Error     string           `json:"error,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// merge folds another sub-result for the same family into r. Multi-region
// scans run one collector per family per region; outcomes aggregate so no
// region's error or record count is lost.
func (r FamilyResult) merge(other FamilyResult) FamilyResult {
	out := other
	out.Records = r.Records + other.Records
	out.Findings = r.Findings + other.Findings
	if r.Error != "" {
		out.Error = r.Error
		if other.Error != "" {
			out.Error = r.Error + "; " + other.Error
		}
	}
	if !r.StartedAt.IsZero() && r.StartedAt.Before(other.StartedAt) {
		out.StartedAt = r.StartedAt
	}
	out.Elapsed = r.Elapsed + other.Elapsed
	return out
}

// Run is the observable state of one scan. Progress returns copies, so
// readers never see a run mid-mutation.
type Run struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	TenantID  string     `json:"tenant_id"`
	Status    Status     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Families map[inventory.Family]FamilyResult `json:"families,omitempty"`

	// Warnings carry non-fatal pipeline notes: dropped payloads,
	// duplicate collisions outside the exclusion registry.
	Warnings []string `json:"warnings,omitempty"`

	TotalRecords  int    `json:"total_records"`
	TotalFindings int    `json:"total_findings"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (r *Run) clone() Run {
	out := *r
	out.Families = make(map[inventory.Family]FamilyResult, len(r.Families))
	for k, v := range r.Families {
		out.Families[k] = v
	}
	out.Warnings = append([]string(nil), r.Warnings...)
	return out
}

// ErrScanInProgress rejects a second concurrent scan of the same account.
var ErrScanInProgress = errors.New("scan already in progress for account")

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("scan run not found")

// ErrPartialResult marks a completed run in which at least one family
// pipeline failed. The findings that were produced are valid.
var ErrPartialResult = errors.New("scan completed with partial results")

// RunError wraps a run-scoped failure with its run ID.
type RunError struct {
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s: %v", e.RunID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
