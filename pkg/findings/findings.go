// Package findings holds the durable detection results. A finding is the
// long-lived identity of one (account, resource, scenario) observation:
// repeated scans update it in place rather than piling up duplicates, and
// resources that stop matching are resolved, never deleted.
package findings

import (
	"time"

	"github.com/google/uuid"

	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// Status tracks a finding through its lifecycle.
type Status string

const (
	// StatusOpen means the last scan still observed the waste condition.
	StatusOpen Status = "open"
	// StatusResolved means a later scan no longer observed it.
	StatusResolved Status = "resolved"
)

// Finding is one persisted detection for one resource.
type Finding struct {
	ID          string             `json:"id"`
	AccountID   string             `json:"account_id"`
	IdentityKey string             `json:"identity_key"`
	Scenario    string             `json:"scenario"`
	Family      inventory.Family   `json:"resource_family"`
	Provider    inventory.Provider `json:"provider"`
	Region      string             `json:"region"`
	NativeID    string             `json:"native_id"`

	Severity      int                `json:"severity"`
	Confidence    detect.Confidence  `json:"confidence"`
	Reason        string             `json:"reason"`
	Signals       map[string]float64 `json:"signals,omitempty"`
	MonthlyWaste  *float64           `json:"monthly_waste,omitempty"`
	AlreadyWasted *float64           `json:"already_wasted,omitempty"`

	Status    Status    `json:"status"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	// ResolvedAt is set once when the finding transitions to resolved.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// key is the stable upsert identity within one account document.
func (f Finding) key() string {
	return f.IdentityKey + "|" + f.Scenario
}

// New assembles a finding from a record and its detection. The ID is
// random; identity across scans comes from (account, identity key,
// scenario), not from the ID.
func New(accountID string, rec inventory.Record, d detect.Detection, now time.Time) Finding {
	return Finding{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		IdentityKey:   rec.IdentityKey,
		Scenario:      d.Scenario,
		Family:        rec.Family,
		Provider:      rec.Provider,
		Region:        rec.Region,
		NativeID:      rec.NativeID,
		Severity:      d.Severity,
		Confidence:    d.Confidence,
		Reason:        d.Reason,
		Signals:       d.Signals,
		MonthlyWaste:  d.MonthlyWaste,
		AlreadyWasted: d.AlreadyWasted,
		Status:        StatusOpen,
		FirstSeen:     now,
		LastSeen:      now,
	}
}
