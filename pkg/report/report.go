// Package report renders findings for humans and machines: JSON and CSV
// exports for pipelines, a styled terminal summary for interactive use.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
)

// Document is the export envelope. GeneratedAt is injected by the caller
// so exports stay reproducible in tests.
type Document struct {
	AccountID   string             `json:"account_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Totals      Totals             `json:"totals"`
	Findings    []findings.Finding `json:"findings"`
}

// Totals aggregates the document's findings.
type Totals struct {
	Open             int                       `json:"open"`
	Resolved         int                       `json:"resolved"`
	MonthlyWaste     float64                   `json:"monthly_waste"`
	AlreadyWasted    float64                   `json:"already_wasted"`
	ByConfidence     map[detect.Confidence]int `json:"by_confidence"`
	UnpricedFindings int                       `json:"unpriced_findings"`
}

// Build assembles the export document from a finding list.
func Build(accountID string, all []findings.Finding, generatedAt time.Time) Document {
	totals := Totals{ByConfidence: make(map[detect.Confidence]int)}
	for _, f := range all {
		switch f.Status {
		case findings.StatusOpen:
			totals.Open++
			totals.ByConfidence[f.Confidence]++
			if f.MonthlyWaste != nil {
				totals.MonthlyWaste += *f.MonthlyWaste
			} else {
				totals.UnpricedFindings++
			}
			if f.AlreadyWasted != nil {
				totals.AlreadyWasted += *f.AlreadyWasted
			}
		case findings.StatusResolved:
			totals.Resolved++
		}
	}
	return Document{
		AccountID:   accountID,
		GeneratedAt: generatedAt.UTC(),
		Totals:      totals,
		Findings:    all,
	}
}

// WriteJSON writes the document as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

var csvHeader = []string{
	"account_id", "identity_key", "scenario", "resource_family", "region",
	"native_id", "status", "severity", "confidence", "monthly_waste",
	"already_wasted", "first_seen", "last_seen", "reason",
}

// WriteCSV writes one row per finding. Unpriced cost columns stay empty
// rather than rendering as zero.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range doc.Findings {
		row := []string{
			f.AccountID, f.IdentityKey, f.Scenario, string(f.Family), f.Region,
			f.NativeID, string(f.Status), strconv.Itoa(f.Severity), string(f.Confidence),
			money(f.MonthlyWaste), money(f.AlreadyWasted),
			f.FirstSeen.UTC().Format(time.RFC3339), f.LastSeen.UTC().Format(time.RFC3339),
			f.Reason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

// TopWaste returns the n open findings with the largest monthly waste,
// priced findings first.
func TopWaste(all []findings.Finding, n int) []findings.Finding {
	open := make([]findings.Finding, 0, len(all))
	for _, f := range all {
		if f.Status == findings.StatusOpen {
			open = append(open, f)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		wi, wj := -1.0, -1.0
		if open[i].MonthlyWaste != nil {
			wi = *open[i].MonthlyWaste
		}
		if open[j].MonthlyWaste != nil {
			wj = *open[j].MonthlyWaste
		}
		return wi > wj
	})
	if len(open) > n {
		open = open[:n]
	}
	return open
}
