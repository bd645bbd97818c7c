// Package detect runs the scenario catalog over normalized records and
// turns raw matches into detections carrying confidence and cost. It is
// the only place confidence tiers and waste estimates are computed, so
// every surface (CLI, API, exports) reports identical numbers.
package detect

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cloudvigil/cloudvigil/pkg/catalog"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/pricing"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// Confidence grades how certain the engine is that a detection reflects
// real waste rather than a resource mid-provisioning or between uses.
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceHigh     Confidence = "high"
	ConfidenceCritical Confidence = "critical"
)

// Rank orders confidence tiers for comparison and sorting.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceCritical:
		return 3
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Detection is one scenario match, fully priced and graded. A record can
// yield several detections, one per matching scenario.
type Detection struct {
	Scenario   string             `json:"scenario"`
	Family     inventory.Family   `json:"resource_family"`
	Severity   int                `json:"severity"`
	Confidence Confidence         `json:"confidence"`
	Reason     string             `json:"reason"`
	Signals    map[string]float64 `json:"signals,omitempty"`

	// MonthlyWaste is the estimated recoverable spend per month, in USD.
	// Nil when no price is available; a missing price never suppresses
	// the detection itself.
	MonthlyWaste *float64 `json:"monthly_waste,omitempty"`

	// AlreadyWasted estimates spend accrued to date, derived from the
	// monthly figure and resource age. Nil when either input is unknown.
	AlreadyWasted *float64 `json:"already_wasted,omitempty"`
}

// Evaluator binds a scenario catalog to a price source.
type Evaluator struct {
	catalog *catalog.Catalog
	prices  pricing.Source
	logger  *slog.Logger
}

func NewEvaluator(cat *catalog.Catalog, prices pricing.Source, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{catalog: cat, prices: prices, logger: logger}
}

// Evaluate runs every scenario of the record's family against the
// effective rule. The enabled and minimum-age gates apply here, centrally,
// so individual scenarios stay pure threshold predicates.
func (e *Evaluator) Evaluate(ctx context.Context, rec inventory.Record, rule rules.DetectionRule) []Detection {
	_, span := otel.Tracer("cloudvigil/detect").Start(ctx, "detect.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("resource.family", string(rec.Family)),
		attribute.String("resource.identity_key", rec.IdentityKey),
	)

	if !rule.Enabled {
		return nil
	}
	// A resource younger than the floor is presumed mid-provisioning.
	// Unknown age passes the gate; the low confidence tier carries the
	// uncertainty instead of hiding the resource entirely.
	if rec.AgeDays != nil && *rec.AgeDays < float64(rule.MinAgeDays) {
		return nil
	}

	scenarios := e.catalog.Scenarios(rec.Family)
	if len(scenarios) == 0 {
		return nil
	}

	monthly, priced := e.price(ctx, rec)

	var out []Detection
	for _, s := range scenarios {
		m, ok := s.Evaluate(rec, rule)
		if !ok {
			continue
		}
		d := Detection{
			Scenario:   s.Name(),
			Family:     rec.Family,
			Severity:   s.Severity(),
			Confidence: confidenceFor(rec.AgeDays, rule),
			Reason:     m.Reason,
			Signals:    m.Signals,
		}
		if priced {
			waste := monthly * s.CostFraction()
			d.MonthlyWaste = &waste
			if accrued, ok := alreadyWasted(waste, rec.AgeDays); ok {
				d.AlreadyWasted = &accrued
			}
		}
		out = append(out, d)
	}
	span.SetAttributes(attribute.Int("detect.matches", len(out)))
	return out
}

func (e *Evaluator) price(ctx context.Context, rec inventory.Record) (float64, bool) {
	if e.prices == nil {
		return 0, false
	}
	monthly, err := e.prices.MonthlyCost(ctx, rec.Family, rec.Region, rec.Size)
	if err != nil {
		if !errors.Is(err, pricing.ErrPriceUnavailable) {
			e.logger.Warn("price lookup failed",
				"identity_key", rec.IdentityKey,
				"error", err)
		}
		return 0, false
	}
	return monthly, true
}

// confidenceFor picks the highest tier whose age threshold the resource
// meets. Unknown age always grades low: without an age there is no
// evidence of sustained waste.
func confidenceFor(ageDays *float64, rule rules.DetectionRule) Confidence {
	if ageDays == nil {
		return ConfidenceLow
	}
	age := *ageDays
	switch {
	case age >= float64(rule.ConfidenceCriticalDays):
		return ConfidenceCritical
	case age >= float64(rule.ConfidenceHighDays):
		return ConfidenceHigh
	case age >= float64(rule.ConfidenceMediumDays):
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// alreadyWasted prorates the monthly estimate over the resource's age at
// a 30-day month. Clamped at zero; ages are already clamped upstream but
// the estimate must never go negative regardless.
func alreadyWasted(monthly float64, ageDays *float64) (float64, bool) {
	if ageDays == nil {
		return 0, false
	}
	accrued := monthly / 30.0 * *ageDays
	if accrued < 0 {
		accrued = 0
	}
	return accrued, true
}
