package catalog

import (
	"fmt"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// NoBackendTargets detects load balancers with zero registered backends.
type NoBackendTargets struct{}

func (s *NoBackendTargets) Name() string             { return "no-backend-targets" }
func (s *NoBackendTargets) Family() inventory.Family { return inventory.FamilyLoadBalancer }
func (s *NoBackendTargets) Severity() int            { return 85 }
func (s *NoBackendTargets) CostFraction() float64    { return 1.0 }

func (s *NoBackendTargets) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	targets := rec.Signal(inventory.SignalBackendTargets)
	if targets == nil || *targets > 0 {
		return Match{}, false
	}
	return Match{
		Reason:  "load balancer has 0 backend targets",
		Signals: map[string]float64{inventory.SignalBackendTargets: 0},
	}, true
}

// NoTraffic detects load balancers whose request count over the lookback
// window falls below the configured floor.
type NoTraffic struct{}

func (s *NoTraffic) Name() string             { return "no-traffic" }
func (s *NoTraffic) Family() inventory.Family { return inventory.FamilyLoadBalancer }
func (s *NoTraffic) Severity() int            { return 70 }
func (s *NoTraffic) CostFraction() float64    { return 1.0 }

func (s *NoTraffic) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	requests := rec.Signal(inventory.SignalRequestCount)
	if requests == nil || *requests >= rule.RequestFloor {
		return Match{}, false
	}
	return Match{
		Reason:  fmt.Sprintf("only %.0f requests observed, below the floor of %.0f", *requests, rule.RequestFloor),
		Signals: map[string]float64{inventory.SignalRequestCount: *requests},
	}, true
}

// UnassociatedAddress detects reserved static IPs not bound to anything.
type UnassociatedAddress struct{}

func (s *UnassociatedAddress) Name() string             { return "unassociated-address" }
func (s *UnassociatedAddress) Family() inventory.Family { return inventory.FamilyStaticIP }
func (s *UnassociatedAddress) Severity() int            { return 50 }
func (s *UnassociatedAddress) CostFraction() float64    { return 1.0 }

func (s *UnassociatedAddress) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State != "unassociated" {
		return Match{}, false
	}
	signals := map[string]float64{}
	reason := "static IP is reserved but not associated"
	if rec.AgeDays != nil {
		signals["age_days"] = *rec.AgeDays
		reason = fmt.Sprintf("static IP has been unassociated for %.0f days", *rec.AgeDays)
	}
	return Match{Reason: reason, Signals: signals}, true
}
