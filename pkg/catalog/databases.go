package catalog

import (
	"fmt"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// StoppedDatabase detects database instances left in a stopped state,
// which still bill for allocated storage.
type StoppedDatabase struct{}

func (s *StoppedDatabase) Name() string             { return "stopped-database" }
func (s *StoppedDatabase) Family() inventory.Family { return inventory.FamilyRelationalDatabase }
func (s *StoppedDatabase) Severity() int            { return 80 }
func (s *StoppedDatabase) CostFraction() float64    { return 0.6 }

func (s *StoppedDatabase) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State != "stopped" {
		return Match{}, false
	}
	signals := map[string]float64{}
	reason := "database instance is stopped"
	if rec.AgeDays != nil {
		signals["age_days"] = *rec.AgeDays
		reason = fmt.Sprintf("database has been stopped for %.0f days", *rec.AgeDays)
	}
	return Match{Reason: reason, Signals: signals}, true
}

// ZeroConnections detects running databases whose peak connection count
// over the lookback window never exceeded the configured floor.
type ZeroConnections struct{}

func (s *ZeroConnections) Name() string             { return "zero-connections" }
func (s *ZeroConnections) Family() inventory.Family { return inventory.FamilyRelationalDatabase }
func (s *ZeroConnections) Severity() int            { return 60 }
func (s *ZeroConnections) CostFraction() float64    { return 1.0 }

func (s *ZeroConnections) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	if rec.State != "running" && rec.State != "available" {
		return Match{}, false
	}
	conns := rec.Signal(inventory.SignalConnectionsMax)
	if conns == nil || *conns > rule.ConnectionFloor {
		return Match{}, false
	}
	return Match{
		Reason:  fmt.Sprintf("peak connections %.0f never exceeded the floor of %.0f", *conns, rule.ConnectionFloor),
		Signals: map[string]float64{inventory.SignalConnectionsMax: *conns},
	}, true
}

// IdleGraphDatabase detects graph-database clusters with no client
// connections over the lookback window.
type IdleGraphDatabase struct{}

func (s *IdleGraphDatabase) Name() string             { return "idle-graph-database" }
func (s *IdleGraphDatabase) Family() inventory.Family { return inventory.FamilyGraphDatabase }
func (s *IdleGraphDatabase) Severity() int            { return 65 }
func (s *IdleGraphDatabase) CostFraction() float64    { return 1.0 }

func (s *IdleGraphDatabase) Evaluate(rec inventory.Record, rule rules.DetectionRule) (Match, bool) {
	conns := rec.Signal(inventory.SignalConnectionsMax)
	if conns == nil || *conns > rule.ConnectionFloor {
		return Match{}, false
	}
	return Match{
		Reason:  fmt.Sprintf("graph cluster saw %.0f peak connections over the lookback window", *conns),
		Signals: map[string]float64{inventory.SignalConnectionsMax: *conns},
	}, true
}
