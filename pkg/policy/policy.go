// Package policy lets tenants define custom detection scenarios as CEL
// expressions, evaluated alongside the built-in catalog. Expressions see
// the normalized record, never provider wire types, so one policy works
// across clouds.
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	"github.com/cloudvigil/cloudvigil/pkg/catalog"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
)

// CustomScenario is a tenant-authored detection predicate.
type CustomScenario struct {
	// Name must be unique across the tenant's custom scenarios and must
	// not collide with a built-in scenario name.
	Name string `json:"name" yaml:"name"`
	// TargetFamily scopes the expression to one resource family.
	TargetFamily inventory.Family `json:"resource_family" yaml:"resource_family"`
	// Condition is a CEL expression over the record, for example
	// "state == 'available' && age_days > 30.0 && !('owner' in tags)".
	Condition string `json:"condition" yaml:"condition"`
	// Reason is attached verbatim to matches.
	Reason string `json:"reason" yaml:"reason"`
	// Severity is the base risk score (0-100).
	Severity int `json:"severity" yaml:"severity"`
	// CostFraction scales the monthly price into the waste estimate.
	CostFraction float64 `json:"cost_fraction" yaml:"cost_fraction"`
}

// Engine compiles custom scenarios into catalog.Scenario values.
type Engine struct {
	env *cel.Env
}

// NewEngine initializes the CEL environment with the record variables
// custom scenarios may reference.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("native_id", decls.String),
			decls.NewVar("region", decls.String),
			decls.NewVar("state", decls.String),
			decls.NewVar("age_days", decls.Double),
			decls.NewVar("age_known", decls.Bool),
			decls.NewVar("tags", decls.NewMapType(decls.String, decls.String)),
			decls.NewVar("signals", decls.NewMapType(decls.String, decls.Double)),
			decls.NewVar("capacity_gb", decls.Int),
			decls.NewVar("tier", decls.String),
			decls.NewVar("engine", decls.String),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Engine{env: env}, nil
}

// Compile validates and compiles one custom scenario.
func (e *Engine) Compile(cs CustomScenario) (catalog.Scenario, error) {
	if cs.Name == "" {
		return nil, fmt.Errorf("custom scenario needs a name")
	}
	if cs.Severity < 0 || cs.Severity > 100 {
		return nil, fmt.Errorf("scenario %s: severity must be within [0,100], got %d", cs.Name, cs.Severity)
	}
	if cs.CostFraction < 0 || cs.CostFraction > 1 {
		return nil, fmt.Errorf("scenario %s: cost_fraction must be within [0,1], got %g", cs.Name, cs.CostFraction)
	}

	ast, issues := e.env.Compile(cs.Condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("scenario %s compilation error: %w", cs.Name, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("scenario %s program creation error: %w", cs.Name, err)
	}

	return &celScenario{spec: cs, prg: prg}, nil
}

// CompileAll compiles a batch, failing on the first invalid scenario so
// a tenant upload is accepted or rejected as a unit.
func (e *Engine) CompileAll(specs []CustomScenario) ([]catalog.Scenario, error) {
	out := make([]catalog.Scenario, 0, len(specs))
	for _, cs := range specs {
		s, err := e.Compile(cs)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type celScenario struct {
	spec CustomScenario
	prg  cel.Program
}

func (s *celScenario) Name() string             { return s.spec.Name }
func (s *celScenario) Family() inventory.Family { return s.spec.TargetFamily }
func (s *celScenario) Severity() int            { return s.spec.Severity }
func (s *celScenario) CostFraction() float64    { return s.spec.CostFraction }

func (s *celScenario) Evaluate(rec inventory.Record, rule rules.DetectionRule) (catalog.Match, bool) {
	out, _, err := s.prg.Eval(recordVars(rec))
	if err != nil {
		// Runtime errors (missing map keys and the like) mean "no match";
		// the expression was already type-checked at compile time.
		return catalog.Match{}, false
	}
	match, ok := out.Value().(bool)
	if !ok || !match {
		return catalog.Match{}, false
	}

	signals := map[string]float64{}
	if rec.AgeDays != nil {
		signals["age_days"] = *rec.AgeDays
	}
	reason := s.spec.Reason
	if reason == "" {
		reason = fmt.Sprintf("matched custom policy %s", s.spec.Name)
	}
	return catalog.Match{Reason: reason, Signals: signals}, true
}

// recordVars flattens a record into the CEL variable set. Unknown age is
// exposed as age_known=false with age_days=0 so expressions can opt into
// either treatment.
func recordVars(rec inventory.Record) map[string]any {
	age := 0.0
	known := false
	if rec.AgeDays != nil {
		age = *rec.AgeDays
		known = true
	}

	tags := map[string]string{}
	for k, v := range rec.Tags {
		tags[k] = v
	}
	signals := map[string]float64{}
	for k, v := range rec.Signals {
		if v != nil {
			signals[k] = *v
		}
	}

	return map[string]any{
		"native_id":   rec.NativeID,
		"region":      rec.Region,
		"state":       rec.State,
		"age_days":    age,
		"age_known":   known,
		"tags":        tags,
		"signals":     signals,
		"capacity_gb": rec.Size.CapacityGB,
		"tier":        rec.Size.Tier,
		"engine":      rec.Size.Engine,
	}
}
