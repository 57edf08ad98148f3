package policy

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/dealforge/governor/pkg/contracts"
)

// FreezeTriggers evaluates a profile's trigger rules against a deal and its
// freshly computed risk score. Rules are tried in document order and the
// first match wins. Programs are compiled once and cached.
type FreezeTriggers struct {
	env   *cel.Env
	rules []TriggerRule

	mu       sync.RWMutex
	prgCache map[string]cel.Program
	clock    func() time.Time
}

// NewFreezeTriggers builds the evaluator for a profile's rules. Expressions
// are compiled eagerly so a broken profile fails at load time, not on the
// first scoring pass.
func NewFreezeTriggers(rules []TriggerRule) (*FreezeTriggers, error) {
	env, err := cel.NewEnv(
		cel.Variable("deal", cel.DynType),
		cel.Variable("risk", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create trigger environment: %w", err)
	}

	ft := &FreezeTriggers{
		env:      env,
		rules:    rules,
		prgCache: make(map[string]cel.Program, len(rules)),
		clock:    time.Now,
	}
	for _, rule := range rules {
		if _, err := ft.program(rule.Expression); err != nil {
			return nil, contracts.NewValidation(
				fmt.Sprintf("trigger %q: %v", rule.Name, err))
		}
	}
	return ft, nil
}

// WithClock overrides the clock for deterministic testing.
func (ft *FreezeTriggers) WithClock(clock func() time.Time) *FreezeTriggers {
	ft.clock = clock
	return ft
}

// Evaluate runs the rules in order and returns the reason code of the first
// rule that fires.
func (ft *FreezeTriggers) Evaluate(deal contracts.Deal, score contracts.RiskScore) (contracts.ReasonCode, bool, error) {
	input := ft.input(deal, score)
	for _, rule := range ft.rules {
		fired, err := ft.evaluateExpr(rule.Expression, input)
		if err != nil {
			return "", false, fmt.Errorf("trigger %q: %w", rule.Name, err)
		}
		if fired {
			return contracts.ReasonCode(rule.Reason), true, nil
		}
	}
	return "", false, nil
}

func (ft *FreezeTriggers) input(deal contracts.Deal, score contracts.RiskScore) map[string]any {
	now := ft.clock()
	return map[string]any{
		"deal": map[string]any{
			"id":              deal.ID,
			"stage":           string(deal.Stage),
			"forecast":        string(deal.Forecast),
			"amount_micros":   int64(deal.Amount),
			"enforcement":     string(deal.Enforcement),
			"has_close_date":  deal.CloseDate != nil,
			"close_date_past": deal.CloseDate != nil && deal.CloseDate.Before(now),
		},
		"risk": map[string]any{
			"total": score.Total,
			"state": string(score.State),
		},
	}
}

func (ft *FreezeTriggers) program(expr string) (cel.Program, error) {
	ft.mu.RLock()
	prg, hit := ft.prgCache[expr]
	ft.mu.RUnlock()
	if hit {
		return prg, nil
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()
	if prg, hit = ft.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := ft.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := ft.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	ft.prgCache[expr] = prg
	return prg, nil
}

func (ft *FreezeTriggers) evaluateExpr(expr string, input map[string]any) (bool, error) {
	prg, err := ft.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not yield a boolean")
	}
	return val, nil
}
