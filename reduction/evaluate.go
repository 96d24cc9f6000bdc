// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reduction

import (
	"context"
	"errors"
	"time"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/expr"
)

// FormulaSource resolves formula documents. Client-scoped formulas
// shadow global ones; a deleted formula returns FormulaNotFound.
type FormulaSource interface {
	Formula(ctx context.Context, clientID, formulaID string) (*Formula, error)
}

// EntryInput is the methodology payload of one ingested data point.
type EntryInput struct {
	// Value is the M1 activity value.
	Value *float64
	// Variables binds realtime/manual M2 symbols.
	Variables map[string]float64
	// Items binds manual M3 variables: itemID -> name -> value.
	Items map[string]map[string]float64
}

// EvalResult is the outcome of evaluating one entry.
type EvalResult struct {
	NetReduction float64

	// M1 detail.
	InputValue float64
	Rate       float64

	// M2 detail.
	FormulaID    string
	Binding      map[string]float64
	NetInFormula float64

	// M3 detail.
	M3 *M3Result
}

// Evaluator dispatches on the project methodology and produces the
// entry's net reduction plus its per-methodology breakdown.
type Evaluator struct {
	formulas FormulaSource
	cache    *expr.Cache
}

// NewEvaluator builds an evaluator over the given formula source. The
// program cache is shared across all evaluations.
func NewEvaluator(formulas FormulaSource) *Evaluator {
	return &Evaluator{formulas: formulas, cache: expr.NewCache()}
}

// InvalidateFormula drops cached programs after a formula update.
func (ev *Evaluator) InvalidateFormula(formulaID string) {
	ev.cache.Invalidate(formulaID)
}

// Evaluate computes the net reduction of a single entry at instant ts.
// Any missing variable, unresolvable frozen symbol, unparseable
// expression or non-numeric manual input fails this entry alone.
func (ev *Evaluator) Evaluate(ctx context.Context, p *Project, in EntryInput, ts time.Time) (*EvalResult, error) {
	switch p.Methodology {
	case MethodologyM1:
		return ev.evaluateM1(p, in)
	case MethodologyM2:
		return ev.evaluateM2(ctx, p, in, ts)
	case MethodologyM3:
		return ev.evaluateM3(ctx, p, in)
	}
	return nil, Errorf(KindValidation, "project %s has unknown methodology %q", p.ProjectID, p.Methodology)
}

func (ev *Evaluator) evaluateM1(p *Project, in EntryInput) (*EvalResult, error) {
	if p.M1 == nil {
		return nil, Errorf(KindValidation, "project %s has no M1 configuration", p.ProjectID)
	}
	if in.Value == nil {
		return nil, Errorf(KindValidation, "value is required for an M1 entry")
	}
	rate := p.M1.EmissionReductionRate
	return &EvalResult{
		NetReduction: Round6(*in.Value * rate),
		InputValue:   *in.Value,
		Rate:         rate,
	}, nil
}

func (ev *Evaluator) evaluateM2(ctx context.Context, p *Project, in EntryInput, ts time.Time) (*EvalResult, error) {
	if p.M2 == nil {
		return nil, Errorf(KindValidation, "project %s has no M2 configuration", p.ProjectID)
	}
	ref := p.M2.FormulaRef

	binding := make(map[string]float64, len(in.Variables)+len(ref.VariableKinds))
	for name, v := range in.Variables {
		binding[name] = v
	}
	for symbol, role := range ref.VariableKinds {
		if role != RoleFrozen {
			continue
		}
		v, err := ResolveFrozen(p, symbol, ts)
		if err != nil {
			return nil, err
		}
		binding[symbol] = v
	}

	prog, err := ev.program(ctx, p.ClientID, ref.FormulaID)
	if err != nil {
		return nil, err
	}
	if missing := prog.MissingBindings(binding); len(missing) > 0 {
		return nil, Errorf(KindMissingVariable, "missing variable %q", missing[0])
	}
	netInFormula, err := prog.Evaluate(binding)
	if err != nil {
		return nil, ev.mapExprError(err)
	}

	net := Round6(netInFormula - p.M2.LE)
	return &EvalResult{
		NetReduction: net,
		FormulaID:    ref.FormulaID,
		Binding:      binding,
		NetInFormula: Round6(netInFormula),
	}, nil
}

// m3Evaluation carries the per-entry state of an M3 evaluation:
// memoized item values plus the visiting set for cycle detection.
type m3Evaluation struct {
	ev       *Evaluator
	ctx      context.Context
	project  *Project
	input    EntryInput
	items    map[string]*M3Item
	values   map[string]float64
	visiting map[string]bool
}

func (ev *Evaluator) evaluateM3(ctx context.Context, p *Project, in EntryInput) (*EvalResult, error) {
	if p.M3 == nil {
		return nil, Errorf(KindValidation, "project %s has no M3 configuration", p.ProjectID)
	}
	m := p.M3

	e := &m3Evaluation{
		ev:       ev,
		ctx:      ctx,
		project:  p,
		input:    in,
		items:    make(map[string]*M3Item),
		values:   make(map[string]float64),
		visiting: make(map[string]bool),
	}
	for _, group := range [][]M3Item{m.BaselineEmissions, m.ProjectEmissions, m.LeakageEmissions} {
		for i := range group {
			e.items[group[i].ID] = &group[i]
		}
	}

	evalGroup := func(group []M3Item) ([]M3ItemValue, float64, error) {
		out := make([]M3ItemValue, 0, len(group))
		total := 0.0
		for i := range group {
			v, err := e.evalItem(&group[i])
			if err != nil {
				return nil, 0, err
			}
			out = append(out, M3ItemValue{ID: group[i].ID, Label: group[i].Label, Value: v})
			total += v
		}
		return out, Round6(total), nil
	}

	baseline, beTotal, err := evalGroup(m.BaselineEmissions)
	if err != nil {
		return nil, err
	}
	project, peTotal, err := evalGroup(m.ProjectEmissions)
	if err != nil {
		return nil, err
	}
	leakage, leTotal, err := evalGroup(m.LeakageEmissions)
	if err != nil {
		return nil, err
	}

	rawNet := beTotal - peTotal - leTotal
	result := &M3Result{
		BETotal:               beTotal,
		PETotal:               peTotal,
		LETotal:               leTotal,
		BufferPercent:         m.BufferPercent,
		NetWithoutUncertainty: Round6(rawNet),
		NetWithUncertainty:    Round6(rawNet * (1 - m.BufferPercent/100)),
		Breakdown: M3Breakdown{
			Baseline: baseline,
			Project:  project,
			Leakage:  leakage,
		},
	}
	return &EvalResult{NetReduction: result.NetWithUncertainty, M3: result}, nil
}

func (e *m3Evaluation) evalItem(item *M3Item) (float64, error) {
	if v, ok := e.values[item.ID]; ok {
		return v, nil
	}
	if e.visiting[item.ID] {
		return 0, Errorf(KindValidation, "internal variable cycle through item %q", item.ID)
	}
	e.visiting[item.ID] = true
	defer delete(e.visiting, item.ID)

	binding := make(map[string]float64, len(item.Variables))
	for _, v := range item.Variables {
		switch v.Type {
		case M3VarConstant:
			binding[v.Name] = v.Value
		case M3VarManual:
			manual, ok := e.input.Items[item.ID][v.Name]
			if !ok {
				return 0, Errorf(KindMissingVariable, "missing manual variable %q for item %q", v.Name, item.ID)
			}
			binding[v.Name] = manual
		case M3VarInternal:
			sum := 0.0
			for _, sourceID := range v.InternalSources {
				source, ok := e.items[sourceID]
				if !ok {
					return 0, Errorf(KindValidation, "item %q references unknown internal source %q", item.ID, sourceID)
				}
				sv, err := e.evalItem(source)
				if err != nil {
					return 0, err
				}
				sum += sv
			}
			binding[v.Name] = sum
		default:
			return 0, Errorf(KindValidation, "item %q variable %q has unknown type %q", item.ID, v.Name, v.Type)
		}
	}

	prog, err := e.ev.program(e.ctx, e.project.ClientID, item.FormulaID)
	if err != nil {
		return 0, err
	}
	if missing := prog.MissingBindings(binding); len(missing) > 0 {
		return 0, Errorf(KindMissingVariable, "missing variable %q for item %q", missing[0], item.ID)
	}
	raw, err := prog.Evaluate(binding)
	if err != nil {
		return 0, e.ev.mapExprError(err)
	}
	value := Round6(raw)
	e.values[item.ID] = value
	return value, nil
}

// program loads a formula and returns its cached compiled form.
func (ev *Evaluator) program(ctx context.Context, clientID, formulaID string) (*expr.Program, error) {
	f, err := ev.formulas.Formula(ctx, clientID, formulaID)
	if err != nil {
		if IsKind(err, KindNotFound) || IsKind(err, KindFormulaNotFound) {
			return nil, Errorf(KindFormulaNotFound, "formula %q not found", formulaID)
		}
		return nil, err
	}
	prog, err := ev.cache.Program(f.ID, f.Version, f.Expression)
	if err != nil {
		return nil, WrapErr(KindValidation, err, "formula %q does not parse", formulaID)
	}
	return prog, nil
}

func (ev *Evaluator) mapExprError(err error) error {
	var missing expr.MissingVariableError
	if errors.As(err, &missing) {
		return Errorf(KindMissingVariable, "missing variable %q", missing.Name)
	}
	return WrapErr(KindValidation, err, "expression evaluation failed")
}
