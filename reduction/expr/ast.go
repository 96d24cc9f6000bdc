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

package expr

import (
	"fmt"
	"math"
)

// node is one evaluable vertex of a parsed expression.
type node interface {
	eval(binding map[string]float64) (float64, error)
	// identifiers adds every free identifier under the node to set.
	identifiers(set map[string]struct{})
}

// MissingVariableError reports an identifier with no binding.
type MissingVariableError struct {
	Name string
}

func (e MissingVariableError) Error() string {
	return fmt.Sprintf("missing variable %q", e.Name)
}

type literal float64

func (l literal) eval(map[string]float64) (float64, error) { return float64(l), nil }
func (l literal) identifiers(map[string]struct{})          {}

type ident string

func (i ident) eval(binding map[string]float64) (float64, error) {
	v, ok := binding[string(i)]
	if !ok {
		return 0, MissingVariableError{Name: string(i)}
	}
	return v, nil
}

func (i ident) identifiers(set map[string]struct{}) { set[string(i)] = struct{}{} }

type binary struct {
	op   tokenType
	l, r node
}

func (b binary) eval(binding map[string]float64) (float64, error) {
	lv, err := b.l.eval(binding)
	if err != nil {
		return 0, err
	}
	rv, err := b.r.eval(binding)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case tokPlus:
		return lv + rv, nil
	case tokMinus:
		return lv - rv, nil
	case tokStar:
		return lv * rv, nil
	case tokSlash:
		// Division by zero yields non-finite and is coerced to 0 at
		// the Program boundary.
		return lv / rv, nil
	}
	return 0, fmt.Errorf("unknown operator %v", b.op)
}

func (b binary) identifiers(set map[string]struct{}) {
	b.l.identifiers(set)
	b.r.identifiers(set)
}

type negate struct {
	n node
}

func (n negate) eval(binding map[string]float64) (float64, error) {
	v, err := n.n.eval(binding)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

func (n negate) identifiers(set map[string]struct{}) { n.n.identifiers(set) }

type call struct {
	name string
	args []node
}

var unaryFuncs = map[string]func(float64) float64{
	"abs":   math.Abs,
	"sqrt":  math.Sqrt,
	"exp":   math.Exp,
	"ln":    math.Log,
	"log10": math.Log10,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
}

var binaryFuncs = map[string]func(float64, float64) float64{
	"min": math.Min,
	"max": math.Max,
	"pow": math.Pow,
}

func (c call) eval(binding map[string]float64) (float64, error) {
	vals := make([]float64, len(c.args))
	for i, a := range c.args {
		v, err := a.eval(binding)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	if f, ok := unaryFuncs[c.name]; ok {
		if len(vals) != 1 {
			return 0, fmt.Errorf("function %q takes 1 argument, got %d", c.name, len(vals))
		}
		return f(vals[0]), nil
	}
	if f, ok := binaryFuncs[c.name]; ok {
		if len(vals) != 2 {
			return 0, fmt.Errorf("function %q takes 2 arguments, got %d", c.name, len(vals))
		}
		return f(vals[0], vals[1]), nil
	}
	return 0, fmt.Errorf("unknown function %q", c.name)
}

func (c call) identifiers(set map[string]struct{}) {
	for _, a := range c.args {
		a.identifiers(set)
	}
}

func isFunction(name string) bool {
	if _, ok := unaryFuncs[name]; ok {
		return true
	}
	_, ok := binaryFuncs[name]
	return ok
}

func arity(name string) int {
	if _, ok := unaryFuncs[name]; ok {
		return 1
	}
	return 2
}
