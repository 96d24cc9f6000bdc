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

// Package expr parses and evaluates the restricted arithmetic grammar
// used by methodology formulas: numeric literals, identifiers, the four
// basic operators, parentheses and a small fixed set of math functions.
// Expressions are pure; the only inputs are the identifier bindings.
package expr

import (
	"fmt"
	"math"
	"sync"
)

// Program is a parsed, reusable expression.
type Program struct {
	source string
	root   node
	idents map[string]struct{}
}

// Parse compiles an expression. The returned Program is immutable and
// safe for concurrent evaluation.
func Parse(source string) (*Program, error) {
	p := newParser(source)
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != tokEOF {
		return nil, fmt.Errorf("unexpected trailing %s at offset %d", p.cur, p.cur.Pos)
	}
	idents := make(map[string]struct{})
	root.identifiers(idents)
	return &Program{source: source, root: root, idents: idents}, nil
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.source }

// Identifiers returns the set of free identifiers in the expression.
func (p *Program) Identifiers() []string {
	out := make([]string, 0, len(p.idents))
	for name := range p.idents {
		out = append(out, name)
	}
	return out
}

// References reports whether the expression mentions name.
func (p *Program) References(name string) bool {
	_, ok := p.idents[name]
	return ok
}

// MissingBindings returns the identifiers with no value in binding.
func (p *Program) MissingBindings(binding map[string]float64) []string {
	var missing []string
	for name := range p.idents {
		if _, ok := binding[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Evaluate runs the expression against binding. A reference to an
// unbound identifier fails with MissingVariableError. Non-finite
// results coerce to 0.
func (p *Program) Evaluate(binding map[string]float64) (float64, error) {
	v, err := p.root.eval(binding)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return v, nil
}

type cacheKey struct {
	id      string
	version int
}

// Cache holds parsed programs keyed by formula id and version. It is
// process-wide and read-mostly; a formula update bumps the version,
// which naturally misses the old key.
type Cache struct {
	mu       sync.RWMutex
	programs map[cacheKey]*Program
}

// NewCache returns an empty program cache.
func NewCache() *Cache {
	return &Cache{programs: make(map[cacheKey]*Program)}
}

// Program returns the cached program for (id, version), parsing and
// storing source on a miss.
func (c *Cache) Program(id string, version int, source string) (*Program, error) {
	key := cacheKey{id: id, version: version}
	c.mu.RLock()
	prog, ok := c.programs[key]
	c.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := Parse(source)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.programs[key] = prog
	c.mu.Unlock()
	return prog, nil
}

// Invalidate drops every cached version of a formula id.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.programs {
		if key.id == id {
			delete(c.programs, key)
		}
	}
}
