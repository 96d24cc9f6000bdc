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
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var validExpressions = []string{
	`1`,
	`1.5`,
	`1.5e-3`,
	`A`,
	`A * B`,
	`A*B - C/D`,
	`-(A + B) * 2`,
	`(EF_b * Q) - leakage`,
	`min(A, B) + max(A, 2)`,
	`pow(A, 2) / sqrt(B)`,
	`round(abs(A) * 1.05)`,
	`ln(A) + log10(B) + exp(0)`,
	`floor(A) - ceil(B)`,
}

var invalidExpressions = []string{
	``,
	`1 +`,
	`A B`,
	`(A`,
	`A + )`,
	`foo(A)`,
	`min(A)`,
	`abs(A, B)`,
	`A & B`,
	`1..2`,
}

func TestParseValid(t *testing.T) {
	for _, src := range validExpressions {
		t.Run(src, func(t *testing.T) {
			if _, err := Parse(src); err != nil {
				t.Fatalf("Parse(%q): %v", src, err)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, src := range invalidExpressions {
		t.Run(src, func(t *testing.T) {
			if _, err := Parse(src); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", src)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	for _, test := range []struct {
		src     string
		binding map[string]float64
		want    float64
	}{
		{`1 + 2 * 3`, nil, 7},
		{`(1 + 2) * 3`, nil, 9},
		{`10 - 2 - 3`, nil, 5}, // left associative
		{`A * B`, map[string]float64{"A": 10, "B": 3}, 30},
		{`-A`, map[string]float64{"A": 4}, -4},
		{`A / B`, map[string]float64{"A": 1, "B": 0}, 0}, // Inf coerces to 0
		{`0 / 0`, nil, 0},                                // NaN coerces to 0
		{`min(3, 8)`, nil, 3},
		{`max(3, 8)`, nil, 8},
		{`pow(2, 10)`, nil, 1024},
		{`sqrt(81)`, nil, 9},
		{`abs(-2.5)`, nil, 2.5},
		{`round(2.5)`, nil, 3},
		{`floor(2.9) + ceil(2.1)`, nil, 5},
	} {
		t.Run(test.src, func(t *testing.T) {
			prog, err := Parse(test.src)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got, err := prog.Evaluate(test.binding)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != test.want {
				t.Errorf("Evaluate(%q) = %v, want %v", test.src, got, test.want)
			}
		})
	}
}

func TestEvaluateMissingVariable(t *testing.T) {
	prog, err := Parse(`A * B`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = prog.Evaluate(map[string]float64{"A": 1})
	var missing MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingVariableError", err)
	}
	if missing.Name != "B" {
		t.Errorf("missing variable = %q, want %q", missing.Name, "B")
	}
}

func TestIdentifiers(t *testing.T) {
	prog, err := Parse(`EF_b * Q + min(Q, leakage)`)
	if err != nil {
		t.Fatal(err)
	}
	got := prog.Identifiers()
	sort.Strings(got)
	want := []string{"EF_b", "Q", "leakage"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("identifiers mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingBindings(t *testing.T) {
	prog, err := Parse(`A + B + C`)
	if err != nil {
		t.Fatal(err)
	}
	got := prog.MissingBindings(map[string]float64{"B": 1})
	sort.Strings(got)
	if diff := cmp.Diff([]string{"A", "C"}, got); diff != "" {
		t.Errorf("missing bindings mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheReusesPrograms(t *testing.T) {
	c := NewCache()
	p1, err := c.Program("f1", 1, `A + 1`)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := c.Program("f1", 1, `ignored on hit`)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Error("cache returned a different program for the same key")
	}

	p3, err := c.Program("f1", 2, `A + 2`)
	if err != nil {
		t.Fatal(err)
	}
	if p3 == p1 {
		t.Error("version bump should not hit the old program")
	}

	c.Invalidate("f1")
	p4, err := c.Program("f1", 1, `A + 3`)
	if err != nil {
		t.Fatal(err)
	}
	if p4 == p1 {
		t.Error("invalidated program was returned")
	}
}
