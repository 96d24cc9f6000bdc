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
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// FormatProjectID renders the canonical project id for a client and
// its per-client sequence number.
func FormatProjectID(clientID string, seq int) string {
	return fmt.Sprintf("%s-RED-%s-%04d", clientID, clientID, seq)
}

// NewProjectValidator returns a validator with the engine's custom
// project rules registered.
func NewProjectValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(projectStructValidator, Project{})
	return v
}

// projectStructValidator enforces that exactly the parameter block
// matching the declared methodology is populated.
func projectStructValidator(sl validator.StructLevel) {
	p := sl.Current().Interface().(Project)
	switch p.Methodology {
	case MethodologyM1:
		if p.M1 == nil {
			sl.ReportError(p.M1, "m1", "M1", "required_for_methodology", "")
		}
	case MethodologyM2:
		if p.M2 == nil {
			sl.ReportError(p.M2, "m2", "M2", "required_for_methodology", "")
		}
	case MethodologyM3:
		if p.M3 == nil {
			sl.ReportError(p.M3, "m3", "M3", "required_for_methodology", "")
		}
	}
}

// ValidateProject runs struct validation and returns every violation
// as a single multierror-backed ValidationError.
func ValidateProject(v *validator.Validate, p *Project) error {
	err := v.Struct(p)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return WrapErr(KindValidation, err, "project %s failed validation", p.ProjectID)
	}
	var all *multierror.Error
	for _, fe := range verrs {
		all = multierror.Append(all, fmt.Errorf("field %s violates %q", fe.Namespace(), fe.Tag()))
	}
	return WrapErr(KindValidation, all.ErrorOrNil(), "project %s failed validation", p.ProjectID)
}

// RecomputeProjectScalars recomputes the derived columns of the
// project's methodology block. It runs on every project save or
// validation so that entry writes can read fresh scalars:
//
//	M1: BE/PE/LE from the unit tables, bufferEmission, ER, CAPD and
//	    the emissionReductionRate snapshotted by every M1 entry.
//	M2: LE from the optional leakage table, identically to M1's LE.
//
// All derived fields are Round6-normalized.
func RecomputeProjectScalars(p *Project) {
	switch p.Methodology {
	case MethodologyM1:
		if p.M1 == nil {
			return
		}
		m := p.M1
		m.BE = sumWithUncertainty(m.ABD)
		m.PE = sumWithUncertainty(m.APD)
		m.LE = sumWithUncertainty(m.ALD)
		m.BufferEmission = Round6((m.BufferPercent / 100) * (m.BE - m.PE - m.LE))
		m.ER = Round6(m.BE - m.PE - m.LE - m.BufferEmission)

		capd := 0.0
		for _, item := range m.APD {
			capd += item.Value
		}
		m.CAPD = Round6(capd)
		if m.CAPD > 0 {
			m.EmissionReductionRate = Round6(m.ER / m.CAPD)
		} else {
			m.EmissionReductionRate = 0
		}

	case MethodologyM2:
		if p.M2 == nil {
			return
		}
		p.M2.LE = sumWithUncertainty(p.M2.ALD)
	}
}

// sumWithUncertainty fills the derived columns of each unit item and
// returns the Round6 sum of the uncertainty-adjusted values.
func sumWithUncertainty(items []UnitItem) float64 {
	total := 0.0
	for i := range items {
		item := &items[i]
		item.Raw = Round6(item.Value * item.EF * item.GWP * item.AF)
		item.RawWithUncertainty = Round6(item.Raw * (1 + item.UncertaintyPct/100))
		total += item.RawWithUncertainty
	}
	return Round6(total)
}
