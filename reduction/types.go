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

// Package reduction implements the net-reduction evaluation and
// aggregation pipeline: methodology evaluation, per-series derived
// column recomputation, period summaries and the ingestion channel
// state machine. Persistence and authorization are consumed through
// interfaces; the HTTP edge lives in the server package.
package reduction

import "time"

// Methodology selects the computation mode for a project.
type Methodology string

const (
	MethodologyM1 Methodology = "M1"
	MethodologyM2 Methodology = "M2"
	MethodologyM3 Methodology = "M3"
)

// InputType identifies the ingestion channel an entry arrived on.
type InputType string

const (
	InputManual InputType = "manual"
	InputAPI    InputType = "API"
	InputIOT    InputType = "IOT"
	InputCSV    InputType = "CSV"
)

// ProjectActivity distinguishes reduction from removal projects (M3).
type ProjectActivity string

const (
	ActivityReduction ProjectActivity = "Reduction"
	ActivityRemoval   ProjectActivity = "Removal"
)

// UnitItem is one row of an M1/M2 activity data table. Derived columns
// are recomputed on every project save.
type UnitItem struct {
	Label          string  `json:"label" yaml:"label"`
	Value          float64 `json:"value" yaml:"value"`
	EF             float64 `json:"ef" yaml:"ef"`
	GWP            float64 `json:"gwp" yaml:"gwp"`
	AF             float64 `json:"af" yaml:"af"`
	UncertaintyPct float64 `json:"uncertaintyPct" yaml:"uncertainty_pct" validate:"gte=0"`

	// Derived, owned by RecomputeProjectScalars.
	Raw                float64 `json:"raw" yaml:"-"`
	RawWithUncertainty float64 `json:"rawWithUncertainty" yaml:"-"`
}

// M1Params carries the three unit-item tables and the scalars derived
// from them. EmissionReductionRate is snapshotted onto every M1 entry.
type M1Params struct {
	ABD           []UnitItem `json:"abd" yaml:"abd"`
	APD           []UnitItem `json:"apd" yaml:"apd"`
	ALD           []UnitItem `json:"ald" yaml:"ald"`
	BufferPercent float64    `json:"bufferPercent" yaml:"buffer_percent" validate:"gte=0,lte=100"`

	// Derived, owned by RecomputeProjectScalars.
	BE                    float64 `json:"be" yaml:"-"`
	PE                    float64 `json:"pe" yaml:"-"`
	LE                    float64 `json:"le" yaml:"-"`
	BufferEmission        float64 `json:"bufferEmission" yaml:"-"`
	ER                    float64 `json:"er" yaml:"-"`
	CAPD                  float64 `json:"capd" yaml:"-"`
	EmissionReductionRate float64 `json:"emissionReductionRate" yaml:"-"`
}

// VariableRole governs how an M2 expression symbol gets bound.
type VariableRole string

const (
	RoleFrozen   VariableRole = "frozen"   // project config + schedule
	RoleRealtime VariableRole = "realtime" // ingestion payload
	RoleManual   VariableRole = "manual"   // operator entry
)

// ScheduleFrequency is the period granularity of a frozen variable.
type ScheduleFrequency string

const (
	FreqMonthly    ScheduleFrequency = "monthly"
	FreqQuarterly  ScheduleFrequency = "quarterly"
	FreqSemiannual ScheduleFrequency = "semiannual"
	FreqYearly     ScheduleFrequency = "yearly"
)

// FrozenSchedule bounds the window in which history records apply.
type FrozenSchedule struct {
	Frequency ScheduleFrequency `json:"frequency" yaml:"frequency" validate:"omitempty,oneof=monthly quarterly semiannual yearly"`
	FromDate  *time.Time        `json:"fromDate,omitempty" yaml:"from_date,omitempty"`
	ToDate    *time.Time        `json:"toDate,omitempty" yaml:"to_date,omitempty"`
}

// FrozenPolicy selects between a constant value and a scheduled one.
type FrozenPolicy struct {
	IsConstant bool           `json:"isConstant" yaml:"is_constant"`
	Schedule   FrozenSchedule `json:"schedule" yaml:"schedule"`
}

// FrozenHistoryRecord is one period value of a scheduled variable.
// A nil To means the record is open-ended until the next period start.
type FrozenHistoryRecord struct {
	Value float64    `json:"value" yaml:"value"`
	From  time.Time  `json:"from" yaml:"from"`
	To    *time.Time `json:"to,omitempty" yaml:"to,omitempty"`
}

// FrozenVar is the per-symbol configuration the resolver walks.
type FrozenVar struct {
	Value   float64               `json:"value" yaml:"value"` // base value
	Policy  FrozenPolicy          `json:"policy" yaml:"policy"`
	History []FrozenHistoryRecord `json:"history,omitempty" yaml:"history,omitempty"`
}

// FormulaRef binds an M2 project to a formula plus its variable roles.
type FormulaRef struct {
	FormulaID     string                  `json:"formulaId" yaml:"formula_id" validate:"required"`
	Version       int                     `json:"version" yaml:"version"`
	VariableKinds map[string]VariableRole `json:"variableKinds" yaml:"variable_kinds"`
	Variables     map[string]FrozenVar    `json:"variables" yaml:"variables"`
}

// M2Params carries the optional leakage table (summed into LE exactly
// as in M1) and the formula reference.
type M2Params struct {
	ALD        []UnitItem `json:"ald,omitempty" yaml:"ald,omitempty"`
	FormulaRef FormulaRef `json:"formulaRef" yaml:"formula_ref"`

	// Derived, owned by RecomputeProjectScalars; read at entry write time.
	LE float64 `json:"le" yaml:"-"`
}

// M3VariableType selects how an M3 item variable gets its value.
type M3VariableType string

const (
	M3VarConstant M3VariableType = "constant"
	M3VarManual   M3VariableType = "manual"
	M3VarInternal M3VariableType = "internal"
)

// M3Variable is one declared input of an M3 item formula.
type M3Variable struct {
	Name            string         `json:"name" yaml:"name" validate:"required"`
	Type            M3VariableType `json:"type" yaml:"type" validate:"oneof=constant manual internal"`
	Value           float64        `json:"value,omitempty" yaml:"value,omitempty"`
	InternalSources []string       `json:"internalSources,omitempty" yaml:"internal_sources,omitempty"`
}

// M3Item is a baseline / project / leakage line item evaluated
// independently per entry.
type M3Item struct {
	ID        string       `json:"id" yaml:"id" validate:"required"`
	Label     string       `json:"label" yaml:"label"`
	FormulaID string       `json:"formulaId" yaml:"formula_id" validate:"required"`
	Variables []M3Variable `json:"variables" yaml:"variables"`
}

// M3Params describes the three item tables of an M3 project.
type M3Params struct {
	ProjectActivity   ProjectActivity `json:"projectActivity" yaml:"project_activity" validate:"oneof=Reduction Removal"`
	BufferPercent     float64         `json:"bufferPercent" yaml:"buffer_percent" validate:"gte=0,lte=100"`
	BaselineEmissions []M3Item        `json:"baselineEmissions" yaml:"baseline_emissions"`
	ProjectEmissions  []M3Item        `json:"projectEmissions" yaml:"project_emissions"`
	LeakageEmissions  []M3Item        `json:"leakageEmissions" yaml:"leakage_emissions"`
}

// KeyRequestStatus tracks the API-key request lifecycle.
type KeyRequestStatus string

const (
	KeyRequestNone     KeyRequestStatus = "none"
	KeyRequestPending  KeyRequestStatus = "pending"
	KeyRequestApproved KeyRequestStatus = "approved"
	KeyRequestRejected KeyRequestStatus = "rejected"
)

// APIKeyRequest is the pending/approved key state on a channel.
type APIKeyRequest struct {
	Status      KeyRequestStatus `json:"status" yaml:"status"`
	RequestedBy string           `json:"requestedBy,omitempty" yaml:"requested_by,omitempty"`
	RequestedAt *time.Time       `json:"requestedAt,omitempty" yaml:"requested_at,omitempty"`
	ResolvedAt  *time.Time       `json:"resolvedAt,omitempty" yaml:"resolved_at,omitempty"`
	ScopedURL   string           `json:"scopedUrl,omitempty" yaml:"scoped_url,omitempty"`
}

// ChannelState is the ingestion channel configuration of a project.
type ChannelState struct {
	InputType         InputType     `json:"inputType" yaml:"input_type" validate:"omitempty,oneof=manual API IOT"`
	OriginalInputType InputType     `json:"originalInputType,omitempty" yaml:"original_input_type,omitempty"`
	APIEndpoint       string        `json:"apiEndpoint,omitempty" yaml:"api_endpoint,omitempty"`
	IOTDeviceID       string        `json:"iotDeviceId,omitempty" yaml:"iot_device_id,omitempty"`
	APIStatus         bool          `json:"apiStatus" yaml:"api_status"`
	IOTStatus         bool          `json:"iotStatus" yaml:"iot_status"`
	APIKeyRequest     APIKeyRequest `json:"apiKeyRequest" yaml:"api_key_request"`
}

// Location is the project site; the summary engine keys on
// Place || Address || "lat,lon" || "Unknown", in that order.
type Location struct {
	Place   string  `json:"place,omitempty" yaml:"place,omitempty"`
	Address string  `json:"address,omitempty" yaml:"address,omitempty"`
	Lat     float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
}

// Project is one client project with exactly one methodology
// parameter block populated.
type Project struct {
	ClientID    string      `json:"clientId" yaml:"client_id" validate:"required"`
	ProjectID   string      `json:"projectId" yaml:"project_id"` // clientId-RED-clientId-NNNN
	ReductionID int         `json:"reductionId" yaml:"reduction_id"`
	Name        string      `json:"name" yaml:"name" validate:"required"`
	Methodology Methodology `json:"methodology" yaml:"methodology" validate:"oneof=M1 M2 M3"`

	M1 *M1Params `json:"m1,omitempty" yaml:"m1,omitempty"`
	M2 *M2Params `json:"m2,omitempty" yaml:"m2,omitempty"`
	M3 *M3Params `json:"m3,omitempty" yaml:"m3,omitempty"`

	Channel ChannelState `json:"reductionDataEntry" yaml:"channel"`

	Category        string          `json:"category,omitempty" yaml:"category,omitempty"`
	Scope           string          `json:"scope,omitempty" yaml:"scope,omitempty"`
	Location        Location        `json:"location" yaml:"location"`
	ProjectActivity ProjectActivity `json:"projectActivity,omitempty" yaml:"project_activity,omitempty"`

	IsDeleted bool      `json:"isDeleted" yaml:"is_deleted"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// FormulaVariable declares one symbol of a formula.
type FormulaVariable struct {
	Name         string   `json:"name" yaml:"name" validate:"required"`
	DefaultValue *float64 `json:"defaultValue,omitempty" yaml:"default_value,omitempty"`
	Unit         string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Formula is a global or client-scoped arithmetic expression.
type Formula struct {
	ID         string            `json:"id" yaml:"id" validate:"required"`
	ClientID   string            `json:"clientId,omitempty" yaml:"client_id,omitempty"` // empty = global
	Name       string            `json:"name" yaml:"name"`
	Expression string            `json:"expression" yaml:"expression" validate:"required"`
	Variables  []FormulaVariable `json:"variables" yaml:"variables"`
	Version    int               `json:"version" yaml:"version"`
	Status     string            `json:"status" yaml:"status"`
}

// SourceDetails records the provenance of an entry.
type SourceDetails struct {
	UploadedBy  string `json:"uploadedBy,omitempty"`
	DataSource  string `json:"dataSource"`
	APIEndpoint string `json:"apiEndpoint,omitempty"`
	IOTDeviceID string `json:"iotDeviceId,omitempty"`
	FileName    string `json:"fileName,omitempty"`
}

// M3ItemValue is one evaluated line item inside an entry breakdown.
type M3ItemValue struct {
	ID    string  `json:"id"`
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
}

// M3Breakdown groups the evaluated items of one M3 entry.
type M3Breakdown struct {
	Baseline []M3ItemValue `json:"baseline"`
	Project  []M3ItemValue `json:"project"`
	Leakage  []M3ItemValue `json:"leakage"`
}

// M3Result is the methodology payload of an M3 entry.
type M3Result struct {
	BETotal               float64     `json:"beTotal"`
	PETotal               float64     `json:"peTotal"`
	LETotal               float64     `json:"leTotal"`
	BufferPercent         float64     `json:"bufferPercent"`
	NetWithoutUncertainty float64     `json:"netWithoutUncertainty"`
	NetWithUncertainty    float64     `json:"netWithUncertainty"`
	Breakdown             M3Breakdown `json:"breakdown"`
}

// Entry is one ingested data point. Identity and provenance are
// immutable; the derived columns are owned by RecomputeSeries.
type Entry struct {
	ID          string      `json:"id"`
	ClientID    string      `json:"clientId"`
	ProjectID   string      `json:"projectId"`
	Methodology Methodology `json:"methodology"`

	InputType InputType     `json:"inputType"`
	Source    SourceDetails `json:"sourceDetails"`

	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
	// Seq breaks ties between equal timestamps: insertion order.
	Seq int64 `json:"-"`

	// M1 payload.
	InputValue            float64 `json:"inputValue,omitempty"`
	EmissionReductionRate float64 `json:"emissionReductionRate,omitempty"`

	// M2 payload.
	FormulaID    string             `json:"formulaId,omitempty"`
	Variables    map[string]float64 `json:"variables,omitempty"`
	NetInFormula float64            `json:"netReductionInFormula,omitempty"`

	// M3 payload.
	M3 *M3Result `json:"m3,omitempty"`

	NetReduction float64 `json:"netReduction"`

	// Derived columns, owned by RecomputeSeries.
	CumulativeNetReduction float64 `json:"cumulativeNetReduction"`
	HighNetReduction       float64 `json:"highNetReduction"`
	LowNetReduction        float64 `json:"lowNetReduction"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SeriesKey identifies one totally ordered entry sequence.
type SeriesKey struct {
	ClientID    string
	ProjectID   string
	Methodology Methodology
}

// Key returns the series the entry belongs to.
func (e *Entry) Key() SeriesKey {
	return SeriesKey{ClientID: e.ClientID, ProjectID: e.ProjectID, Methodology: e.Methodology}
}
