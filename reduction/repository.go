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
	"time"
)

// DerivedUpdate is one row of a bulk derived-column write.
type DerivedUpdate struct {
	EntryID    string
	Cumulative float64
	High       float64
	Low        float64
}

// ListFilter scopes and pages an entry listing.
type ListFilter struct {
	ClientID    string
	ProjectID   string
	Methodology Methodology
	InputType   InputType
	From        *time.Time
	To          *time.Time
	Page        int // 1-based; 0 means first page
	PerPage     int // 0 means the repository default
}

// ProjectRepository persists project configuration.
type ProjectRepository interface {
	Project(ctx context.Context, clientID, projectID string) (*Project, error)
	ProjectsByClient(ctx context.Context, clientID string) ([]*Project, error)
	SaveProject(ctx context.Context, p *Project) error
	// NextProjectSeq returns the next per-client monotonic sequence
	// number used to mint project ids.
	NextProjectSeq(ctx context.Context, clientID string) (int, error)
}

// FormulaRepository persists formula documents.
type FormulaRepository interface {
	FormulaSource
	SaveFormula(ctx context.Context, f *Formula) error
}

// EntryRepository persists net-reduction entries. Series reads return
// entries ordered by ascending timestamp, ties broken by insertion
// order. Each insert is atomic.
type EntryRepository interface {
	InsertEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, key SeriesKey, entryID string) error
	Entry(ctx context.Context, key SeriesKey, entryID string) (*Entry, error)
	Series(ctx context.Context, key SeriesKey) ([]*Entry, error)
	BulkUpdateDerived(ctx context.Context, key SeriesKey, updates []DerivedUpdate) error
	EntriesBetween(ctx context.Context, clientID string, from, to time.Time) ([]*Entry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]*Entry, int, error)
}

// SummaryRepository persists the per-period summary documents and the
// legacy per-client rollup.
type SummaryRepository interface {
	UpsertPeriodSummary(ctx context.Context, s *PeriodSummary) error
	PeriodSummary(ctx context.Context, clientID string, period SummaryPeriod) (*PeriodSummary, error)
	UpsertClientRollup(ctx context.Context, r *ClientRollup) error
	ClientRollup(ctx context.Context, clientID string) (*ClientRollup, error)
}

// Repository is the full persistence surface the engine consumes.
// Implementations must return NotFound-kinded errors for absent
// documents so the edge can map them faithfully.
type Repository interface {
	ProjectRepository
	FormulaRepository
	EntryRepository
	SummaryRepository
}
