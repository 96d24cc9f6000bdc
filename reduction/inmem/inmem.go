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

// Package inmem provides the in-memory repository used by tests and
// single-node deployments. Every read and write deep-copies documents
// so callers never share mutable state with the store.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction"
)

const defaultPerPage = 50

// Store is an in-memory reduction.Repository.
type Store struct {
	mu sync.RWMutex

	projects   map[string]map[string]*reduction.Project // clientID -> projectID
	projectSeq map[string]int

	formulas map[string]map[string]*reduction.Formula // clientID ("" = global) -> formulaID

	series  map[reduction.SeriesKey][]*reduction.Entry
	nextSeq int64

	summaries map[string]map[reduction.SummaryPeriod]*reduction.PeriodSummary
	rollups   map[string]*reduction.ClientRollup
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		projects:   make(map[string]map[string]*reduction.Project),
		projectSeq: make(map[string]int),
		formulas:   make(map[string]map[string]*reduction.Formula),
		series:     make(map[reduction.SeriesKey][]*reduction.Entry),
		summaries:  make(map[string]map[reduction.SummaryPeriod]*reduction.PeriodSummary),
		rollups:    make(map[string]*reduction.ClientRollup),
	}
}

var _ reduction.Repository = (*Store)(nil)

func (s *Store) Project(_ context.Context, clientID, projectID string) (*reduction.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[clientID][projectID]
	if !ok || p.IsDeleted {
		return nil, reduction.Errorf(reduction.KindNotFound, "project %s/%s not found", clientID, projectID)
	}
	return cloneProject(p), nil
}

func (s *Store) ProjectsByClient(_ context.Context, clientID string) ([]*reduction.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*reduction.Project
	for _, p := range s.projects[clientID] {
		if p.IsDeleted {
			continue
		}
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func (s *Store) SaveProject(_ context.Context, p *reduction.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projects[p.ClientID] == nil {
		s.projects[p.ClientID] = make(map[string]*reduction.Project)
	}
	s.projects[p.ClientID][p.ProjectID] = cloneProject(p)
	return nil
}

func (s *Store) NextProjectSeq(_ context.Context, clientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectSeq[clientID]++
	return s.projectSeq[clientID], nil
}

// Formula resolves client-scoped formulas before global ones.
func (s *Store) Formula(_ context.Context, clientID, formulaID string) (*reduction.Formula, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.formulas[clientID][formulaID]; ok {
		return cloneFormula(f), nil
	}
	if f, ok := s.formulas[""][formulaID]; ok {
		return cloneFormula(f), nil
	}
	return nil, reduction.Errorf(reduction.KindFormulaNotFound, "formula %q not found", formulaID)
}

func (s *Store) SaveFormula(_ context.Context, f *reduction.Formula) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formulas[f.ClientID] == nil {
		s.formulas[f.ClientID] = make(map[string]*reduction.Formula)
	}
	s.formulas[f.ClientID][f.ID] = cloneFormula(f)
	return nil
}

// InsertEntry appends atomically, assigning the insertion-order
// sequence number that breaks timestamp ties.
func (s *Store) InsertEntry(_ context.Context, e *reduction.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	e.Seq = s.nextSeq
	key := e.Key()
	s.series[key] = append(s.series[key], cloneEntry(e))
	sortSeries(s.series[key])
	return nil
}

func (s *Store) UpdateEntry(_ context.Context, e *reduction.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.Key()
	rows := s.series[key]
	for i, row := range rows {
		if row.ID == e.ID {
			clone := cloneEntry(e)
			clone.Seq = row.Seq
			rows[i] = clone
			sortSeries(rows)
			return nil
		}
	}
	return reduction.Errorf(reduction.KindNotFound, "entry %s not found", e.ID)
}

func (s *Store) DeleteEntry(_ context.Context, key reduction.SeriesKey, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.series[key]
	for i, row := range rows {
		if row.ID == entryID {
			s.series[key] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return reduction.Errorf(reduction.KindNotFound, "entry %s not found", entryID)
}

func (s *Store) Entry(_ context.Context, key reduction.SeriesKey, entryID string) (*reduction.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.series[key] {
		if row.ID == entryID {
			return cloneEntry(row), nil
		}
	}
	return nil, reduction.Errorf(reduction.KindNotFound, "entry %s not found", entryID)
}

func (s *Store) Series(_ context.Context, key reduction.SeriesKey) ([]*reduction.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.series[key]
	out := make([]*reduction.Entry, len(rows))
	for i, row := range rows {
		out[i] = cloneEntry(row)
	}
	return out, nil
}

func (s *Store) BulkUpdateDerived(_ context.Context, key reduction.SeriesKey, updates []reduction.DerivedUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]reduction.DerivedUpdate, len(updates))
	for _, u := range updates {
		byID[u.EntryID] = u
	}
	for _, row := range s.series[key] {
		if u, ok := byID[row.ID]; ok {
			row.CumulativeNetReduction = u.Cumulative
			row.HighNetReduction = u.High
			row.LowNetReduction = u.Low
		}
	}
	return nil
}

func (s *Store) EntriesBetween(_ context.Context, clientID string, from, to time.Time) ([]*reduction.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*reduction.Entry
	for key, rows := range s.series {
		if key.ClientID != clientID {
			continue
		}
		for _, row := range rows {
			if row.Timestamp.Before(from) || row.Timestamp.After(to) {
				continue
			}
			out = append(out, cloneEntry(row))
		}
	}
	sortSeries(out)
	return out, nil
}

func (s *Store) ListEntries(_ context.Context, filter reduction.ListFilter) ([]*reduction.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*reduction.Entry
	for key, rows := range s.series {
		if key.ClientID != filter.ClientID {
			continue
		}
		if filter.ProjectID != "" && key.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Methodology != "" && key.Methodology != filter.Methodology {
			continue
		}
		for _, row := range rows {
			if filter.InputType != "" && row.InputType != filter.InputType {
				continue
			}
			if filter.From != nil && row.Timestamp.Before(*filter.From) {
				continue
			}
			if filter.To != nil && row.Timestamp.After(*filter.To) {
				continue
			}
			matched = append(matched, cloneEntry(row))
		}
	}
	sortSeries(matched)

	total := len(matched)
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= total {
		return []*reduction.Entry{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) UpsertPeriodSummary(_ context.Context, doc *reduction.PeriodSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summaries[doc.ClientID] == nil {
		s.summaries[doc.ClientID] = make(map[reduction.SummaryPeriod]*reduction.PeriodSummary)
	}
	s.summaries[doc.ClientID][doc.Period] = clonePeriodSummary(doc)
	return nil
}

func (s *Store) PeriodSummary(_ context.Context, clientID string, period reduction.SummaryPeriod) (*reduction.PeriodSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.summaries[clientID][period]
	if !ok {
		return nil, reduction.Errorf(reduction.KindNotFound, "no %s summary for client %s", period, clientID)
	}
	return clonePeriodSummary(doc), nil
}

func (s *Store) UpsertClientRollup(_ context.Context, doc *reduction.ClientRollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollups[doc.ClientID] = cloneClientRollup(doc)
	return nil
}

func (s *Store) ClientRollup(_ context.Context, clientID string) (*reduction.ClientRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.rollups[clientID]
	if !ok {
		return nil, reduction.Errorf(reduction.KindNotFound, "no rollup for client %s", clientID)
	}
	return cloneClientRollup(doc), nil
}

// sortSeries orders by ascending timestamp, insertion order on ties.
func sortSeries(rows []*reduction.Entry) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Seq < rows[j].Seq
		}
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
}

func cloneProject(p *reduction.Project) *reduction.Project {
	out := *p
	if p.M1 != nil {
		m1 := *p.M1
		m1.ABD = cloneItems(p.M1.ABD)
		m1.APD = cloneItems(p.M1.APD)
		m1.ALD = cloneItems(p.M1.ALD)
		out.M1 = &m1
	}
	if p.M2 != nil {
		m2 := *p.M2
		m2.ALD = cloneItems(p.M2.ALD)
		m2.FormulaRef = cloneFormulaRef(p.M2.FormulaRef)
		out.M2 = &m2
	}
	if p.M3 != nil {
		m3 := *p.M3
		m3.BaselineEmissions = cloneM3Items(p.M3.BaselineEmissions)
		m3.ProjectEmissions = cloneM3Items(p.M3.ProjectEmissions)
		m3.LeakageEmissions = cloneM3Items(p.M3.LeakageEmissions)
		out.M3 = &m3
	}
	out.Channel.APIKeyRequest.RequestedAt = cloneTime(p.Channel.APIKeyRequest.RequestedAt)
	out.Channel.APIKeyRequest.ResolvedAt = cloneTime(p.Channel.APIKeyRequest.ResolvedAt)
	return &out
}

func cloneItems(items []reduction.UnitItem) []reduction.UnitItem {
	if items == nil {
		return nil
	}
	out := make([]reduction.UnitItem, len(items))
	copy(out, items)
	return out
}

func cloneFormulaRef(ref reduction.FormulaRef) reduction.FormulaRef {
	out := ref
	if ref.VariableKinds != nil {
		out.VariableKinds = make(map[string]reduction.VariableRole, len(ref.VariableKinds))
		for k, v := range ref.VariableKinds {
			out.VariableKinds[k] = v
		}
	}
	if ref.Variables != nil {
		out.Variables = make(map[string]reduction.FrozenVar, len(ref.Variables))
		for k, v := range ref.Variables {
			fv := v
			fv.Policy.Schedule.FromDate = cloneTime(v.Policy.Schedule.FromDate)
			fv.Policy.Schedule.ToDate = cloneTime(v.Policy.Schedule.ToDate)
			if v.History != nil {
				fv.History = make([]reduction.FrozenHistoryRecord, len(v.History))
				for i, rec := range v.History {
					fv.History[i] = rec
					fv.History[i].To = cloneTime(rec.To)
				}
			}
			out.Variables[k] = fv
		}
	}
	return out
}

func cloneM3Items(items []reduction.M3Item) []reduction.M3Item {
	if items == nil {
		return nil
	}
	out := make([]reduction.M3Item, len(items))
	for i, item := range items {
		out[i] = item
		if item.Variables != nil {
			out[i].Variables = make([]reduction.M3Variable, len(item.Variables))
			for j, v := range item.Variables {
				out[i].Variables[j] = v
				if v.InternalSources != nil {
					out[i].Variables[j].InternalSources = append([]string(nil), v.InternalSources...)
				}
			}
		}
	}
	return out
}

func cloneFormula(f *reduction.Formula) *reduction.Formula {
	out := *f
	if f.Variables != nil {
		out.Variables = make([]reduction.FormulaVariable, len(f.Variables))
		for i, v := range f.Variables {
			out.Variables[i] = v
			if v.DefaultValue != nil {
				dv := *v.DefaultValue
				out.Variables[i].DefaultValue = &dv
			}
		}
	}
	return &out
}

func cloneEntry(e *reduction.Entry) *reduction.Entry {
	out := *e
	if e.Variables != nil {
		out.Variables = make(map[string]float64, len(e.Variables))
		for k, v := range e.Variables {
			out.Variables[k] = v
		}
	}
	if e.M3 != nil {
		m3 := *e.M3
		m3.Breakdown.Baseline = append([]reduction.M3ItemValue(nil), e.M3.Breakdown.Baseline...)
		m3.Breakdown.Project = append([]reduction.M3ItemValue(nil), e.M3.Breakdown.Project...)
		m3.Breakdown.Leakage = append([]reduction.M3ItemValue(nil), e.M3.Breakdown.Leakage...)
		out.M3 = &m3
	}
	return &out
}

func clonePeriodSummary(doc *reduction.PeriodSummary) *reduction.PeriodSummary {
	out := *doc
	out.ByProject = append([]reduction.ProjectSlice(nil), doc.ByProject...)
	out.ByCategory = cloneGroups(doc.ByCategory)
	out.ByScope = cloneGroups(doc.ByScope)
	out.ByLocation = cloneGroups(doc.ByLocation)
	out.ByProjectActivity = cloneGroups(doc.ByProjectActivity)
	out.ByMethodology = cloneGroups(doc.ByMethodology)
	return &out
}

func cloneGroups(m map[string]reduction.GroupSlice) map[string]reduction.GroupSlice {
	if m == nil {
		return nil
	}
	out := make(map[string]reduction.GroupSlice, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneClientRollup(doc *reduction.ClientRollup) *reduction.ClientRollup {
	out := *doc
	out.ByProject = make([]reduction.ProjectRollup, len(doc.ByProject))
	for i, row := range doc.ByProject {
		out.ByProject[i] = row
		out.ByProject[i].LastEntryAt = cloneTime(row.LastEntryAt)
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
