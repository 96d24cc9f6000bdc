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
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/events"
)

// SummaryPeriod is one of the five rollup cadences.
type SummaryPeriod string

const (
	PeriodDaily   SummaryPeriod = "daily"
	PeriodWeekly  SummaryPeriod = "weekly"
	PeriodMonthly SummaryPeriod = "monthly"
	PeriodYearly  SummaryPeriod = "yearly"
	PeriodAllTime SummaryPeriod = "all-time"
)

// AllPeriods lists every cadence in recompute order.
var AllPeriods = []SummaryPeriod{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodAllTime}

// allTimeStart anchors the open-ended all-time window.
var allTimeStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// GroupSlice is one bucket of a keyed rollup.
type GroupSlice struct {
	TotalNetReduction float64 `json:"totalNetReduction"`
	EntriesCount      int     `json:"entriesCount"`
}

// ProjectSlice is the per-project row inside a period summary.
type ProjectSlice struct {
	ProjectID         string      `json:"projectId"`
	ProjectName       string      `json:"projectName"`
	ProjectActivity   string      `json:"projectActivity"`
	Category          string      `json:"category"`
	Scope             string      `json:"scope"`
	Location          string      `json:"location"`
	Methodology       Methodology `json:"calculationMethodology"`
	TotalNetReduction float64     `json:"totalNetReduction"`
	EntriesCount      int         `json:"entriesCount"`
}

// PeriodSummary is the persisted per-period rollup document, keyed by
// (clientID, period). Lack of matching entries produces an empty
// summary, never a deletion.
type PeriodSummary struct {
	ClientID    string        `json:"clientId"`
	Period      SummaryPeriod `json:"period"`
	WindowStart time.Time     `json:"windowStart"`
	WindowEnd   time.Time     `json:"windowEnd"`

	TotalNetReduction float64 `json:"totalNetReduction"`
	EntriesCount      int     `json:"entriesCount"`

	ByProject         []ProjectSlice        `json:"byProject"`
	ByCategory        map[string]GroupSlice `json:"byCategory"`
	ByScope           map[string]GroupSlice `json:"byScope"`
	ByLocation        map[string]GroupSlice `json:"byLocation"`
	ByProjectActivity map[string]GroupSlice `json:"byProjectActivity"`
	ByMethodology     map[string]GroupSlice `json:"byMethodology"`

	HasReductionSummary bool      `json:"hasReductionSummary"`
	LastCalculatedAt    time.Time `json:"lastReductionSummaryCalculatedAt"`
}

// ProjectRollup is the per-project row of the legacy client rollup.
type ProjectRollup struct {
	ProjectID         string      `json:"projectId"`
	ProjectName       string      `json:"projectName"`
	Methodology       Methodology `json:"methodology"`
	TotalNetReduction float64     `json:"totalNetReduction"`
	EntriesCount      int         `json:"entriesCount"`
	LastEntryAt       *time.Time  `json:"lastEntryAt,omitempty"`
}

// ClientRollup is the legacy cross-period per-client summary document
// still consumed by the older dashboard. It co-exists with the
// per-period documents; one orchestrator drives both.
type ClientRollup struct {
	ClientID          string          `json:"clientId"`
	TotalNetReduction float64         `json:"totalNetReduction"`
	EntriesCount      int             `json:"entriesCount"`
	Last7Days         GroupSlice      `json:"last7Days"`
	Last30Days        GroupSlice      `json:"last30Days"`
	ByProject         []ProjectRollup `json:"byProject"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// summaryLogger is the slice of the structured logger the engine needs.
type summaryLogger interface {
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

// SummaryEngine aggregates entries into the per-period dashboards and
// the legacy client rollup. It runs after every committed write and on
// explicit refresh; failures are logged and never fail the write that
// triggered them.
type SummaryEngine struct {
	repo   Repository
	bus    events.Bus
	logger summaryLogger
	clock  func() time.Time
}

// NewSummaryEngine wires a summary engine. clock may be nil for wall
// time.
func NewSummaryEngine(repo Repository, bus events.Bus, logger summaryLogger, clock func() time.Time) *SummaryEngine {
	if clock == nil {
		clock = time.Now
	}
	return &SummaryEngine{repo: repo, bus: bus, logger: logger, clock: clock}
}

// RecomputeClient recomputes all five period summaries plus the legacy
// rollup for one client. Every period is attempted; the combined error
// reports the ones that failed.
func (s *SummaryEngine) RecomputeClient(ctx context.Context, clientID string) error {
	now := s.clock()

	entries, err := s.repo.EntriesBetween(ctx, clientID, allTimeStart, now)
	if err != nil {
		return WrapErr(KindInternal, err, "loading entries for client %s", clientID)
	}
	projects, err := s.repo.ProjectsByClient(ctx, clientID)
	if err != nil {
		return WrapErr(KindInternal, err, "loading projects for client %s", clientID)
	}
	meta := make(map[string]*Project, len(projects))
	for _, p := range projects {
		meta[p.ProjectID] = p
	}

	var all *multierror.Error
	for _, period := range AllPeriods {
		start, end := periodWindow(period, now)
		doc := buildPeriodSummary(clientID, period, start, end, entries, meta, now)
		if err := s.upsertPeriod(ctx, doc); err != nil {
			all = multierror.Append(all, fmt.Errorf("period %s: %w", period, err))
			continue
		}
		s.bus.Publish(append(events.ClientRooms(clientID), events.SummaryRoom(clientID)), events.Event{
			Type:      events.TypeSummaryUpdated,
			Timestamp: now,
			ClientID:  clientID,
			Payload: map[string]any{
				"period":            string(period),
				"totalNetReduction": doc.TotalNetReduction,
				"entriesCount":      doc.EntriesCount,
			},
		})
	}

	rollup := buildClientRollup(clientID, entries, meta, now)
	if err := s.upsertRollup(ctx, rollup); err != nil {
		all = multierror.Append(all, fmt.Errorf("client rollup: %w", err))
	} else {
		s.bus.Publish(events.ClientRooms(clientID), events.Event{
			Type:      events.TypeLegacySummaryUpdated,
			Timestamp: now,
			ClientID:  clientID,
			Payload: map[string]any{
				"totalNetReduction": rollup.TotalNetReduction,
				"entriesCount":      rollup.EntriesCount,
			},
		})
	}

	return all.ErrorOrNil()
}

// ProjectSummary returns the all-time slice of one project.
func (s *SummaryEngine) ProjectSummary(ctx context.Context, clientID, projectID string) (*ProjectRollup, error) {
	now := s.clock()
	entries, err := s.repo.EntriesBetween(ctx, clientID, allTimeStart, now)
	if err != nil {
		return nil, WrapErr(KindInternal, err, "loading entries for client %s", clientID)
	}
	p, err := s.repo.Project(ctx, clientID, projectID)
	if err != nil {
		return nil, err
	}

	out := &ProjectRollup{ProjectID: p.ProjectID, ProjectName: p.Name, Methodology: p.Methodology}
	total := 0.0
	for _, e := range entries {
		if e.ProjectID != projectID {
			continue
		}
		total += e.NetReduction
		out.EntriesCount++
		ts := e.Timestamp
		if out.LastEntryAt == nil || ts.After(*out.LastEntryAt) {
			out.LastEntryAt = &ts
		}
	}
	out.TotalNetReduction = Round6(total)
	return out, nil
}

func (s *SummaryEngine) upsertPeriod(ctx context.Context, doc *PeriodSummary) error {
	op := func() error { return s.repo.UpsertPeriodSummary(ctx, doc) }
	return backoff.Retry(op, upsertBackoff(ctx))
}

func (s *SummaryEngine) upsertRollup(ctx context.Context, doc *ClientRollup) error {
	op := func() error { return s.repo.UpsertClientRollup(ctx, doc) }
	return backoff.Retry(op, upsertBackoff(ctx))
}

func upsertBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

// periodWindow computes the [start, end] window of a period containing
// now. Daily and weekly windows follow the entry zone; monthly and
// yearly are UTC calendar windows.
func periodWindow(period SummaryPeriod, now time.Time) (time.Time, time.Time) {
	switch period {
	case PeriodDaily:
		local := now.In(EntryZone)
		start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, EntryZone)
		return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
	case PeriodWeekly:
		local := now.In(EntryZone)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, EntryZone)
		// ISO week: Monday through Sunday.
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7).Add(-time.Millisecond)
	case PeriodMonthly:
		u := now.UTC()
		start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0).Add(-time.Millisecond)
	case PeriodYearly:
		u := now.UTC()
		start := time.Date(u.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0).Add(-time.Millisecond)
	default:
		return allTimeStart, now
	}
}

func buildPeriodSummary(clientID string, period SummaryPeriod, start, end time.Time, entries []*Entry, meta map[string]*Project, now time.Time) *PeriodSummary {
	doc := &PeriodSummary{
		ClientID:            clientID,
		Period:              period,
		WindowStart:         start,
		WindowEnd:           end,
		ByProject:           []ProjectSlice{},
		ByCategory:          map[string]GroupSlice{},
		ByScope:             map[string]GroupSlice{},
		ByLocation:          map[string]GroupSlice{},
		ByProjectActivity:   map[string]GroupSlice{},
		ByMethodology:       map[string]GroupSlice{},
		HasReductionSummary: true,
		LastCalculatedAt:    now,
	}

	perProject := make(map[string]*ProjectSlice)
	var order []string
	total := 0.0

	for _, e := range entries {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		total += e.NetReduction
		doc.EntriesCount++

		p := meta[e.ProjectID]
		slice, ok := perProject[e.ProjectID]
		if !ok {
			slice = &ProjectSlice{
				ProjectID:       e.ProjectID,
				ProjectName:     metaName(p),
				ProjectActivity: orUnknown(metaActivity(p)),
				Category:        orUnknown(metaCategory(p)),
				Scope:           orUnknown(metaScope(p)),
				Location:        locationKey(p),
				Methodology:     e.Methodology,
			}
			perProject[e.ProjectID] = slice
			order = append(order, e.ProjectID)
		}
		slice.TotalNetReduction = Round6(slice.TotalNetReduction + e.NetReduction)
		slice.EntriesCount++

		bump(doc.ByCategory, orUnknown(metaCategory(p)), e.NetReduction)
		bump(doc.ByScope, orUnknown(metaScope(p)), e.NetReduction)
		bump(doc.ByLocation, locationKey(p), e.NetReduction)
		bump(doc.ByProjectActivity, orUnknown(metaActivity(p)), e.NetReduction)
		bump(doc.ByMethodology, string(e.Methodology), e.NetReduction)
	}

	for _, id := range order {
		doc.ByProject = append(doc.ByProject, *perProject[id])
	}
	doc.TotalNetReduction = Round6(total)
	return doc
}

func buildClientRollup(clientID string, entries []*Entry, meta map[string]*Project, now time.Time) *ClientRollup {
	doc := &ClientRollup{ClientID: clientID, ByProject: []ProjectRollup{}, UpdatedAt: now}
	week := now.AddDate(0, 0, -7)
	month := now.AddDate(0, 0, -30)

	perProject := make(map[string]*ProjectRollup)
	var order []string
	total := 0.0

	for _, e := range entries {
		total += e.NetReduction
		doc.EntriesCount++
		if !e.Timestamp.Before(week) {
			doc.Last7Days.TotalNetReduction = Round6(doc.Last7Days.TotalNetReduction + e.NetReduction)
			doc.Last7Days.EntriesCount++
		}
		if !e.Timestamp.Before(month) {
			doc.Last30Days.TotalNetReduction = Round6(doc.Last30Days.TotalNetReduction + e.NetReduction)
			doc.Last30Days.EntriesCount++
		}

		row, ok := perProject[e.ProjectID]
		if !ok {
			row = &ProjectRollup{
				ProjectID:   e.ProjectID,
				ProjectName: metaName(meta[e.ProjectID]),
				Methodology: e.Methodology,
			}
			perProject[e.ProjectID] = row
			order = append(order, e.ProjectID)
		}
		row.TotalNetReduction = Round6(row.TotalNetReduction + e.NetReduction)
		row.EntriesCount++
		ts := e.Timestamp
		if row.LastEntryAt == nil || ts.After(*row.LastEntryAt) {
			row.LastEntryAt = &ts
		}
	}

	for _, id := range order {
		doc.ByProject = append(doc.ByProject, *perProject[id])
	}
	doc.TotalNetReduction = Round6(total)
	return doc
}

func bump(m map[string]GroupSlice, key string, net float64) {
	slice := m[key]
	slice.TotalNetReduction = Round6(slice.TotalNetReduction + net)
	slice.EntriesCount++
	m[key] = slice
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func metaName(p *Project) string {
	if p == nil {
		return "Unknown"
	}
	return p.Name
}

func metaCategory(p *Project) string {
	if p == nil {
		return ""
	}
	return p.Category
}

func metaScope(p *Project) string {
	if p == nil {
		return ""
	}
	return p.Scope
}

func metaActivity(p *Project) string {
	if p == nil {
		return ""
	}
	return string(p.ProjectActivity)
}

// locationKey picks place, then address, then coordinates, then
// "Unknown".
func locationKey(p *Project) string {
	if p == nil {
		return "Unknown"
	}
	if p.Location.Place != "" {
		return p.Location.Place
	}
	if p.Location.Address != "" {
		return p.Location.Address
	}
	if p.Location.Lat != 0 || p.Location.Lon != 0 {
		return fmt.Sprintf("%g,%g", p.Location.Lat, p.Location.Lon)
	}
	return "Unknown"
}
