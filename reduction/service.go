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
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/events"
)

// Logger is the structured logging surface the service writes to.
type Logger interface {
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// Metrics counts ingestion outcomes. A nop implementation ships for
// tests; the otel-backed one lives in internal/selfmetrics.
type Metrics interface {
	EntrySaved(ctx context.Context, inputType string)
	EntryRejected(ctx context.Context, kind string)
	BatchProcessed(ctx context.Context, saved, failed int)
}

// NopMetrics discards all counts.
type NopMetrics struct{}

func (NopMetrics) EntrySaved(context.Context, string) {}

func (NopMetrics) EntryRejected(context.Context, string) {}

func (NopMetrics) BatchProcessed(context.Context, int, int) {}

// EntryRequest is one ingestion payload before normalization.
type EntryRequest struct {
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Input      EntryInput `json:"-"`
	UploadedBy string     `json:"uploadedBy,omitempty"`
}

// BatchResult reports a batch ingestion: committed entries plus the
// per-row failures that did not block them.
type BatchResult struct {
	Saved  []*Entry   `json:"saved"`
	Errors []RowError `json:"errors"`
}

// ClientSummaryView bundles the five period documents and the legacy
// rollup for one client.
type ClientSummaryView struct {
	Periods map[SummaryPeriod]*PeriodSummary `json:"periods"`
	Rollup  *ClientRollup                    `json:"rollup,omitempty"`
}

// keyedMutex hands out one mutex per series for the edit/delete paths.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[SeriesKey]*sync.Mutex
}

func (k *keyedMutex) get(key SeriesKey) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[SeriesKey]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Service orchestrates one write or read end to end: authorization,
// channel validation, normalization, evaluation, persistence, series
// recompute, summaries and events.
type Service struct {
	repo      Repository
	authz     AuthorizationOracle
	bus       events.Bus
	eval      *Evaluator
	summaries *SummaryEngine
	channels  *ChannelController
	validate  *validator.Validate
	logger    Logger
	metrics   Metrics
	clock     func() time.Time
	seriesMu  keyedMutex
}

// NewService wires the engine. metrics and clock may be nil.
func NewService(repo Repository, authz AuthorizationOracle, bus events.Bus, logger Logger, metrics Metrics, clock func() time.Time) *Service {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:      repo,
		authz:     authz,
		bus:       bus,
		eval:      NewEvaluator(repo),
		summaries: NewSummaryEngine(repo, bus, logger, clock),
		channels:  NewChannelController(clock),
		validate:  NewProjectValidator(),
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
	}
}

func (s *Service) requireRead(actor Actor, clientID string) error {
	if actor.ID == "" {
		return Errorf(KindUnauthenticated, "no authenticated actor")
	}
	if d := s.authz.CanRead(actor, clientID); !d.OK {
		return Errorf(KindForbidden, "read denied: %s", d.Reason)
	}
	return nil
}

func (s *Service) requireWrite(actor Actor, clientID string) error {
	if actor.ID == "" {
		return Errorf(KindUnauthenticated, "no authenticated actor")
	}
	if d := s.authz.CanWrite(actor, clientID); !d.OK {
		return Errorf(KindForbidden, "write denied: %s", d.Reason)
	}
	return nil
}

func (s *Service) requireChannel(actor Actor, clientID string) error {
	if actor.ID == "" {
		return Errorf(KindUnauthenticated, "no authenticated actor")
	}
	if d := s.authz.CanManageChannel(actor, clientID); !d.OK {
		return Errorf(KindForbidden, "channel management denied: %s", d.Reason)
	}
	return nil
}

// CreateProject mints the per-client project id, normalizes and
// persists a new project.
func (s *Service) CreateProject(ctx context.Context, actor Actor, p *Project) (*Project, error) {
	if err := s.requireWrite(actor, p.ClientID); err != nil {
		return nil, err
	}
	seq, err := s.repo.NextProjectSeq(ctx, p.ClientID)
	if err != nil {
		return nil, WrapErr(KindInternal, err, "allocating project sequence")
	}
	p.ReductionID = seq
	p.ProjectID = FormatProjectID(p.ClientID, seq)
	now := s.clock()
	p.CreatedAt = now
	return s.saveProject(ctx, p, now)
}

// SaveProject validates, recomputes derived scalars and persists an
// existing project.
func (s *Service) SaveProject(ctx context.Context, actor Actor, p *Project) (*Project, error) {
	if err := s.requireWrite(actor, p.ClientID); err != nil {
		return nil, err
	}
	return s.saveProject(ctx, p, s.clock())
}

func (s *Service) saveProject(ctx context.Context, p *Project, now time.Time) (*Project, error) {
	if p.Channel.InputType == "" {
		p.Channel.InputType = InputManual
	}
	if err := ValidateProject(s.validate, p); err != nil {
		return nil, err
	}
	RecomputeProjectScalars(p)
	s.channels.SynthesizeEndpoint(p)
	p.UpdatedAt = now
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, WrapErr(KindInternal, err, "saving project %s", p.ProjectID)
	}
	return p, nil
}

// DeleteProject soft-deletes: the project disappears from reads while
// its entries stay on record.
func (s *Service) DeleteProject(ctx context.Context, actor Actor, clientID, projectID string) error {
	if err := s.requireWrite(actor, clientID); err != nil {
		return err
	}
	p, err := s.repo.Project(ctx, clientID, projectID)
	if err != nil {
		return err
	}
	p.IsDeleted = true
	p.UpdatedAt = s.clock()
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return WrapErr(KindInternal, err, "deleting project %s", projectID)
	}
	return nil
}

// Project returns one project.
func (s *Service) Project(ctx context.Context, actor Actor, clientID, projectID string) (*Project, error) {
	if err := s.requireRead(actor, clientID); err != nil {
		return nil, err
	}
	return s.repo.Project(ctx, clientID, projectID)
}

// SaveFormula persists a formula and drops its cached programs.
// Global formulas (empty clientID) are admin-only.
func (s *Service) SaveFormula(ctx context.Context, actor Actor, f *Formula) error {
	if f.ClientID == "" {
		if actor.Role != RoleAdmin {
			return Errorf(KindForbidden, "only admins may save global formulas")
		}
	} else if err := s.requireWrite(actor, f.ClientID); err != nil {
		return err
	}
	if f.Expression == "" {
		return Errorf(KindValidation, "formula expression is required")
	}
	if err := s.repo.SaveFormula(ctx, f); err != nil {
		return WrapErr(KindInternal, err, "saving formula %s", f.ID)
	}
	s.eval.InvalidateFormula(f.ID)
	return nil
}

// IngestManual evaluates and commits one manual entry.
func (s *Service) IngestManual(ctx context.Context, actor Actor, clientID, projectID string, m Methodology, req EntryRequest) (*Entry, error) {
	if err := s.requireWrite(actor, clientID); err != nil {
		return nil, err
	}
	p, err := s.loadProject(ctx, clientID, projectID, m)
	if err != nil {
		return nil, err
	}
	if err := s.channels.ValidateChannel(p, InputManual); err != nil {
		return nil, err
	}
	source := SourceDetails{UploadedBy: firstNonEmpty(req.UploadedBy, actor.ID), DataSource: string(InputManual)}
	entry, err := s.ingestOne(ctx, p, InputManual, source, req)
	if err != nil {
		s.metrics.EntryRejected(ctx, string(KindOf(err)))
		return nil, err
	}
	s.afterCommit(ctx, clientID, manualSavedType(m), entryPayload(entry))
	return entry, nil
}

// IngestManualBatch commits the valid rows of a manual batch and
// reports the rest with 1-based indices.
func (s *Service) IngestManualBatch(ctx context.Context, actor Actor, clientID, projectID string, m Methodology, reqs []EntryRequest) (*BatchResult, error) {
	if err := s.requireWrite(actor, clientID); err != nil {
		return nil, err
	}
	p, err := s.loadProject(ctx, clientID, projectID, m)
	if err != nil {
		return nil, err
	}
	if err := s.channels.ValidateChannel(p, InputManual); err != nil {
		return nil, err
	}

	result := &BatchResult{Saved: []*Entry{}, Errors: []RowError{}}
	for i, req := range reqs {
		source := SourceDetails{UploadedBy: firstNonEmpty(req.UploadedBy, actor.ID), DataSource: string(InputManual)}
		entry, err := s.appendOne(ctx, p, InputManual, source, req)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: err})
			continue
		}
		result.Saved = append(result.Saved, entry)
	}
	s.finishBatch(ctx, p, result, manualSavedType(m))
	return result, nil
}

// IngestAPI commits one API-channel entry. The key-scoped URL is the
// authentication; no oracle check happens here.
func (s *Service) IngestAPI(ctx context.Context, clientID, projectID string, m Methodology, req EntryRequest) (*Entry, error) {
	return s.ingestUnattended(ctx, clientID, projectID, m, InputAPI, events.TypeAPISaved, req)
}

// IngestIOT commits one IoT-channel entry.
func (s *Service) IngestIOT(ctx context.Context, clientID, projectID string, m Methodology, req EntryRequest) (*Entry, error) {
	return s.ingestUnattended(ctx, clientID, projectID, m, InputIOT, events.TypeIOTSaved, req)
}

func (s *Service) ingestUnattended(ctx context.Context, clientID, projectID string, m Methodology, channel InputType, evType events.Type, req EntryRequest) (*Entry, error) {
	p, err := s.loadProject(ctx, clientID, projectID, m)
	if err != nil {
		return nil, err
	}
	if err := s.channels.ValidateChannel(p, channel); err != nil {
		return nil, err
	}
	source := SourceDetails{DataSource: string(channel)}
	if channel == InputAPI {
		source.APIEndpoint = p.Channel.APIEndpoint
	} else {
		source.IOTDeviceID = p.Channel.IOTDeviceID
	}
	entry, err := s.ingestOne(ctx, p, channel, source, req)
	if err != nil {
		s.metrics.EntryRejected(ctx, string(KindOf(err)))
		return nil, err
	}
	s.afterCommit(ctx, clientID, evType, entryPayload(entry))
	return entry, nil
}

// IngestCSV decodes, evaluates and commits a CSV batch. Valid rows
// land; bad rows come back with their 1-based index.
func (s *Service) IngestCSV(ctx context.Context, actor Actor, clientID, projectID string, m Methodology, file io.Reader, fileName string) (*BatchResult, error) {
	if err := s.requireWrite(actor, clientID); err != nil {
		return nil, err
	}
	p, err := s.loadProject(ctx, clientID, projectID, m)
	if err != nil {
		return nil, err
	}
	if err := s.channels.ValidateChannel(p, InputCSV); err != nil {
		return nil, err
	}

	rows, rowErrs, err := ParseCSV(file, m)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Saved: []*Entry{}, Errors: rowErrs}
	for _, row := range rows {
		req := EntryRequest{Date: row.Date, Time: row.Time, Input: row.Input}
		source := SourceDetails{
			UploadedBy: actor.ID,
			DataSource: string(InputCSV),
			FileName:   fileName,
		}
		entry, err := s.appendOne(ctx, p, InputCSV, source, req)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row.Index, Err: err})
			continue
		}
		result.Saved = append(result.Saved, entry)
	}
	s.finishBatch(ctx, p, result, events.TypeCSVProcessed)
	return result, nil
}

// EditManual re-evaluates a manual entry with new inputs under the
// series lock and rewrites the derived columns.
func (s *Service) EditManual(ctx context.Context, actor Actor, clientID, projectID string, m Methodology, entryID string, req EntryRequest) (*Entry, error) {
	if err := s.requireWrite(actor, clientID); err != nil {
		return nil, err
	}
	p, err := s.loadProject(ctx, clientID, projectID, m)
	if err != nil {
		return nil, err
	}
	key := SeriesKey{ClientID: clientID, ProjectID: projectID, Methodology: m}

	lock := s.seriesMu.get(key)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.repo.Entry(ctx, key, entryID)
	if err != nil {
		return nil, err
	}
	if entry.InputType != InputManual && entry.InputType != InputCSV {
		return nil, Errorf(KindValidation, "entry %s arrived via %s and cannot be edited", entryID, entry.InputType)
	}

	ts := NormalizeClock(req.Date, req.Time, s.clock())
	res, err := s.eval.Evaluate(ctx, p, req.Input, ts.Timestamp)
	if err != nil {
		return nil, err
	}
	applyResult(entry, res, ts)
	entry.UpdatedAt = s.clock()

	if err := s.repo.UpdateEntry(ctx, entry); err != nil {
		return nil, WrapErr(KindInternal, err, "updating entry %s", entryID)
	}
	updated, err := s.recomputeAndFind(ctx, key, entryID)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, clientID, events.TypeManualUpdated, entryPayload(updated))
	return updated, nil
}

// DeleteManual removes a manual entry under the series lock and
// recomputes what remains.
func (s *Service) DeleteManual(ctx context.Context, actor Actor, clientID, projectID string, m Methodology, entryID string) error {
	if err := s.requireWrite(actor, clientID); err != nil {
		return err
	}
	key := SeriesKey{ClientID: clientID, ProjectID: projectID, Methodology: m}

	lock := s.seriesMu.get(key)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.repo.Entry(ctx, key, entryID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, key, entryID); err != nil {
		return err
	}
	if _, err := RecomputeSeries(ctx, s.repo, key); err != nil {
		s.logger.Errorf("series recompute after delete failed for %s/%s: %v", clientID, projectID, err)
	}
	s.afterCommit(ctx, clientID, events.TypeManualDeleted, map[string]any{
		"entryId":     entry.ID,
		"projectId":   entry.ProjectID,
		"methodology": string(entry.Methodology),
	})
	return nil
}

// List returns a filtered page of entries plus the total match count.
func (s *Service) List(ctx context.Context, actor Actor, filter ListFilter) ([]*Entry, int, error) {
	if err := s.requireRead(actor, filter.ClientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListEntries(ctx, filter)
}

// ClientSummary returns the five period documents and the rollup,
// recomputing first when refresh is set or nothing is stored yet.
func (s *Service) ClientSummary(ctx context.Context, actor Actor, clientID string, refresh bool) (*ClientSummaryView, error) {
	if err := s.requireRead(actor, clientID); err != nil {
		return nil, err
	}
	if refresh {
		if err := s.summaries.RecomputeClient(ctx, clientID); err != nil {
			return nil, err
		}
	}

	view, err := s.readSummaries(ctx, clientID)
	if err == nil && len(view.Periods) == 0 && !refresh {
		if err := s.summaries.RecomputeClient(ctx, clientID); err != nil {
			return nil, err
		}
		view, err = s.readSummaries(ctx, clientID)
	}
	return view, err
}

func (s *Service) readSummaries(ctx context.Context, clientID string) (*ClientSummaryView, error) {
	view := &ClientSummaryView{Periods: make(map[SummaryPeriod]*PeriodSummary)}
	for _, period := range AllPeriods {
		doc, err := s.repo.PeriodSummary(ctx, clientID, period)
		if err != nil {
			if IsKind(err, KindNotFound) {
				continue
			}
			return nil, err
		}
		view.Periods[period] = doc
	}
	rollup, err := s.repo.ClientRollup(ctx, clientID)
	if err != nil && !IsKind(err, KindNotFound) {
		return nil, err
	}
	view.Rollup = rollup
	return view, nil
}

// ProjectSummary returns the all-time slice of one project.
func (s *Service) ProjectSummary(ctx context.Context, actor Actor, clientID, projectID string) (*ProjectRollup, error) {
	if err := s.requireRead(actor, clientID); err != nil {
		return nil, err
	}
	return s.summaries.ProjectSummary(ctx, clientID, projectID)
}

// SwitchInputType moves a project to a new ingestion channel.
func (s *Service) SwitchInputType(ctx context.Context, actor Actor, clientID, projectID string, target InputType) (*Project, error) {
	return s.channelOp(ctx, actor, clientID, projectID, func(p *Project) error {
		return s.channels.SwitchInputType(p, target)
	})
}

// DisconnectChannel flips the active channel offline.
func (s *Service) DisconnectChannel(ctx context.Context, actor Actor, clientID, projectID string) (*Project, error) {
	return s.channelOp(ctx, actor, clientID, projectID, func(p *Project) error {
		return s.channels.Disconnect(p)
	})
}

// ReconnectChannel flips the active channel back online.
func (s *Service) ReconnectChannel(ctx context.Context, actor Actor, clientID, projectID, newEndpoint string) (*Project, error) {
	return s.channelOp(ctx, actor, clientID, projectID, func(p *Project) error {
		return s.channels.Reconnect(p, newEndpoint)
	})
}

// RequestAPIKey opens the key request lifecycle.
func (s *Service) RequestAPIKey(ctx context.Context, actor Actor, clientID, projectID string) (*Project, error) {
	return s.channelOp(ctx, actor, clientID, projectID, func(p *Project) error {
		return s.channels.RequestAPIKey(p, actor.ID)
	})
}

// ResolveAPIKeyRequest settles a pending key request; admin only.
func (s *Service) ResolveAPIKeyRequest(ctx context.Context, actor Actor, clientID, projectID string, approve bool, scopedURL string) (*Project, error) {
	if actor.Role != RoleAdmin {
		return nil, Errorf(KindForbidden, "only admins may resolve API key requests")
	}
	return s.channelOp(ctx, actor, clientID, projectID, func(p *Project) error {
		return s.channels.ResolveAPIKeyRequest(p, approve, scopedURL)
	})
}

func (s *Service) channelOp(ctx context.Context, actor Actor, clientID, projectID string, op func(*Project) error) (*Project, error) {
	if err := s.requireChannel(actor, clientID); err != nil {
		return nil, err
	}
	p, err := s.repo.Project(ctx, clientID, projectID)
	if err != nil {
		return nil, err
	}
	if err := op(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.clock()
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, WrapErr(KindInternal, err, "saving project %s", projectID)
	}
	return p, nil
}

// loadProject fetches the project and checks the path methodology
// matches its configuration.
func (s *Service) loadProject(ctx context.Context, clientID, projectID string, m Methodology) (*Project, error) {
	p, err := s.repo.Project(ctx, clientID, projectID)
	if err != nil {
		return nil, err
	}
	if p.Methodology != m {
		return nil, Errorf(KindValidation, "project %s is configured for %s, not %s", projectID, p.Methodology, m)
	}
	return p, nil
}

// ingestOne appends a single entry and recomputes its series.
func (s *Service) ingestOne(ctx context.Context, p *Project, inputType InputType, source SourceDetails, req EntryRequest) (*Entry, error) {
	entry, err := s.appendOne(ctx, p, inputType, source, req)
	if err != nil {
		return nil, err
	}
	return s.recomputeAndFind(ctx, entry.Key(), entry.ID)
}

// appendOne evaluates and inserts without recomputing; batch paths
// recompute once at the end.
func (s *Service) appendOne(ctx context.Context, p *Project, inputType InputType, source SourceDetails, req EntryRequest) (*Entry, error) {
	ts := NormalizeClock(req.Date, req.Time, s.clock())
	res, err := s.eval.Evaluate(ctx, p, req.Input, ts.Timestamp)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	entry := &Entry{
		ID:          uuid.NewString(),
		ClientID:    p.ClientID,
		ProjectID:   p.ProjectID,
		Methodology: p.Methodology,
		InputType:   inputType,
		Source:      source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyResult(entry, res, ts)

	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return nil, WrapErr(KindInternal, err, "inserting entry")
	}
	s.metrics.EntrySaved(ctx, string(inputType))
	return entry, nil
}

// applyResult writes the evaluation outcome and normalized clock onto
// the entry.
func applyResult(entry *Entry, res *EvalResult, ts ClockStamp) {
	entry.Date = ts.Date
	entry.Time = ts.Time
	entry.Timestamp = ts.Timestamp
	entry.NetReduction = res.NetReduction
	entry.InputValue = res.InputValue
	entry.EmissionReductionRate = res.Rate
	entry.FormulaID = res.FormulaID
	entry.Variables = res.Binding
	entry.NetInFormula = res.NetInFormula
	entry.M3 = res.M3
}

// recomputeAndFind rewrites the derived columns and returns the fresh
// row for entryID.
func (s *Service) recomputeAndFind(ctx context.Context, key SeriesKey, entryID string) (*Entry, error) {
	series, err := RecomputeSeries(ctx, s.repo, key)
	if err != nil {
		return nil, WrapErr(KindInternal, err, "recomputing series")
	}
	for _, row := range series {
		if row.ID == entryID {
			return row, nil
		}
	}
	return nil, Errorf(KindInternal, "entry %s vanished during recompute", entryID)
}

// finishBatch recomputes once for the whole batch and emits the batch
// event. Zero saved rows skip both.
func (s *Service) finishBatch(ctx context.Context, p *Project, result *BatchResult, evType events.Type) {
	s.metrics.BatchProcessed(ctx, len(result.Saved), len(result.Errors))
	if len(result.Saved) == 0 {
		return
	}
	key := result.Saved[0].Key()
	series, err := RecomputeSeries(ctx, s.repo, key)
	if err != nil {
		s.logger.Errorf("series recompute after batch failed for %s/%s: %v", p.ClientID, p.ProjectID, err)
	} else {
		byID := make(map[string]*Entry, len(series))
		for _, row := range series {
			byID[row.ID] = row
		}
		for i, saved := range result.Saved {
			if fresh, ok := byID[saved.ID]; ok {
				result.Saved[i] = fresh
			}
		}
	}
	s.afterCommit(ctx, p.ClientID, evType, map[string]any{
		"projectId":   p.ProjectID,
		"methodology": string(p.Methodology),
		"savedCount":  len(result.Saved),
		"errorCount":  len(result.Errors),
	})
}

// afterCommit emits the mutation event and refreshes summaries. Both
// are best-effort; the committed write already succeeded.
func (s *Service) afterCommit(ctx context.Context, clientID string, evType events.Type, payload map[string]any) {
	s.bus.Publish(events.ClientRooms(clientID), events.Event{
		Type:      evType,
		Timestamp: s.clock(),
		ClientID:  clientID,
		Payload:   payload,
	})
	if err := s.summaries.RecomputeClient(context.WithoutCancel(ctx), clientID); err != nil {
		s.logger.Errorf("summary recompute failed for client %s: %v", clientID, err)
	}
}

func manualSavedType(m Methodology) events.Type {
	if m == MethodologyM3 {
		return events.TypeM3ManualSaved
	}
	return events.TypeManualSaved
}

// entryPayload is the mode-specific event body for single-entry
// mutations.
func entryPayload(e *Entry) map[string]any {
	payload := map[string]any{
		"entryId":                e.ID,
		"projectId":              e.ProjectID,
		"methodology":            string(e.Methodology),
		"netReduction":           e.NetReduction,
		"cumulativeNetReduction": e.CumulativeNetReduction,
		"highNetReduction":       e.HighNetReduction,
		"lowNetReduction":        e.LowNetReduction,
	}
	if len(e.Variables) > 0 {
		payload["variables"] = e.Variables
	}
	if e.M3 != nil {
		payload["m3"] = e.M3
	}
	return payload
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
