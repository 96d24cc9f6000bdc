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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction"
)

// entryBody is the wire shape of one ingestion payload. Value carries
// M1, variables M2 and entry the M3 item bindings.
type entryBody struct {
	Date       string                        `json:"date,omitempty"`
	Time       string                        `json:"time,omitempty"`
	Value      *float64                      `json:"value,omitempty"`
	Variables  map[string]float64            `json:"variables,omitempty"`
	Entry      map[string]map[string]float64 `json:"entry,omitempty"`
	UploadedBy string                        `json:"uploadedBy,omitempty"`
}

func (b entryBody) toRequest() reduction.EntryRequest {
	return reduction.EntryRequest{
		Date:       b.Date,
		Time:       b.Time,
		UploadedBy: b.UploadedBy,
		Input: reduction.EntryInput{
			Value:     b.Value,
			Variables: b.Variables,
			Items:     b.Entry,
		},
	}
}

// batchErrors renders row errors with their reasons for the envelope.
func batchErrors(errs []reduction.RowError) []map[string]any {
	out := make([]map[string]any, 0, len(errs))
	for _, re := range errs {
		out = append(out, map[string]any{"row": re.Row, "error": re.Reason()})
	}
	return out
}

func methodologyParam(r *http.Request) (reduction.Methodology, error) {
	m := reduction.Methodology(chi.URLParam(r, "methodology"))
	switch m {
	case reduction.MethodologyM1, reduction.MethodologyM2, reduction.MethodologyM3:
		return m, nil
	}
	return "", reduction.Errorf(reduction.KindValidation, "unknown methodology %q", string(m))
}

// handleManual accepts a single entry body or {"entries": [...]}.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	clientID, projectID := chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId")
	m, err := methodologyParam(r)
	if err != nil {
		fail(w, err)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		fail(w, reduction.WrapErr(reduction.KindValidation, err, "reading request body"))
		return
	}
	var batch struct {
		Entries []entryBody `json:"entries"`
	}
	if err := json.Unmarshal(raw, &batch); err == nil && len(batch.Entries) > 0 {
		reqs := make([]reduction.EntryRequest, len(batch.Entries))
		for i, b := range batch.Entries {
			reqs[i] = b.toRequest()
		}
		result, err := s.svc.IngestManualBatch(r.Context(), actorFrom(r), clientID, projectID, m, reqs)
		if err != nil {
			fail(w, err)
			return
		}
		created(w, fmt.Sprintf("saved %d entries", len(result.Saved)), map[string]any{
			"saved":  result.Saved,
			"errors": batchErrors(result.Errors),
		})
		return
	}

	var body entryBody
	if err := json.Unmarshal(raw, &body); err != nil {
		fail(w, reduction.WrapErr(reduction.KindValidation, err, "request body is not valid JSON"))
		return
	}
	entry, err := s.svc.IngestManual(r.Context(), actorFrom(r), clientID, projectID, m, body.toRequest())
	if err != nil {
		fail(w, err)
		return
	}
	created(w, "entry saved", entry)
}

type unattendedIngest func(ctx context.Context, clientID, projectID string, m reduction.Methodology, req reduction.EntryRequest) (*reduction.Entry, error)

func (s *Server) handleUnattended(w http.ResponseWriter, r *http.Request, ingest unattendedIngest) {
	clientID, projectID := chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId")
	m, err := methodologyParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	var body entryBody
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	entry, err := ingest(r.Context(), clientID, projectID, m, body.toRequest())
	if err != nil {
		fail(w, err)
		return
	}
	created(w, "entry saved", entry)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.handleUnattended(w, r, s.svc.IngestAPI)
}

func (s *Server) handleIOT(w http.ResponseWriter, r *http.Request) {
	s.handleUnattended(w, r, s.svc.IngestIOT)
}

// handleCSV stages the multipart upload, feeds it to the engine and
// always attempts to delete the staged file afterwards.
func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	clientID, projectID := chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId")
	m, err := methodologyParam(r)
	if err != nil {
		fail(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, reduction.WrapErr(reduction.KindValidation, err, "multipart field %q is required", "file"))
		return
	}
	defer file.Close()

	staged, err := s.stageUpload(file)
	if err != nil {
		fail(w, reduction.WrapErr(reduction.KindInternal, err, "staging upload"))
		return
	}
	defer func() {
		if err := os.Remove(staged.Name()); err != nil {
			s.logger.Warnf("could not remove staged upload %s: %v", staged.Name(), err)
		}
	}()
	defer staged.Close()

	result, err := s.svc.IngestCSV(r.Context(), actorFrom(r), clientID, projectID, m, staged, header.Filename)
	if err != nil {
		fail(w, err)
		return
	}
	created(w, fmt.Sprintf("saved %d entries", len(result.Saved)), map[string]any{
		"saved":  result.Saved,
		"errors": batchErrors(result.Errors),
	})
}

// stageUpload copies the multipart part to disk and rewinds it.
func (s *Server) stageUpload(part io.Reader) (*os.File, error) {
	dir := s.stagingDir
	if dir == "" {
		dir = os.TempDir()
	}
	staged, err := os.Create(filepath.Join(dir, "upload-"+uuid.NewString()+".csv"))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(staged, part); err != nil {
		staged.Close()
		os.Remove(staged.Name())
		return nil, err
	}
	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		staged.Close()
		os.Remove(staged.Name())
		return nil, err
	}
	return staged, nil
}

func (s *Server) handleEditManual(w http.ResponseWriter, r *http.Request) {
	clientID, projectID := chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId")
	m, err := methodologyParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	var body entryBody
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	entry, err := s.svc.EditManual(r.Context(), actorFrom(r), clientID, projectID, m,
		chi.URLParam(r, "entryId"), body.toRequest())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "entry updated", entry)
}

func (s *Server) handleDeleteManual(w http.ResponseWriter, r *http.Request) {
	clientID, projectID := chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId")
	m, err := methodologyParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	if err := s.svc.DeleteManual(r.Context(), actorFrom(r), clientID, projectID, m,
		chi.URLParam(r, "entryId")); err != nil {
		fail(w, err)
		return
	}
	ok(w, "entry deleted", nil)
}

// handleList serves the filtered, paginated entry listing. Non-admin
// actors are pinned to their own client.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	q := r.URL.Query()

	filter := reduction.ListFilter{
		ClientID:    q.Get("clientId"),
		ProjectID:   q.Get("projectId"),
		Methodology: reduction.Methodology(q.Get("methodology")),
		InputType:   reduction.InputType(q.Get("inputType")),
	}
	if actor.Role != reduction.RoleAdmin {
		filter.ClientID = actor.ClientID
	}
	if v := q.Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("perPage"); v != "" {
		filter.PerPage, _ = strconv.Atoi(v)
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(w, reduction.Errorf(reduction.KindValidation, "from must be RFC 3339"))
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(w, reduction.Errorf(reduction.KindValidation, "to must be RFC 3339"))
			return
		}
		filter.To = &t
	}

	entries, total, err := s.svc.List(r.Context(), actor, filter)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "entries", map[string]any{"entries": entries, "total": total})
}

func (s *Server) handleClientSummary(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	view, err := s.svc.ClientSummary(r.Context(), actorFrom(r), chi.URLParam(r, "clientId"), refresh)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "client summary", view)
}

func (s *Server) handleProjectSummary(w http.ResponseWriter, r *http.Request) {
	slice, err := s.svc.ProjectSummary(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "project summary", slice)
}

func (s *Server) handleSwitchInputType(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InputType reduction.InputType `json:"inputType"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	p, err := s.svc.SwitchInputType(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId"), body.InputType)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "input type switched", p)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.DisconnectChannel(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "channel disconnected", p)
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIEndpoint string `json:"apiEndpoint"`
	}
	// An empty body keeps the stored endpoint.
	_ = decodeBody(r, &body)
	p, err := s.svc.ReconnectChannel(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId"), body.APIEndpoint)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "channel reconnected", p)
}

func (s *Server) handleRequestAPIKey(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.RequestAPIKey(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId"))
	if err != nil {
		fail(w, err)
		return
	}
	created(w, "API key requested", p)
}

func (s *Server) handleResolveAPIKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approve   bool   `json:"approve"`
		ScopedURL string `json:"scopedUrl"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	p, err := s.svc.ResolveAPIKeyRequest(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId"), body.Approve, body.ScopedURL)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "API key request resolved", p)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p reduction.Project
	if err := decodeBody(r, &p); err != nil {
		fail(w, err)
		return
	}
	saved, err := s.svc.CreateProject(r.Context(), actorFrom(r), &p)
	if err != nil {
		fail(w, err)
		return
	}
	created(w, "project created", saved)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Project(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "project", p)
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var p reduction.Project
	if err := decodeBody(r, &p); err != nil {
		fail(w, err)
		return
	}
	p.ClientID = chi.URLParam(r, "clientId")
	p.ProjectID = chi.URLParam(r, "projectId")
	saved, err := s.svc.SaveProject(r.Context(), actorFrom(r), &p)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "project saved", saved)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(r.Context(), actorFrom(r),
		chi.URLParam(r, "clientId"), chi.URLParam(r, "projectId")); err != nil {
		fail(w, err)
		return
	}
	ok(w, "project deleted", nil)
}

func (s *Server) handleSaveFormula(w http.ResponseWriter, r *http.Request) {
	var f reduction.Formula
	if err := decodeBody(r, &f); err != nil {
		fail(w, err)
		return
	}
	if err := s.svc.SaveFormula(r.Context(), actorFrom(r), &f); err != nil {
		fail(w, err)
		return
	}
	ok(w, "formula saved", f)
}

// handleEvents streams a room's events as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, okFlush := w.(http.Flusher)
	if !okFlush {
		fail(w, reduction.Errorf(reduction.KindInternal, "streaming unsupported"))
		return
	}
	room := chi.URLParam(r, "room")
	sub := s.bus.Subscribe(room)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.C:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Errorf("marshalling event for room %s: %v", room, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
