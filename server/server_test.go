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
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/internal/logs"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/events"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/inmem"
)

type responseEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

type actorHeaders struct {
	id, role, clientID string
}

var (
	adminHeaders  = actorHeaders{id: "admin-1", role: "admin"}
	writerHeaders = actorHeaders{id: "ca-1", role: "client-admin", clientID: "GX01"}
	viewerHeaders = actorHeaders{id: "v-1", role: "viewer", clientID: "GX01"}
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	svc := reduction.NewService(inmem.NewStore(), reduction.StaticOracle{},
		events.NewInProcessBus(16), logs.DiscardLogger(), nil, nil)
	srv := New(svc, events.NewInProcessBus(16), logs.DiscardLogger(), Options{StagingDir: t.TempDir()})
	return srv.Router()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, actor actorHeaders, body any) (int, responseEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor.id != "" {
		req.Header.Set("X-Actor-Id", actor.id)
		req.Header.Set("X-Actor-Role", actor.role)
		req.Header.Set("X-Actor-Client-Id", actor.clientID)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env responseEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response %q is not an envelope: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

// createProject provisions an M1 project through the API and returns
// its minted id.
func createProject(t *testing.T, handler http.Handler) string {
	t.Helper()
	status, env := doJSON(t, handler, http.MethodPost, "/net-reduction-projects/", writerHeaders, map[string]any{
		"clientId":    "GX01",
		"name":        "solar array",
		"methodology": "M1",
		"m1": map[string]any{
			"abd": []map[string]any{{"value": 100, "ef": 1.5, "gwp": 1, "af": 1}},
			"apd": []map[string]any{{"value": 100, "ef": 1, "gwp": 1, "af": 1}},
		},
		"reductionDataEntry": map[string]any{"inputType": "manual"},
	})
	assert.Equal(t, status, http.StatusCreated)
	assert.Assert(t, env.Success)
	id, _ := env.Data["projectId"].(string)
	assert.Assert(t, id != "", "project id missing from %v", env.Data)
	return id
}

func TestHealthz(t *testing.T) {
	status, env := doJSON(t, newTestHandler(t), http.MethodGet, "/healthz", actorHeaders{}, nil)
	assert.Equal(t, status, http.StatusOK)
	assert.Assert(t, env.Success)
}

func TestCreateProjectAndIngestManual(t *testing.T) {
	handler := newTestHandler(t)
	projectID := createProject(t, handler)
	assert.Equal(t, projectID, "GX01-RED-GX01-0001")

	path := fmt.Sprintf("/net-reduction/GX01/%s/M1/manual", projectID)
	status, env := doJSON(t, handler, http.MethodPost, path, writerHeaders, map[string]any{
		"date":  "14/08/2025",
		"time":  "11:00",
		"value": 10,
	})
	assert.Equal(t, status, http.StatusCreated)
	assert.Equal(t, env.Data["netReduction"], 5.0)
}

func TestManualBatch(t *testing.T) {
	handler := newTestHandler(t)
	projectID := createProject(t, handler)

	path := fmt.Sprintf("/net-reduction/GX01/%s/M1/manual", projectID)
	status, env := doJSON(t, handler, http.MethodPost, path, writerHeaders, map[string]any{
		"entries": []map[string]any{
			{"value": 10, "date": "14/08/2025"},
			{"value": 4, "date": "15/08/2025"},
		},
	})
	assert.Equal(t, status, http.StatusCreated)
	assert.Equal(t, env.Message, "saved 2 entries")
}

func TestStatusMapping(t *testing.T) {
	handler := newTestHandler(t)
	projectID := createProject(t, handler)
	manualPath := fmt.Sprintf("/net-reduction/GX01/%s/M1/manual", projectID)
	entry := map[string]any{"value": 10}

	t.Run("no actor is 401", func(t *testing.T) {
		status, env := doJSON(t, handler, http.MethodPost, manualPath, actorHeaders{}, entry)
		assert.Equal(t, status, http.StatusUnauthorized)
		assert.Equal(t, env.Error, "Unauthenticated")
	})

	t.Run("viewer write is 403", func(t *testing.T) {
		status, env := doJSON(t, handler, http.MethodPost, manualPath, viewerHeaders, entry)
		assert.Equal(t, status, http.StatusForbidden)
		assert.Equal(t, env.Error, "Forbidden")
	})

	t.Run("unknown methodology is 400", func(t *testing.T) {
		path := fmt.Sprintf("/net-reduction/GX01/%s/M9/manual", projectID)
		status, env := doJSON(t, handler, http.MethodPost, path, writerHeaders, entry)
		assert.Equal(t, status, http.StatusBadRequest)
		assert.Equal(t, env.Error, "ValidationError")
	})

	t.Run("missing project is 404", func(t *testing.T) {
		status, env := doJSON(t, handler, http.MethodPost, "/net-reduction/GX01/nope/M1/manual", writerHeaders, entry)
		assert.Equal(t, status, http.StatusNotFound)
		assert.Equal(t, env.Error, "NotFound")
	})

	t.Run("api entry on manual project is 400", func(t *testing.T) {
		path := fmt.Sprintf("/net-reduction/GX01/%s/M1/api", projectID)
		status, env := doJSON(t, handler, http.MethodPost, path, actorHeaders{}, entry)
		assert.Equal(t, status, http.StatusBadRequest)
		assert.Equal(t, env.Error, "ChannelMismatch")
	})

	t.Run("resolving absent key request is 409", func(t *testing.T) {
		path := fmt.Sprintf("/net-reduction/GX01/%s/api-key-request", projectID)
		status, env := doJSON(t, handler, http.MethodPatch, path, adminHeaders, map[string]any{
			"approve":   true,
			"scopedUrl": "/api/v1/keyed/abc",
		})
		assert.Equal(t, status, http.StatusConflict)
		assert.Equal(t, env.Error, "Conflict")
	})
}

func TestCSVUpload(t *testing.T) {
	handler := newTestHandler(t)
	projectID := createProject(t, handler)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "batch.csv")
	assert.NilError(t, err)
	_, err = part.Write([]byte("value,date,time\n10,14/08/2025,11:00\nabc,14/08/2025,11:05\n4,14/08/2025,11:10\n"))
	assert.NilError(t, err)
	assert.NilError(t, mw.Close())

	path := fmt.Sprintf("/net-reduction/GX01/%s/M1/csv", projectID)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Actor-Id", writerHeaders.id)
	req.Header.Set("X-Actor-Role", writerHeaders.role)
	req.Header.Set("X-Actor-Client-Id", writerHeaders.clientID)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusCreated)

	var env responseEnvelope
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, env.Message, "saved 2 entries")
	errs, _ := env.Data["errors"].([]any)
	assert.Equal(t, len(errs), 1)
	first, _ := errs[0].(map[string]any)
	assert.Equal(t, first["row"], 2.0)
}

func TestListEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	projectID := createProject(t, handler)

	path := fmt.Sprintf("/net-reduction/GX01/%s/M1/manual", projectID)
	for i := 0; i < 3; i++ {
		status, _ := doJSON(t, handler, http.MethodPost, path, writerHeaders, map[string]any{"value": 10})
		assert.Equal(t, status, http.StatusCreated)
	}

	status, env := doJSON(t, handler, http.MethodGet, "/net-reduction/?page=1&perPage=2", viewerHeaders, nil)
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, env.Data["total"], 3.0)
	entries, _ := env.Data["entries"].([]any)
	assert.Equal(t, len(entries), 2)
}

func TestClientSummaryEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	projectID := createProject(t, handler)

	path := fmt.Sprintf("/net-reduction/GX01/%s/M1/manual", projectID)
	status, _ := doJSON(t, handler, http.MethodPost, path, writerHeaders, map[string]any{"value": 10})
	assert.Equal(t, status, http.StatusCreated)

	status, env := doJSON(t, handler, http.MethodGet, "/net-reduction/summary/GX01?refresh=true", viewerHeaders, nil)
	assert.Equal(t, status, http.StatusOK)
	periods, _ := env.Data["periods"].(map[string]any)
	allTime, _ := periods["all-time"].(map[string]any)
	assert.Equal(t, allTime["totalNetReduction"], 5.0)
}
