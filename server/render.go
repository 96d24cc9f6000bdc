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
	"encoding/json"
	"net/http"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func created(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

// fail maps the error kind onto the HTTP status table. Internal errors
// surface a generic message only.
func fail(w http.ResponseWriter, err error) {
	kind := reduction.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if kind == reduction.KindInternal {
		message = "internal error"
	}
	writeJSON(w, status, envelope{Success: false, Message: message, Error: string(kind)})
}

func statusFor(kind reduction.Kind) int {
	switch kind {
	case reduction.KindUnauthenticated:
		return http.StatusUnauthorized
	case reduction.KindForbidden:
		return http.StatusForbidden
	case reduction.KindNotFound, reduction.KindFormulaNotFound:
		return http.StatusNotFound
	case reduction.KindValidation, reduction.KindChannelMismatch,
		reduction.KindMissingVariable, reduction.KindFrozenVariableMissing:
		return http.StatusBadRequest
	case reduction.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// actorFrom reads the authenticated principal the gateway attached as
// headers. Token verification is the gateway's concern.
func actorFrom(r *http.Request) reduction.Actor {
	return reduction.Actor{
		ID:       r.Header.Get("X-Actor-Id"),
		Role:     reduction.Role(r.Header.Get("X-Actor-Role")),
		ClientID: r.Header.Get("X-Actor-Client-Id"),
	}
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(into); err != nil {
		return reduction.WrapErr(reduction.KindValidation, err, "request body is not valid JSON")
	}
	return nil
}
