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
	"errors"
	"fmt"
)

// Kind classifies an engine error. The HTTP edge maps kinds onto
// status codes; the engine itself never sees a status code.
type Kind string

const (
	KindUnauthenticated       Kind = "Unauthenticated"
	KindForbidden             Kind = "Forbidden"
	KindNotFound              Kind = "NotFound"
	KindChannelMismatch       Kind = "ChannelMismatch"
	KindValidation            Kind = "ValidationError"
	KindMissingVariable       Kind = "MissingVariable"
	KindFrozenVariableMissing Kind = "FrozenVariableMissing"
	KindFormulaNotFound       Kind = "FormulaNotFound"
	KindConflict              Kind = "Conflict"
	KindInternal              Kind = "Internal"
)

// Error is the engine-wide error shape.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a cause to a kinded error.
func WrapErr(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RowError attaches a 1-based row index to a per-row batch failure.
type RowError struct {
	Row int   `json:"row"`
	Err error `json:"-"`
}

func (r RowError) Error() string {
	return fmt.Sprintf("row %d: %v", r.Row, r.Err)
}

// Reason is the serializable form returned in batch responses.
func (r RowError) Reason() string {
	if r.Err == nil {
		return ""
	}
	var e *Error
	if errors.As(r.Err, &e) {
		return e.Message
	}
	return r.Err.Error()
}
