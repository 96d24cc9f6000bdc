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
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	now := time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func apiProject() *Project {
	return &Project{
		ClientID:    "GX01",
		ProjectID:   "GX01-RED-GX01-0001",
		Methodology: MethodologyM1,
		Channel: ChannelState{
			InputType:   InputAPI,
			APIEndpoint: "/api/v1/custom",
			APIStatus:   true,
		},
	}
}

func TestSwitchInputTypeClearsOppositeCredentials(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := &Project{Channel: ChannelState{
		InputType:   InputIOT,
		IOTDeviceID: "dev-7",
		IOTStatus:   true,
	}}

	if err := c.SwitchInputType(p, InputAPI); err != nil {
		t.Fatalf("SwitchInputType: %v", err)
	}
	if p.Channel.InputType != InputAPI {
		t.Errorf("InputType = %q, want API", p.Channel.InputType)
	}
	if p.Channel.OriginalInputType != InputIOT {
		t.Errorf("OriginalInputType = %q, want IOT", p.Channel.OriginalInputType)
	}
	if p.Channel.IOTDeviceID != "" || p.Channel.IOTStatus {
		t.Errorf("IOT credentials survived the switch: %+v", p.Channel)
	}
}

func TestSwitchInputTypeKeepsPendingKeyRequest(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := apiProject()
	if err := c.RequestAPIKey(p, "user-1"); err != nil {
		t.Fatalf("RequestAPIKey: %v", err)
	}
	if err := c.SwitchInputType(p, InputManual); err != nil {
		t.Fatalf("SwitchInputType: %v", err)
	}
	if p.Channel.APIKeyRequest.Status != KeyRequestPending {
		t.Errorf("key request status = %q, want pending", p.Channel.APIKeyRequest.Status)
	}
}

func TestDisconnectPreservesCredentials(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := apiProject()

	if err := c.Disconnect(p); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if p.Channel.APIStatus {
		t.Error("APIStatus still true after disconnect")
	}
	if p.Channel.APIEndpoint != "/api/v1/custom" {
		t.Errorf("endpoint lost on disconnect: %q", p.Channel.APIEndpoint)
	}
}

func TestDisconnectManualChannelFails(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := &Project{Channel: ChannelState{InputType: InputManual}}
	if err := c.Disconnect(p); !IsKind(err, KindValidation) {
		t.Errorf("error = %v, want %v kind", err, KindValidation)
	}
}

func TestReconnect(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := apiProject()
	if err := c.Disconnect(p); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if err := c.Reconnect(p, "/api/v1/updated"); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !p.Channel.APIStatus {
		t.Error("APIStatus still false after reconnect")
	}
	if p.Channel.APIEndpoint != "/api/v1/updated" {
		t.Errorf("endpoint = %q, want the updated one", p.Channel.APIEndpoint)
	}
}

func TestReconnectWithoutCredentialsFails(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := &Project{Channel: ChannelState{InputType: InputIOT}}
	if err := c.Reconnect(p, ""); !IsKind(err, KindValidation) {
		t.Errorf("error = %v, want %v kind", err, KindValidation)
	}
}

func TestAPIKeyRequestLifecycle(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := apiProject()

	if err := c.RequestAPIKey(p, "user-1"); err != nil {
		t.Fatalf("RequestAPIKey: %v", err)
	}
	if p.Channel.APIKeyRequest.Status != KeyRequestPending {
		t.Fatalf("status = %q, want pending", p.Channel.APIKeyRequest.Status)
	}

	// A second request while one is pending conflicts.
	if err := c.RequestAPIKey(p, "user-2"); !IsKind(err, KindConflict) {
		t.Errorf("duplicate request error = %v, want %v kind", err, KindConflict)
	}

	if err := c.ResolveAPIKeyRequest(p, true, "/api/v1/keyed/abc"); err != nil {
		t.Fatalf("ResolveAPIKeyRequest: %v", err)
	}
	if p.Channel.APIKeyRequest.Status != KeyRequestApproved {
		t.Errorf("status = %q, want approved", p.Channel.APIKeyRequest.Status)
	}
	if p.Channel.APIEndpoint != "/api/v1/keyed/abc" {
		t.Errorf("endpoint = %q, want the scoped URL", p.Channel.APIEndpoint)
	}

	// Requesting again over an approved key conflicts too.
	if err := c.RequestAPIKey(p, "user-1"); !IsKind(err, KindConflict) {
		t.Errorf("request over approved key error = %v, want %v kind", err, KindConflict)
	}
}

func TestAPIKeyRejection(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := apiProject()
	if err := c.RequestAPIKey(p, "user-1"); err != nil {
		t.Fatalf("RequestAPIKey: %v", err)
	}
	if err := c.ResolveAPIKeyRequest(p, false, ""); err != nil {
		t.Fatalf("ResolveAPIKeyRequest: %v", err)
	}
	if p.Channel.APIKeyRequest.Status != KeyRequestRejected {
		t.Errorf("status = %q, want rejected", p.Channel.APIKeyRequest.Status)
	}
	// A rejected request can be reopened.
	if err := c.RequestAPIKey(p, "user-1"); err != nil {
		t.Errorf("re-request after rejection: %v", err)
	}
}

func TestResolveWithoutPendingRequestConflicts(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := apiProject()
	if err := c.ResolveAPIKeyRequest(p, true, "/x"); !IsKind(err, KindConflict) {
		t.Errorf("error = %v, want %v kind", err, KindConflict)
	}
}

func TestValidateChannel(t *testing.T) {
	c := NewChannelController(fixedClock())

	manual := &Project{ProjectID: "p", Channel: ChannelState{InputType: InputManual}}
	if err := c.ValidateChannel(manual, InputManual); err != nil {
		t.Errorf("manual on manual: %v", err)
	}
	// CSV rides the manual channel.
	if err := c.ValidateChannel(manual, InputCSV); err != nil {
		t.Errorf("csv on manual: %v", err)
	}
	if err := c.ValidateChannel(manual, InputAPI); !IsKind(err, KindChannelMismatch) {
		t.Errorf("api on manual error = %v, want %v kind", err, KindChannelMismatch)
	}

	api := apiProject()
	if err := c.ValidateChannel(api, InputAPI); err != nil {
		t.Errorf("api on api: %v", err)
	}
	if err := c.Disconnect(api); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := c.ValidateChannel(api, InputAPI); !IsKind(err, KindChannelMismatch) {
		t.Errorf("api while disconnected error = %v, want %v kind", err, KindChannelMismatch)
	}
}

func TestSynthesizeEndpoint(t *testing.T) {
	c := NewChannelController(fixedClock())
	p := apiProject()

	c.SynthesizeEndpoint(p)
	want := "/api/v1/net-reduction/GX01/GX01-RED-GX01-0001/M1/api"
	if p.Channel.APIEndpoint != want {
		t.Errorf("endpoint = %q, want %q", p.Channel.APIEndpoint, want)
	}

	// An approved key pins the scoped URL.
	if err := c.RequestAPIKey(p, "user-1"); err != nil {
		t.Fatalf("RequestAPIKey: %v", err)
	}
	if err := c.ResolveAPIKeyRequest(p, true, "/api/v1/keyed/abc"); err != nil {
		t.Fatalf("ResolveAPIKeyRequest: %v", err)
	}
	c.SynthesizeEndpoint(p)
	if p.Channel.APIEndpoint != "/api/v1/keyed/abc" {
		t.Errorf("scoped endpoint overwritten: %q", p.Channel.APIEndpoint)
	}
}
