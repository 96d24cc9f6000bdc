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
	"fmt"
	"time"
)

// ChannelController drives the ingestion channel state machine of a
// project. All transitions mutate the project in memory; persisting
// the result is the caller's job.
type ChannelController struct {
	clock func() time.Time
}

// NewChannelController builds a controller. clock may be nil for wall
// time.
func NewChannelController(clock func() time.Time) *ChannelController {
	if clock == nil {
		clock = time.Now
	}
	return &ChannelController{clock: clock}
}

// SwitchInputType moves the project to a new ingestion channel. The
// opposite channel's credentials are cleared; a pending key request
// survives the switch.
func (c *ChannelController) SwitchInputType(p *Project, target InputType) error {
	switch target {
	case InputManual, InputAPI, InputIOT:
	default:
		return Errorf(KindValidation, "input type %q is not switchable", target)
	}
	if p.Channel.InputType == target {
		return nil
	}

	p.Channel.OriginalInputType = p.Channel.InputType
	p.Channel.InputType = target

	switch target {
	case InputAPI:
		p.Channel.IOTDeviceID = ""
		p.Channel.IOTStatus = false
		p.Channel.APIStatus = true
		c.SynthesizeEndpoint(p)
	case InputIOT:
		p.Channel.APIStatus = false
		p.Channel.IOTStatus = true
		// An approved key keeps its scoped endpoint across switches.
		if p.Channel.APIKeyRequest.Status != KeyRequestApproved {
			p.Channel.APIEndpoint = ""
		}
	case InputManual:
		p.Channel.APIStatus = false
		p.Channel.IOTStatus = false
	}
	return nil
}

// Disconnect flips the active API or IOT channel offline, preserving
// its credentials for a later reconnect.
func (c *ChannelController) Disconnect(p *Project) error {
	switch p.Channel.InputType {
	case InputAPI:
		p.Channel.APIStatus = false
	case InputIOT:
		p.Channel.IOTStatus = false
	default:
		return Errorf(KindValidation, "channel %q has no connection to disconnect", p.Channel.InputType)
	}
	return nil
}

// Reconnect flips the active channel back online. Credentials must be
// present; for the API channel an updated endpoint may be supplied.
func (c *ChannelController) Reconnect(p *Project, newEndpoint string) error {
	switch p.Channel.InputType {
	case InputAPI:
		if newEndpoint != "" {
			p.Channel.APIEndpoint = newEndpoint
		}
		if p.Channel.APIEndpoint == "" {
			return Errorf(KindValidation, "cannot reconnect API channel without an endpoint")
		}
		p.Channel.APIStatus = true
	case InputIOT:
		if p.Channel.IOTDeviceID == "" {
			return Errorf(KindValidation, "cannot reconnect IOT channel without a device id")
		}
		p.Channel.IOTStatus = true
	default:
		return Errorf(KindValidation, "channel %q has no connection to reconnect", p.Channel.InputType)
	}
	return nil
}

// RequestAPIKey opens a key request. Only one may be in flight; an
// approved key cannot be re-requested without an explicit reset.
func (c *ChannelController) RequestAPIKey(p *Project, requestedBy string) error {
	switch p.Channel.APIKeyRequest.Status {
	case KeyRequestPending:
		return Errorf(KindConflict, "an API key request is already pending")
	case KeyRequestApproved:
		return Errorf(KindConflict, "project already holds an approved API key")
	}
	now := c.clock()
	p.Channel.APIKeyRequest = APIKeyRequest{
		Status:      KeyRequestPending,
		RequestedBy: requestedBy,
		RequestedAt: &now,
	}
	return nil
}

// ResolveAPIKeyRequest settles a pending request. Approval binds the
// project endpoint to the key-scoped URL; the scoped endpoint is then
// pinned against auto-synthesis on later saves.
func (c *ChannelController) ResolveAPIKeyRequest(p *Project, approve bool, scopedURL string) error {
	if p.Channel.APIKeyRequest.Status != KeyRequestPending {
		return Errorf(KindConflict, "no pending API key request to resolve (status %q)",
			p.Channel.APIKeyRequest.Status)
	}
	now := c.clock()
	p.Channel.APIKeyRequest.ResolvedAt = &now
	if !approve {
		p.Channel.APIKeyRequest.Status = KeyRequestRejected
		return nil
	}
	if scopedURL == "" {
		return Errorf(KindValidation, "approving an API key request requires a scoped URL")
	}
	p.Channel.APIKeyRequest.Status = KeyRequestApproved
	p.Channel.APIKeyRequest.ScopedURL = scopedURL
	p.Channel.APIEndpoint = scopedURL
	return nil
}

// ValidateChannel checks an ingestion write against the project's
// active channel. CSV batches ride the manual channel.
func (c *ChannelController) ValidateChannel(p *Project, requested InputType) error {
	effective := requested
	if effective == InputCSV {
		effective = InputManual
	}
	if p.Channel.InputType != effective {
		return Errorf(KindChannelMismatch, "entry arrived on channel %q but project %s accepts %q",
			requested, p.ProjectID, p.Channel.InputType)
	}
	switch effective {
	case InputAPI:
		if !p.Channel.APIStatus {
			return Errorf(KindChannelMismatch, "API channel of project %s is disconnected", p.ProjectID)
		}
	case InputIOT:
		if !p.Channel.IOTStatus {
			return Errorf(KindChannelMismatch, "IOT channel of project %s is disconnected", p.ProjectID)
		}
	}
	return nil
}

// SynthesizeEndpoint writes the canonical ingestion endpoint onto an
// API-channel project at save time. An approved key pins the scoped
// URL and is never overwritten.
func (c *ChannelController) SynthesizeEndpoint(p *Project) {
	if p.Channel.InputType != InputAPI {
		return
	}
	if p.Channel.APIKeyRequest.Status == KeyRequestApproved {
		return
	}
	p.Channel.APIEndpoint = fmt.Sprintf("/api/v1/net-reduction/%s/%s/%s/api",
		p.ClientID, p.ProjectID, p.Methodology)
}
