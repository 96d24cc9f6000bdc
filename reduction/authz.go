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

// Role is the coarse permission class of an actor.
type Role string

const (
	RoleAdmin       Role = "admin"        // platform operator, all clients
	RoleClientAdmin Role = "client-admin" // full control of one client
	RoleViewer      Role = "viewer"       // read-only on one client
)

// Actor is the authenticated principal attached to a request. Token
// parsing happens at the edge; the engine only sees this shape.
type Actor struct {
	ID       string
	Role     Role
	ClientID string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	OK     bool
	Reason string
}

func allow() Decision { return Decision{OK: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// AuthorizationOracle answers whether an actor may act on a client.
// It is a pure predicate: no side effects, no I/O assumptions.
type AuthorizationOracle interface {
	CanRead(actor Actor, clientID string) Decision
	CanWrite(actor Actor, clientID string) Decision
	CanManageChannel(actor Actor, clientID string) Decision
}

// StaticOracle is the default role-table oracle: admins act anywhere,
// client-admins act within their client, viewers read within theirs.
type StaticOracle struct{}

func (StaticOracle) CanRead(actor Actor, clientID string) Decision {
	if actor.ID == "" {
		return deny("no actor")
	}
	if actor.Role == RoleAdmin {
		return allow()
	}
	if actor.ClientID == clientID {
		return allow()
	}
	return deny("actor belongs to a different client")
}

func (StaticOracle) CanWrite(actor Actor, clientID string) Decision {
	if actor.ID == "" {
		return deny("no actor")
	}
	switch actor.Role {
	case RoleAdmin:
		return allow()
	case RoleClientAdmin:
		if actor.ClientID == clientID {
			return allow()
		}
		return deny("actor belongs to a different client")
	}
	return deny("role cannot write")
}

func (StaticOracle) CanManageChannel(actor Actor, clientID string) Decision {
	if actor.ID == "" {
		return deny("no actor")
	}
	if actor.Role == RoleClientAdmin && actor.ClientID == clientID {
		return allow()
	}
	if actor.Role == RoleAdmin {
		return allow()
	}
	return deny("only the client admin may manage channels")
}
