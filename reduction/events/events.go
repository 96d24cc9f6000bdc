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

// Package events carries the typed mutation events the engine emits to
// live subscribers. Delivery is best-effort, at-most-once per
// subscriber and non-durable: a slow subscriber loses events rather
// than blocking the write path.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Type names are part of the wire contract with dashboard clients.
type Type string

const (
	TypeManualSaved    Type = "net-reduction:manual-saved"
	TypeAPISaved       Type = "net-reduction:api-saved"
	TypeIOTSaved       Type = "net-reduction:iot-saved"
	TypeM3ManualSaved  Type = "net-reduction:m3-manual-saved"
	TypeManualUpdated  Type = "net-reduction:manual-updated"
	TypeManualDeleted  Type = "net-reduction:manual-deleted"
	TypeCSVProcessed   Type = "net-reduction:csv-processed"
	TypeSummaryUpdated Type = "net-reduction-summary-updated"
	// TypeLegacySummaryUpdated covers the legacy per-client rollup doc.
	TypeLegacySummaryUpdated Type = "net-reduction:summary-updated"
)

// Event is one typed notification. Payload fields are flattened next
// to the envelope fields when marshalled.
type Event struct {
	Type      Type
	Timestamp time.Time
	ClientID  string
	Payload   map[string]any
}

// MarshalJSON flattens Payload into the envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+3)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["eventType"] = string(e.Type)
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	out["clientId"] = e.ClientID
	return json.Marshal(out)
}

// ClientRooms returns the rooms an entry event fans out to. The dashed
// form predates the underscore form and is still subscribed to by old
// dashboard builds.
func ClientRooms(clientID string) []string {
	return []string{
		fmt.Sprintf("client_%s", clientID),
		fmt.Sprintf("client-%s", clientID),
	}
}

// SummaryRoom returns the room summary events fan out to.
func SummaryRoom(clientID string) string {
	return fmt.Sprintf("summaries-%s", clientID)
}

// Bus is the publish-only interface the engine depends on. The HTTP
// edge wires the concrete transport.
type Bus interface {
	Publish(rooms []string, ev Event)
}

// Discard is a Bus that drops everything; useful in tests and batch
// tools.
type Discard struct{}

func (Discard) Publish([]string, Event) {}

// subscriber is one attached consumer channel.
type subscriber struct {
	ch chan Event
}

// InProcessBus fans events out to subscriber channels per room.
type InProcessBus struct {
	mu      sync.RWMutex
	rooms   map[string]map[int64]*subscriber
	nextID  int64
	buffer  int
	dropped atomic.Int64
}

// NewInProcessBus builds a bus whose subscriber channels hold buffer
// events before new ones are dropped for that subscriber.
func NewInProcessBus(buffer int) *InProcessBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &InProcessBus{
		rooms:  make(map[string]map[int64]*subscriber),
		buffer: buffer,
	}
}

// Subscription is a live attachment to one room.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Close detaches the subscription and releases its channel.
func (s *Subscription) Close() { s.cancel() }

// Subscribe attaches a consumer to room. Events published after the
// call are delivered in emission order until Close.
func (b *InProcessBus) Subscribe(room string) *Subscription {
	sub := &subscriber{ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.rooms[room] == nil {
		b.rooms[room] = make(map[int64]*subscriber)
	}
	b.rooms[room][id] = sub
	b.mu.Unlock()

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			b.mu.Lock()
			if subs, ok := b.rooms[room]; ok {
				if s, ok := subs[id]; ok {
					delete(subs, id)
					close(s.ch)
				}
				if len(subs) == 0 {
					delete(b.rooms, room)
				}
			}
			b.mu.Unlock()
		},
	}
}

// Publish fans ev out to every subscriber of every room. Full
// subscriber buffers drop the event for that subscriber only.
func (b *InProcessBus) Publish(rooms []string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, room := range rooms {
		for _, sub := range b.rooms[room] {
			select {
			case sub.ch <- ev:
			default:
				b.dropped.Add(1)
			}
		}
	}
}

// Dropped reports how many events were discarded due to slow
// subscribers since the bus was created.
func (b *InProcessBus) Dropped() int64 { return b.dropped.Load() }
