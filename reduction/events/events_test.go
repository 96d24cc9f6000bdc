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

package events

import (
	"encoding/json"
	"testing"
	"time"
)

func testEvent(payload map[string]any) Event {
	return Event{
		Type:      TypeManualSaved,
		Timestamp: time.Date(2025, time.August, 20, 12, 0, 0, 0, time.UTC),
		ClientID:  "GX01",
		Payload:   payload,
	}
}

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPublishFansOutToBothClientRooms(t *testing.T) {
	bus := NewInProcessBus(4)
	modern := bus.Subscribe("client_GX01")
	legacy := bus.Subscribe("client-GX01")
	other := bus.Subscribe("client_GX02")
	defer modern.Close()
	defer legacy.Close()
	defer other.Close()

	bus.Publish(ClientRooms("GX01"), testEvent(nil))

	if got := drain(modern); len(got) != 1 {
		t.Errorf("underscore room received %d events, want 1", len(got))
	}
	if got := drain(legacy); len(got) != 1 {
		t.Errorf("dashed room received %d events, want 1", len(got))
	}
	if got := drain(other); len(got) != 0 {
		t.Errorf("unrelated room received %d events, want 0", len(got))
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	bus := NewInProcessBus(8)
	sub := bus.Subscribe("summaries-GX01")
	defer sub.Close()

	for i := 0; i < 3; i++ {
		ev := testEvent(map[string]any{"seq": i})
		bus.Publish([]string{SummaryRoom("GX01")}, ev)
	}

	got := drain(sub)
	if len(got) != 3 {
		t.Fatalf("received %d events, want 3", len(got))
	}
	for i, ev := range got {
		if ev.Payload["seq"] != i {
			t.Errorf("event %d carried seq %v", i, ev.Payload["seq"])
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewInProcessBus(2)
	sub := bus.Subscribe("client_GX01")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		bus.Publish([]string{"client_GX01"}, testEvent(nil))
	}

	if got := drain(sub); len(got) != 2 {
		t.Errorf("received %d events, want the 2 that fit the buffer", len(got))
	}
	if bus.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", bus.Dropped())
	}
}

func TestCloseDetachesSubscriber(t *testing.T) {
	bus := NewInProcessBus(4)
	sub := bus.Subscribe("client_GX01")
	sub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("channel still open after Close")
	}
	// Publishing after detach must not panic or count drops.
	bus.Publish([]string{"client_GX01"}, testEvent(nil))
	if bus.Dropped() != 0 {
		t.Errorf("Dropped() = %d after detach, want 0", bus.Dropped())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewInProcessBus(4)
	sub := bus.Subscribe("client_GX01")
	sub.Close()
	sub.Close()
}

func TestMarshalFlattensPayload(t *testing.T) {
	ev := testEvent(map[string]any{"entryId": "e1", "netReduction": 5.0})
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["eventType"] != string(TypeManualSaved) {
		t.Errorf("eventType = %v", out["eventType"])
	}
	if out["clientId"] != "GX01" {
		t.Errorf("clientId = %v", out["clientId"])
	}
	if out["entryId"] != "e1" || out["netReduction"] != 5.0 {
		t.Errorf("payload fields not flattened: %v", out)
	}
	if out["timestamp"] != "2025-08-20T12:00:00Z" {
		t.Errorf("timestamp = %v", out["timestamp"])
	}
	if _, nested := out["Payload"]; nested {
		t.Error("Payload marshalled as a nested object")
	}
}

func TestDiscardBus(t *testing.T) {
	var bus Bus = Discard{}
	bus.Publish(ClientRooms("GX01"), testEvent(nil))
}
