package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeDecodeAssigned(t *testing.T) {
	payload, err := EncodeEvent(CallAssignedEvent{RideID: "42", AssignedTo: "d1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := ev.(CallAssignedEvent)
	if !ok {
		t.Fatalf("wrong variant %T", ev)
	}
	if got.RideID != "42" || got.AssignedTo != "d1" {
		t.Fatalf("unexpected event %#v", got)
	}
}

func TestDecodeReleasedCarriesSnapshot(t *testing.T) {
	call := Call{
		ID:    "42",
		State: CallOpen,
		Attributes: CallAttributes{
			PickupAddress: "12 Main St",
			PriceCents:    1850,
			ScheduledAt:   time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
		},
	}
	payload, err := EncodeEvent(CallReleasedEvent{Call: call})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := ev.(CallReleasedEvent)
	if got.Call.ID != "42" || got.Call.Attributes.PriceCents != 1850 {
		t.Fatalf("snapshot not carried: %#v", got.Call)
	}
	if !got.Call.Attributes.ScheduledAt.Equal(call.Attributes.ScheduledAt) {
		t.Fatalf("schedule mismatch")
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	raw, _ := json.Marshal(Envelope{Type: "ride_started", Data: []byte(`{}`)})
	if _, err := DecodeEvent(raw); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	if _, err := DecodeEvent([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestParseOutcome(t *testing.T) {
	for _, o := range []Outcome{OutcomeWon, OutcomeAlreadyTaken, OutcomeNotFound} {
		got, ok := ParseOutcome(o.String())
		if !ok || got != o {
			t.Fatalf("round trip failed for %v", o)
		}
	}
	if _, ok := ParseOutcome("maybe"); ok {
		t.Fatal("expected unknown outcome to fail")
	}
}
