package model

import (
	"encoding/json"
	"fmt"
)

// Event kinds carried on the broadcast topic.
const (
	KindCallAssigned = "call_assigned"
	KindCallReleased = "call_released"
	KindCallCanceled = "call_canceled"
	KindCallCreated  = "call_created"
)

// CallEvent is a closed set of broadcast events. Adding a kind means adding a
// variant here and a case to DecodeEvent, so handlers stay exhaustive.
type CallEvent interface {
	Kind() string
}

// CallAssignedEvent announces that a call left the open pool.
type CallAssignedEvent struct {
	RideID     string `json:"ride_id"`
	AssignedTo string `json:"assigned_to"`
}

func (CallAssignedEvent) Kind() string { return KindCallAssigned }

// CallReleasedEvent announces that a call re-entered the open pool. The
// snapshot is a brand-new open instance; any history attached to the previous
// instance with the same id does not carry over.
type CallReleasedEvent struct {
	Call Call `json:"call"`
}

func (CallReleasedEvent) Kind() string { return KindCallReleased }

// CallCanceledEvent announces that a call was withdrawn entirely.
type CallCanceledEvent struct {
	RideID string `json:"ride_id"`
}

func (CallCanceledEvent) Kind() string { return KindCallCanceled }

// CallCreatedEvent announces a freshly created call. The snapshot may already
// be assigned when the order entry pre-assigns a driver.
type CallCreatedEvent struct {
	Call Call `json:"call"`
}

func (CallCreatedEvent) Kind() string { return KindCallCreated }

// Envelope is the wire frame for broadcast events.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeEvent wraps the event in an envelope and marshals it.
func EncodeEvent(ev CallEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: ev.Kind(), Data: data})
}

// DecodeEvent unmarshals an envelope into its concrete variant. Unknown kinds
// are an error so a protocol mismatch surfaces instead of being dropped
// silently.
func DecodeEvent(payload []byte) (CallEvent, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case KindCallAssigned:
		var ev CallAssignedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case KindCallReleased:
		var ev CallReleasedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case KindCallCanceled:
		var ev CallCanceledEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case KindCallCreated:
		var ev CallCreatedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
