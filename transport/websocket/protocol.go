package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wricardo/matchbroker/lobby/broker"
	"github.com/wricardo/matchbroker/validate"
)

const (
	eventConnected = "connected"
	eventReply     = "reply"
	eventError     = "error"
)

// Request is an inbound client message.
type Request struct {
	ID      string          `json:"id"`
	Action  broker.Action   `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope is every outbound message. Replies and errors echo the request
// ID; broadcasts leave it empty and carry a broker.Event as Data.
type Envelope struct {
	ID    string      `json:"id,omitempty"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Connected is the data of the first message sent on a new connection.
type Connected struct {
	ConnectionID string `json:"connectionId"`
}

// decodePayload accepts either an object or, for single-argument actions,
// a bare JSON string.
func decodePayload(action broker.Action, raw json.RawMessage) (broker.Payload, error) {
	var p broker.Payload
	if !action.Valid() {
		return p, fmt.Errorf("%w: %q", broker.ErrUnknownAction, action)
	}

	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return p, fmt.Errorf("invalid payload: %w", err)
		}
		if action.BareField() == "PlayerName" {
			p.PlayerName = s
		} else {
			p.GameID = s
		}
	default:
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("invalid payload: %w", err)
		}
	}

	if err := validate.Partial(p, action.RequiredFields()...); err != nil {
		return p, err
	}
	return p, nil
}

func encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

func eventEnvelope(ev broker.Event) Envelope {
	return Envelope{Event: string(ev.Type), Data: ev}
}
