// Package control models the inbound WebSocket message protocol and its
// normalization into canonical control events.
//
// The protocol accumulated several dialects across client generations:
//
//   - The current dialect uses explicit types: {"type":"move","payload":
//     {"direction":"left"}}, and likewise "action" (actionType) and "emote"
//     (emoteType).
//   - An older dialect collapses everything into a single "cmd" string:
//     direction words become moves, "emote:<name>" becomes an emote, and
//     anything else is an action.
//   - The oldest dialect wraps that same cmd convention one level deeper in
//     an "evt" envelope with an "echo" object.
//
// All dialects normalize to the same Event shape so the desktop layer only
// ever sees one. The alias tables (emote synonyms, cmd parsing) are pure
// lookup functions, independently testable.
package control

import (
	"encoding/json"
	"strings"
)

// Message type values recognized on the wire. Anything else is ignored.
const (
	TypeConnect   = "connect"
	TypeJoin      = "join"
	TypeCmd       = "cmd"
	TypeEvt       = "evt"
	TypeMove      = "move"
	TypeAction    = "action"
	TypeEmote     = "emote"
	TypeKeepalive = "keepalive"
)

// Kind classifies a normalized control event.
type Kind string

const (
	KindMove   Kind = "move"
	KindAction Kind = "action"
	KindEmote  Kind = "emote"
)

// Event is the canonical control event every dialect normalizes to.
type Event struct {
	// Kind is move, action or emote.
	Kind Kind

	// Detail carries the direction, the action type, or the canonical
	// emote glyph, depending on Kind.
	Detail string

	// TargetID is the controlled object's id, when the client supplied one.
	TargetID string
}

// Envelope is the top-level wire shape. Payload stays raw until the type is
// known; sid and imageId exist only in the "join" dialect, which put its
// fields at the top level instead of inside payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SID     string          `json:"sid,omitempty"`
	ImageID string          `json:"imageId,omitempty"`
}

// Payload variants, one per dialect. Unknown fields are ignored by
// encoding/json, which is what keeps old and new clients decodable with
// the same structs.

type movePayload struct {
	Direction string `json:"direction"`
	ImageID   string `json:"imageId"`
}

type actionPayload struct {
	ActionType string `json:"actionType"`
	ImageID    string `json:"imageId"`
}

type emotePayload struct {
	EmoteType string `json:"emoteType"`
	ImageID   string `json:"imageId"`
}

type cmdPayload struct {
	Cmd     string `json:"cmd"`
	ImageID string `json:"imageId"`
}

type evtPayload struct {
	Echo cmdPayload `json:"echo"`
}

type handshakePayload struct {
	SessionID string `json:"sessionId"`
	Session   string `json:"session"`
	ImageID   string `json:"imageId"`
}

// ParseEnvelope decodes one wire frame. A frame that is not a JSON object
// with a string type field is malformed; per-message tolerance (drop, don't
// disconnect) is the caller's policy.
func ParseEnvelope(data []byte) (*Envelope, bool) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	if e.Type == "" {
		return nil, false
	}
	return &e, true
}

// IsHandshake reports whether the envelope is a connect/join handshake.
func (e *Envelope) IsHandshake() bool {
	return e.Type == TypeConnect || e.Type == TypeJoin
}

// Handshake extracts the session token and optional target id from either
// handshake shape: "connect" carries them in the payload, "join" puts
// alternates at the top level. Returns ok=false when no token is present.
func (e *Envelope) Handshake() (token, targetID string, ok bool) {
	var p handshakePayload
	if len(e.Payload) > 0 {
		// Malformed payloads are treated as absent fields.
		_ = json.Unmarshal(e.Payload, &p)
	}

	token = p.SessionID
	if token == "" {
		token = p.Session
	}
	if token == "" {
		token = e.SID
	}
	if token == "" {
		return "", "", false
	}

	targetID = p.ImageID
	if targetID == "" {
		targetID = e.ImageID
	}
	return token, targetID, true
}

// Normalize maps a control envelope of any dialect to the canonical Event.
// Returns ok=false for envelopes that carry no recognizable control intent
// (handshakes, keepalives, unknown types, empty payload fields).
func Normalize(e *Envelope) (Event, bool) {
	switch e.Type {
	case TypeMove:
		var p movePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.Direction == "" {
			return Event{}, false
		}
		return Event{Kind: KindMove, Detail: p.Direction, TargetID: p.ImageID}, true

	case TypeAction:
		var p actionPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.ActionType == "" {
			return Event{}, false
		}
		return Event{Kind: KindAction, Detail: p.ActionType, TargetID: p.ImageID}, true

	case TypeEmote:
		var p emotePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.EmoteType == "" {
			return Event{}, false
		}
		return Event{Kind: KindEmote, Detail: CanonicalEmote(p.EmoteType), TargetID: p.ImageID}, true

	case TypeCmd:
		var p cmdPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.Cmd == "" {
			return Event{}, false
		}
		ev := parseCmd(p.Cmd)
		ev.TargetID = p.ImageID
		return ev, true

	case TypeEvt:
		var p evtPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.Echo.Cmd == "" {
			return Event{}, false
		}
		ev := parseCmd(p.Echo.Cmd)
		ev.TargetID = p.Echo.ImageID
		return ev, true

	default:
		return Event{}, false
	}
}

// parseCmd interprets the legacy single-string command convention:
// direction words are moves, "emote:<name>" is an emote, anything else is
// the action whose type is the string itself.
func parseCmd(cmd string) Event {
	switch cmd {
	case "left", "right", "up", "down":
		return Event{Kind: KindMove, Detail: cmd}
	}
	if name, ok := strings.CutPrefix(cmd, "emote:"); ok {
		return Event{Kind: KindEmote, Detail: CanonicalEmote(name)}
	}
	return Event{Kind: KindAction, Detail: cmd}
}
