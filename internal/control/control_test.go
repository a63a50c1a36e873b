package control

import (
	"testing"
)

func TestAllDialectsNormalizeToSameMove(t *testing.T) {
	// The same control intent expressed in three generations of clients
	// must produce the identical canonical event.
	frames := map[string]string{
		"current": `{"type":"move","payload":{"direction":"left"}}`,
		"cmd":     `{"type":"cmd","payload":{"cmd":"left"}}`,
		"evt":     `{"type":"evt","payload":{"echo":{"cmd":"left"}}}`,
	}

	want := Event{Kind: KindMove, Detail: "left"}
	for dialect, frame := range frames {
		e, ok := ParseEnvelope([]byte(frame))
		if !ok {
			t.Fatalf("%s: envelope did not parse", dialect)
		}
		ev, ok := Normalize(e)
		if !ok {
			t.Fatalf("%s: did not normalize", dialect)
		}
		if ev != want {
			t.Errorf("%s: got %+v, want %+v", dialect, ev, want)
		}
	}
}

func TestNormalizeTable(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
		ok    bool
	}{
		{
			name:  "move with target",
			frame: `{"type":"move","payload":{"direction":"up","imageId":"img-1"}}`,
			want:  Event{Kind: KindMove, Detail: "up", TargetID: "img-1"},
			ok:    true,
		},
		{
			name:  "action",
			frame: `{"type":"action","payload":{"actionType":"jump","imageId":"img-1"}}`,
			want:  Event{Kind: KindAction, Detail: "jump", TargetID: "img-1"},
			ok:    true,
		},
		{
			name:  "emote with alias",
			frame: `{"type":"emote","payload":{"emoteType":"rock"}}`,
			want:  Event{Kind: KindEmote, Detail: "✊"},
			ok:    true,
		},
		{
			name:  "cmd direction",
			frame: `{"type":"cmd","payload":{"cmd":"down","imageId":"img-2"}}`,
			want:  Event{Kind: KindMove, Detail: "down", TargetID: "img-2"},
			ok:    true,
		},
		{
			name:  "cmd emote prefix",
			frame: `{"type":"cmd","payload":{"cmd":"emote:gu"}}`,
			want:  Event{Kind: KindEmote, Detail: "✊"},
			ok:    true,
		},
		{
			name:  "cmd fallback to action",
			frame: `{"type":"cmd","payload":{"cmd":"spin"}}`,
			want:  Event{Kind: KindAction, Detail: "spin"},
			ok:    true,
		},
		{
			name:  "evt wrapped emote",
			frame: `{"type":"evt","payload":{"echo":{"cmd":"emote:rock","imageId":"img-3"}}}`,
			want:  Event{Kind: KindEmote, Detail: "✊", TargetID: "img-3"},
			ok:    true,
		},
		{
			name:  "move without direction",
			frame: `{"type":"move","payload":{}}`,
			ok:    false,
		},
		{
			name:  "unknown type",
			frame: `{"type":"dance","payload":{"cmd":"left"}}`,
			ok:    false,
		},
		{
			name:  "keepalive is not a control event",
			frame: `{"type":"keepalive","payload":{}}`,
			ok:    false,
		},
		{
			name:  "evt with empty echo",
			frame: `{"type":"evt","payload":{"echo":{}}}`,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ParseEnvelope([]byte(tt.frame))
			if !ok {
				t.Fatal("envelope did not parse")
			}
			ev, ok := Normalize(e)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && ev != tt.want {
				t.Errorf("got %+v, want %+v", ev, tt.want)
			}
		})
	}
}

func TestParseEnvelopeRejectsMalformed(t *testing.T) {
	for _, frame := range []string{
		`not json`,
		`42`,
		`"just a string"`,
		`{}`,
		`{"payload":{"cmd":"left"}}`, // no type
	} {
		if _, ok := ParseEnvelope([]byte(frame)); ok {
			t.Errorf("frame %q should not parse", frame)
		}
	}
}

func TestHandshakeShapes(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		wantToken  string
		wantTarget string
		wantOK     bool
	}{
		{
			name:       "connect with payload fields",
			frame:      `{"type":"connect","payload":{"sessionId":"tok-1","imageId":"img-1"}}`,
			wantToken:  "tok-1",
			wantTarget: "img-1",
			wantOK:     true,
		},
		{
			name:       "connect with session alternate",
			frame:      `{"type":"connect","payload":{"session":"tok-2"}}`,
			wantToken:  "tok-2",
			wantTarget: "",
			wantOK:     true,
		},
		{
			name:       "join with top-level alternates",
			frame:      `{"type":"join","sid":"tok-3","imageId":"img-3"}`,
			wantToken:  "tok-3",
			wantTarget: "img-3",
			wantOK:     true,
		},
		{
			name:   "connect without any token",
			frame:  `{"type":"connect","payload":{"imageId":"img-4"}}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ParseEnvelope([]byte(tt.frame))
			if !ok {
				t.Fatal("envelope did not parse")
			}
			if !e.IsHandshake() {
				t.Fatal("expected a handshake envelope")
			}
			token, target, ok := e.Handshake()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if token != tt.wantToken || target != tt.wantTarget {
				t.Errorf("got (%q, %q), want (%q, %q)", token, target, tt.wantToken, tt.wantTarget)
			}
		})
	}
}
