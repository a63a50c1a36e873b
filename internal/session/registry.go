// Package session implements the pairing session registry.
//
// A session is one pairing attempt: the desktop asks for a session bound to
// an on-screen object, the registry hands back an unguessable token embedded
// in a pairing URL, and the phone redeems the token over the WebSocket
// handshake. Sessions live in memory only; they are a pairing convenience,
// not a security boundary, and do not survive a process restart.
package session

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long a session is kept before the registry sweeps
// it. There is deliberately no shorter per-session expiry: the QR stays
// scannable and re-scannable for the whole window (fixed QR behavior).
const DefaultRetention = 24 * time.Hour

// Session represents one pairing attempt.
type Session struct {
	// Token is the opaque unguessable identifier embedded in the QR URL.
	Token string

	// TargetID identifies the on-screen object being controlled.
	// Immutable after creation.
	TargetID string

	// CreatedAt is when the session was created. Immutable.
	CreatedAt time.Time

	// Connected becomes true on first successful validation and stays true.
	Connected bool
}

// Config holds configuration for the registry.
type Config struct {
	// Port is the bound HTTP front door port, embedded in pairing URLs.
	// Required.
	Port int

	// Retention is how long sessions are kept before sweeping.
	// Default: DefaultRetention (24 hours).
	Retention time.Duration

	// HostPicker returns the host to embed in pairing URLs.
	// Default: PreferredHost.
	HostPicker func() string

	// TimeNow returns the current time. Useful for testing.
	// Default: time.Now.
	TimeNow func() time.Time
}

// Registry issues and validates pairing session tokens.
// All state lives behind a single mutex; no method performs I/O while
// holding it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	config   Config
}

// NewRegistry creates a registry with the given config.
func NewRegistry(config Config) *Registry {
	if config.Retention == 0 {
		config.Retention = DefaultRetention
	}
	if config.HostPicker == nil {
		config.HostPicker = PreferredHost
	}
	if config.TimeNow == nil {
		config.TimeNow = time.Now
	}
	return &Registry{
		sessions: make(map[string]*Session),
		config:   config,
	}
}

// CreateSession generates a fresh random token bound to targetID and returns
// the token together with the pairing URL to encode into a QR code.
func (r *Registry) CreateSession(targetID string) (token, pairingURL string) {
	token = uuid.New().String()

	r.mu.Lock()
	r.sessions[token] = &Session{
		Token:     token,
		TargetID:  targetID,
		CreatedAt: r.config.TimeNow(),
	}
	r.mu.Unlock()

	host := r.config.HostPicker()
	pairingURL = fmt.Sprintf("http://%s:%d/app?session=%s&image=%s",
		host, r.config.Port, url.QueryEscape(token), url.QueryEscape(targetID))

	log.Printf("session: created session for target %s, url %s", targetID, pairingURL)
	return token, pairingURL
}

// ValidateSession checks a token and, if known, marks the session connected
// and returns its target id. Validation is idempotent and unlimited: the
// phone may reconnect with the same token any number of times within the
// retention window.
//
// Each call also sweeps sessions older than the retention window. This is
// amortized cleanup, not a precise TTL.
func (r *Registry) ValidateSession(token string) (targetID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	s, ok := r.sessions[token]
	if !ok {
		return "", false
	}
	s.Connected = true
	return s.TargetID, true
}

// Lookup returns the target id for a token without marking the session
// connected. The gateway uses it to check the supplied target id before
// committing the handshake; a mismatch must leave the session untouched.
func (r *Registry) Lookup(token string) (targetID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	s, ok := r.sessions[token]
	if !ok {
		return "", false
	}
	return s.TargetID, true
}

// Status returns the connected flag for a token, plus a constant large
// "remaining" duration. The countdown display was retired from the product;
// the value is kept for UI compatibility and carries no expiry semantics.
func (r *Registry) Status(token string) (connected bool, remaining time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return false, 0, false
	}
	return s.Connected, DefaultRetention, true
}

// Sweep removes sessions older than the retention window and returns how
// many were removed. ValidateSession sweeps implicitly; this is exposed for
// callers that want explicit housekeeping.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweepLocked removes expired sessions. Must be called with r.mu held.
func (r *Registry) sweepLocked() int {
	now := r.config.TimeNow()
	removed := 0
	for token, s := range r.sessions {
		if now.Sub(s.CreatedAt) >= r.config.Retention {
			delete(r.sessions, token)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("session: swept %d expired sessions", removed)
	}
	return removed
}
