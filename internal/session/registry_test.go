package session

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

// testRegistry returns a registry with a fixed host, port 8080 and a
// controllable clock.
func testRegistry(t *testing.T, retention time.Duration) (*Registry, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(Config{
		Port:       8080,
		Retention:  retention,
		HostPicker: func() string { return "192.168.1.10" },
		TimeNow:    func() time.Time { return now },
	})
	return r, &now
}

func TestCreateThenValidateReturnsTarget(t *testing.T) {
	r, _ := testRegistry(t, 0)

	token, _ := r.CreateSession("img-42")

	target, ok := r.ValidateSession(token)
	if !ok {
		t.Fatal("freshly created session should validate")
	}
	if target != "img-42" {
		t.Errorf("target = %q, want %q", target, "img-42")
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	// A session never "uses itself up": the fixed QR may be re-scanned and
	// the phone may reconnect many times.
	r, _ := testRegistry(t, 0)
	token, _ := r.CreateSession("img-1")

	for i := 0; i < 5; i++ {
		target, ok := r.ValidateSession(token)
		if !ok || target != "img-1" {
			t.Fatalf("validation %d failed: ok=%v target=%q", i, ok, target)
		}
	}
}

func TestLookupDoesNotMarkConnected(t *testing.T) {
	// The gateway peeks at the target before committing a handshake;
	// a peek must not flip the sticky connected flag.
	r, _ := testRegistry(t, 0)
	token, _ := r.CreateSession("img-1")

	target, ok := r.Lookup(token)
	if !ok || target != "img-1" {
		t.Fatalf("Lookup = (%q, %v), want (img-1, true)", target, ok)
	}

	connected, _, ok := r.Status(token)
	if !ok {
		t.Fatal("session missing after Lookup")
	}
	if connected {
		t.Error("Lookup marked the session connected")
	}

	if _, ok := r.Lookup("no-such-token"); ok {
		t.Error("unknown token should not look up")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	r, _ := testRegistry(t, 0)
	if _, ok := r.ValidateSession("no-such-token"); ok {
		t.Error("unknown token should not validate")
	}
}

func TestTokensAreUnique(t *testing.T) {
	r, _ := testRegistry(t, 0)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _ := r.CreateSession("img")
		if seen[token] {
			t.Fatalf("duplicate token %s", token)
		}
		seen[token] = true
	}
}

func TestPairingURLFormat(t *testing.T) {
	r, _ := testRegistry(t, 0)
	token, pairingURL := r.CreateSession("img 7") // space forces escaping

	u, err := url.Parse(pairingURL)
	if err != nil {
		t.Fatalf("pairing URL does not parse: %v", err)
	}
	if u.Scheme != "http" {
		t.Errorf("scheme = %q", u.Scheme)
	}
	if u.Host != "192.168.1.10:8080" {
		t.Errorf("host = %q", u.Host)
	}
	if u.Path != "/app" {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("session") != token {
		t.Errorf("session param = %q, want %q", q.Get("session"), token)
	}
	if q.Get("image") != "img 7" {
		t.Errorf("image param = %q", q.Get("image"))
	}
}

func TestRetentionSweep(t *testing.T) {
	r, now := testRegistry(t, time.Hour)

	oldToken, _ := r.CreateSession("img-old")

	// Advance the clock past the retention window, then create a fresh
	// session. Validation sweeps, so the old token must be gone while the
	// fresh one still works.
	*now = now.Add(time.Hour + time.Minute)
	freshToken, _ := r.CreateSession("img-new")

	if _, ok := r.ValidateSession(oldToken); ok {
		t.Error("session past retention should have been swept")
	}
	if _, ok := r.ValidateSession(freshToken); !ok {
		t.Error("fresh session should survive the sweep")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestValidationNeverFailsWithinWindow(t *testing.T) {
	r, now := testRegistry(t, 24*time.Hour)
	token, _ := r.CreateSession("img-1")

	// 23 hours later the session is still valid; there is no shorter TTL.
	*now = now.Add(23 * time.Hour)
	if _, ok := r.ValidateSession(token); !ok {
		t.Error("session within the 24h window should validate")
	}
}

func TestStatus(t *testing.T) {
	r, _ := testRegistry(t, 0)
	token, _ := r.CreateSession("img-1")

	connected, remaining, ok := r.Status(token)
	if !ok {
		t.Fatal("status for known token")
	}
	if connected {
		t.Error("connected should be false before validation")
	}
	if remaining != DefaultRetention {
		t.Errorf("remaining = %v, want constant %v", remaining, DefaultRetention)
	}

	r.ValidateSession(token)

	connected, _, _ = r.Status(token)
	if !connected {
		t.Error("connected should be sticky true after validation")
	}

	if _, _, ok := r.Status("unknown"); ok {
		t.Error("status for unknown token should report not found")
	}
}

func TestConcurrentCreateAndValidate(t *testing.T) {
	r := NewRegistry(Config{
		Port:       8080,
		HostPicker: func() string { return "localhost" },
	})

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				token, _ := r.CreateSession("img")
				if _, ok := r.ValidateSession(token); !ok {
					t.Error("own token should validate")
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestScoreInterfaceName(t *testing.T) {
	tests := []struct {
		name      string
		wantScore int
		wantOK    bool
	}{
		{"eth0", scoreWired, true},
		{"en0", scoreDarwin, true},
		{"wlan0", scoreWifi, true},
		{"wlp3s0", scoreWifi, true},
		{"tailscale0", scoreGeneric, true},
		{"awdl0", 0, false},
		{"llw0", 0, false},
		{"utun3", 0, false},
		{"bridge100", 0, false},
		{"vmbridge", 0, false},
	}
	for _, tt := range tests {
		score, ok := scoreInterfaceName(tt.name)
		if ok != tt.wantOK || (ok && score != tt.wantScore) {
			t.Errorf("scoreInterfaceName(%q) = (%d, %v), want (%d, %v)",
				tt.name, score, ok, tt.wantScore, tt.wantOK)
		}
	}
}

func TestRoutableIPv4(t *testing.T) {
	if routableIPv4([]byte{127, 0, 0, 1}) {
		t.Error("loopback should not be routable")
	}
	if routableIPv4([]byte{169, 254, 1, 1}) {
		t.Error("link-local should not be routable")
	}
	if !routableIPv4([]byte{192, 168, 1, 5}) {
		t.Error("private LAN address should be routable")
	}
}

func TestPreferredHostNeverEmpty(t *testing.T) {
	// Whatever the machine looks like, there is always a final fallback.
	host := PreferredHost()
	if strings.TrimSpace(host) == "" {
		t.Error("PreferredHost returned empty string")
	}
}
