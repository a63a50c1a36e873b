package server

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/nuriemon/companion/internal/errors"
	"github.com/nuriemon/companion/internal/events"
	"github.com/nuriemon/companion/internal/session"
	"github.com/nuriemon/companion/internal/storage"
)

// Port range the front door scans for a free listener.
const (
	DefaultPortRangeStart = 8080
	DefaultPortRangeEnd   = 8090
)

// Losers of the single-flight start race poll the cached port this many
// times before giving up with a transient error.
const (
	startPollAttempts = 30
	startPollInterval = 100 * time.Millisecond
)

// RuntimeConfig configures the process-wide server runtime.
type RuntimeConfig struct {
	// PortRangeStart and PortRangeEnd bound the listener port scan,
	// inclusive. Defaults: 8080 and 8090.
	PortRangeStart int
	PortRangeEnd   int

	// Bus receives gateway events. Required.
	Bus *events.Bus

	// Store backs GET /image/{id}. Optional.
	Store *storage.Store

	// HeartbeatInterval is passed through to the Server. Tests shorten it.
	HeartbeatInterval time.Duration

	// Retention, HostPicker and TimeNow are passed through to the session
	// registry; see session.Config.
	Retention  time.Duration
	HostPicker func() string
	TimeNow    func() time.Time
}

// Runtime is the server lifecycle guard. It ensures the listener is started
// at most once per process, no matter how many callers race Start, and owns
// the session registry handle for the lifetime of the listener.
//
// Invariant: Registry() is non-nil iff Port() is non-zero. Both are set
// together under the mutex by the single start winner and never reset; no
// explicit shutdown exists in the product flow, Stop is for tests and
// process teardown.
type Runtime struct {
	cfg RuntimeConfig

	mu       sync.Mutex
	starting bool
	port     int
	registry *session.Registry
	server   *Server
}

// NewRuntime creates an idle runtime. Nothing listens until Start.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.PortRangeStart == 0 {
		cfg.PortRangeStart = DefaultPortRangeStart
	}
	if cfg.PortRangeEnd == 0 {
		cfg.PortRangeEnd = DefaultPortRangeEnd
	}
	return &Runtime{cfg: cfg}
}

// Port returns the bound listener port, or 0 before the first successful
// Start.
func (rt *Runtime) Port() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.port
}

// Registry returns the session registry, or nil before the first successful
// Start.
func (rt *Runtime) Registry() *session.Registry {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.registry
}

// beginStarting atomically flips the starting flag and reports whether this
// caller won the race. Losers must poll the cached port.
func (rt *Runtime) beginStarting() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.starting {
		return false
	}
	rt.starting = true
	return true
}

// finishStarting resets the flag. Called on both success and failure paths
// so a failed start never wedges future attempts.
func (rt *Runtime) finishStarting() {
	rt.mu.Lock()
	rt.starting = false
	rt.mu.Unlock()
}

// Start ensures the server is running and returns its port.
//
// Idempotent: once started, every call returns the cached port immediately.
// Concurrent first calls are collapsed into exactly one bind attempt; losers
// poll briefly for the winner's port and fail with a transient "starting"
// error if it does not appear in time.
func (rt *Runtime) Start() (int, error) {
	rt.mu.Lock()
	if rt.port != 0 {
		port := rt.port
		rt.mu.Unlock()
		return port, nil
	}
	rt.mu.Unlock()

	if !rt.beginStarting() {
		return rt.awaitWinner()
	}
	defer rt.finishStarting()

	// Re-check under the flag: we may have raced a winner that finished
	// between the port check and beginStarting.
	rt.mu.Lock()
	if rt.port != 0 {
		port := rt.port
		rt.mu.Unlock()
		return port, nil
	}
	rt.mu.Unlock()

	ln, port, err := rt.bindFirstFree()
	if err != nil {
		return 0, err
	}

	registry := session.NewRegistry(session.Config{
		Port:       port,
		Retention:  rt.cfg.Retention,
		HostPicker: rt.cfg.HostPicker,
		TimeNow:    rt.cfg.TimeNow,
	})
	srv := New(Config{
		Registry:          registry,
		Bus:               rt.cfg.Bus,
		Store:             rt.cfg.Store,
		HeartbeatInterval: rt.cfg.HeartbeatInterval,
		TimeNow:           rt.cfg.TimeNow,
	})

	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Printf("server: serve error: %v", err)
		}
	}()

	rt.mu.Lock()
	rt.port = port
	rt.registry = registry
	rt.server = srv
	rt.mu.Unlock()

	return port, nil
}

// Stop shuts the server down. The port and registry stay cached so callers
// holding pairing URLs keep consistent state; restart within one process is
// not part of the product flow.
func (rt *Runtime) Stop() error {
	rt.mu.Lock()
	srv := rt.server
	rt.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Stop()
}

// Server returns the running server, or nil before the first successful
// Start. Exposed for tests.
func (rt *Runtime) Server() *Server {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.server
}

// bindFirstFree scans the configured port range and returns the first
// listener it can bind. Exhaustion is an explicit error, not a panic.
func (rt *Runtime) bindFirstFree() (net.Listener, int, error) {
	var lastErr error
	for port := rt.cfg.PortRangeStart; port <= rt.cfg.PortRangeEnd; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			lastErr = err
			continue
		}
		log.Printf("server: bound port %d", port)
		return ln, port, nil
	}
	return nil, 0, errors.NoAvailablePort(rt.cfg.PortRangeStart, rt.cfg.PortRangeEnd, lastErr)
}

// awaitWinner polls the cached port on behalf of a caller that lost the
// single-flight race.
func (rt *Runtime) awaitWinner() (int, error) {
	for i := 0; i < startPollAttempts; i++ {
		time.Sleep(startPollInterval)
		rt.mu.Lock()
		port := rt.port
		rt.mu.Unlock()
		if port != 0 {
			return port, nil
		}
	}
	return 0, errors.ServerStarting()
}
