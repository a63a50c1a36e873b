// Package server hosts the HTTP front door and the WebSocket transport
// gateway the phone talks to, plus the lifecycle guard (Runtime) that makes
// sure the listener is started at most once per process.
package server

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nuriemon/companion/internal/events"
	"github.com/nuriemon/companion/internal/session"
	"github.com/nuriemon/companion/internal/storage"
)

// DefaultHeartbeatInterval is how often the gateway pings each connection.
// A connection silent for more than twice this interval is closed.
const DefaultHeartbeatInterval = 5 * time.Second

// Control messages are cheap to process; the limiter only guards against a
// runaway client flooding the event bus.
const (
	controlMessagesPerSecond = 60
	controlMessageBurst      = 30
)

// Config holds the collaborators a Server needs.
type Config struct {
	// Registry validates handshake tokens. Required.
	Registry *session.Registry

	// Bus receives mobile-connected and mobile-control events. Required.
	Bus *events.Bus

	// Store resolves GET /image/{id}. Optional; without it the image route
	// answers 404.
	Store *storage.Store

	// HeartbeatInterval overrides DefaultHeartbeatInterval. Tests shorten it.
	HeartbeatInterval time.Duration

	// TimeNow returns the current time. Default: time.Now.
	TimeNow func() time.Time
}

// Server is the HTTP front door plus the WebSocket transport gateway.
type Server struct {
	registry  *session.Registry
	bus       *events.Bus
	store     *storage.Store
	heartbeat time.Duration
	timeNow   func() time.Time

	// upgrader converts HTTP connections to WebSocket connections.
	upgrader websocket.Upgrader

	mu         sync.Mutex
	clients    map[*client]bool
	stopped    bool
	httpServer *http.Server
}

// New creates a Server. It does not start listening; see Serve.
func New(cfg Config) *Server {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.TimeNow == nil {
		cfg.TimeNow = time.Now
	}
	return &Server{
		registry:  cfg.Registry,
		bus:       cfg.Bus,
		store:     cfg.Store,
		heartbeat: cfg.HeartbeatInterval,
		timeNow:   cfg.TimeNow,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The phone loads the controller page from this same server,
			// but the QR URL host may differ from the Origin header host
			// (LAN IP vs localhost), so the default same-origin check
			// would reject legitimate clients.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// Serve accepts connections on ln until Stop is called. It blocks; run it in
// a goroutine. Returns nil on graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{Handler: s.createMux()}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("server: listening on %s", ln.Addr())
	err := srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes all client connections and shuts the HTTP server down.
// Safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true

	// Signal every client's writePump to send a close frame and exit.
	// We never write to the socket here, to avoid racing with the pumps.
	for c := range s.clients {
		c.closeSend()
	}
	s.clients = make(map[*client]bool)

	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		return srv.Close()
	}
	return nil
}

// ClientCount returns the number of open WebSocket connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// handleWebSocket upgrades /ws requests and hands the connection to the
// gateway's read/write pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		http.Error(w, "server stopped", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		server:   s,
		conn:     conn,
		send:     make(chan outbound, 32),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(rate.Limit(controlMessagesPerSecond), controlMessageBurst),
		lastSeen: s.timeNow(),
	}

	s.mu.Lock()
	s.clients[c] = true
	count := len(s.clients)
	s.mu.Unlock()

	log.Printf("server: client connected from %s (%d total)", r.RemoteAddr, count)

	go c.writePump()
	go c.readPump()
}
