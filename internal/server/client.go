package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nuriemon/companion/internal/control"
	"github.com/nuriemon/companion/internal/errors"
	"github.com/nuriemon/companion/internal/events"
)

const (
	// maxMessageSize bounds inbound frames. Control messages are tiny;
	// anything bigger is a confused or hostile client.
	maxMessageSize = 64 * 1024

	writeTimeout = 10 * time.Second
)

// client is one open WebSocket connection.
//
// Per-connection state machine: Open -> Authenticated -> Closed, with
// Open -> Closed reachable directly via the heartbeat timeout. Control
// messages are forwarded best-effort even before authentication; the
// handshake only gates the connected acknowledgment and the sticky
// session flag, matching how existing clients behave.
type client struct {
	server *Server
	conn   *websocket.Conn

	send     chan outbound
	done     chan struct{}
	sendOnce sync.Once

	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
	token    string
	targetID string
	authed   bool
}

// closeSend signals shutdown exactly once. Only the done channel is closed;
// all senders check done before sending, so send itself is never closed.
func (c *client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.done)
	})
}

// enqueue queues an outbound message unless the connection is shutting down
// or the send buffer is full.
func (c *client) enqueue(msg outbound) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		log.Printf("server: send buffer full, dropping %s message", msg.Type)
	}
}

// touch records traffic for the heartbeat state machine.
func (c *client) touch() {
	c.mu.Lock()
	c.lastSeen = c.server.timeNow()
	c.mu.Unlock()
}

// sinceLastSeen returns how long the connection has been silent.
func (c *client) sinceLastSeen() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server.timeNow().Sub(c.lastSeen)
}

// writePump serializes all writes to the socket: queued messages, liveness
// pings, and the close frame. It owns the heartbeat timer; if the connection
// has been silent for more than twice the heartbeat interval the pump exits,
// closing the socket and thereby ending readPump too.
func (c *client) writePump() {
	ticker := time.NewTicker(c.server.heartbeat)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("server: failed to marshal %s message: %v", msg.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("server: write error: %v", err)
				return
			}

		case <-ticker.C:
			if silent := c.sinceLastSeen(); silent > 2*c.server.heartbeat {
				log.Printf("server: closing connection after %s of silence", silent.Round(time.Millisecond))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames until the socket fails or the heartbeat timeout
// closes it. Malformed frames are dropped per-message; the connection stays
// open.
func (c *client) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()

		c.closeSend()
		log.Printf("server: client disconnected (%d remaining)", c.server.ClientCount())
	}()

	c.conn.SetReadLimit(maxMessageSize)

	// Protocol-level pings and pongs count as traffic.
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	c.conn.SetPingHandler(func(appData string) error {
		c.touch()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				log.Printf("server: read error: %v", err)
			}
			return
		}
		c.touch()

		env, ok := control.ParseEnvelope(data)
		if !ok {
			log.Printf("server: dropping malformed frame (%d bytes)", len(data))
			continue
		}

		switch {
		case env.IsHandshake():
			c.handleHandshake(env)

		case env.Type == control.TypeKeepalive:
			c.enqueue(keepaliveMessage(c.server.timeNow().Unix()))

		default:
			c.handleControl(env)
		}
	}
}

// handleHandshake validates the token from either handshake dialect and, on
// success, marks the session connected, acknowledges the phone, and notifies
// the desktop. Failures are reported on the socket but never close it; the
// phone may retry with a corrected frame.
func (c *client) handleHandshake(env *control.Envelope) {
	token, targetID, ok := env.Handshake()
	if !ok {
		c.enqueue(errorMessage(errors.CodeServerInvalidMessage, "handshake missing session token"))
		return
	}

	// Look up first, mark connected only after the target check passes.
	// A mismatched handshake must leave the session unconnected.
	recordedTarget, ok := c.server.registry.Lookup(token)
	if !ok {
		log.Printf("server: handshake rejected: unknown session token")
		c.enqueue(errorMessage(errors.CodeSessionNotFound, "session not found"))
		return
	}
	if targetID != "" && targetID != recordedTarget {
		log.Printf("server: handshake rejected: target %s does not match session target %s",
			targetID, recordedTarget)
		c.enqueue(errorMessage(errors.CodeSessionTargetMismatch, "image id does not match session"))
		return
	}
	c.server.registry.ValidateSession(token)

	c.mu.Lock()
	c.token = token
	c.targetID = recordedTarget
	c.authed = true
	c.mu.Unlock()

	log.Printf("server: client authenticated for target %s", recordedTarget)
	c.enqueue(connectedMessage(token, recordedTarget))
	c.server.bus.Publish(events.MobileConnected{SessionID: token, ImageID: recordedTarget})
}

// handleControl normalizes a control frame of any dialect and republishes it
// on the desktop event bus. Unrecognized frames are logged and dropped.
func (c *client) handleControl(env *control.Envelope) {
	if !c.limiter.Allow() {
		log.Printf("server: control message rate limit exceeded, dropping %s", env.Type)
		return
	}

	ev, ok := control.Normalize(env)
	if !ok {
		log.Printf("server: dropping unrecognized %s frame", env.Type)
		return
	}

	imageID := ev.TargetID
	if imageID == "" {
		c.mu.Lock()
		imageID = c.targetID
		c.mu.Unlock()
	}

	mc := events.MobileControl{Type: string(ev.Kind), ImageID: imageID}
	switch ev.Kind {
	case control.KindMove:
		mc.Direction = ev.Detail
	case control.KindAction:
		mc.ActionType = ev.Detail
	case control.KindEmote:
		mc.EmoteType = ev.Detail
	}
	c.server.bus.Publish(mc)
}
