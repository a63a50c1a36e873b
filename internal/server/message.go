package server

// outbound is the JSON shape of every message the gateway sends to a phone.
// Type is one of "connected", "ack", "error", "keepalive".
type outbound struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ImageID   string `json:"imageId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// connectedMessage acknowledges a successful handshake.
func connectedMessage(sessionID, imageID string) outbound {
	return outbound{
		Type:      "connected",
		Message:   "connected",
		SessionID: sessionID,
		ImageID:   imageID,
	}
}

// errorMessage reports a handshake or protocol failure without closing the
// connection.
func errorMessage(code, message string) outbound {
	return outbound{Type: "error", Code: code, Message: message}
}

// keepaliveMessage echoes a client keepalive with the server clock.
func keepaliveMessage(unixSeconds int64) outbound {
	return outbound{Type: "keepalive", Timestamp: unixSeconds}
}
