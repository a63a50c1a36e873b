package config

// DefaultPortRangeStart is the first candidate port for the HTTP front door.
const DefaultPortRangeStart = 8080

// DefaultPortRangeEnd is the last candidate port for the HTTP front door.
const DefaultPortRangeEnd = 8090

// DefaultHeartbeatSeconds is the WebSocket liveness ping interval.
const DefaultHeartbeatSeconds = 5

// DefaultSessionRetentionHours is how long pairing sessions are retained.
const DefaultSessionRetentionHours = 24
