// Package errors provides standardized error codes for the companion service.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (session, server, image, qr, storage)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by mobile clients for programmatic
// error handling. Human-readable messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers that mobile clients can rely on for error handling.
const (
	// Session domain - pairing session errors
	CodeSessionNotFound       = "session.not_found"       // Unknown session token
	CodeSessionTargetMismatch = "session.target_mismatch" // Supplied target id disagrees with the session

	// Server domain - lifecycle and transport errors
	CodeServerStarting       = "server.starting"        // Another caller is still starting the server; retry shortly
	CodeServerNoPort         = "server.no_port"         // No free port in the configured range
	CodeServerNotRunning     = "server.not_running"     // Operation requires a running server
	CodeServerUpgradeFailed  = "server.upgrade_failed"  // WebSocket upgrade failed
	CodeServerInvalidMessage = "server.invalid_message" // Malformed or invalid message

	// Image domain - metadata lookup and file serving
	CodeImageNotFound = "image.not_found" // No metadata or backing file for the id

	// QR domain - encoding errors
	CodeQREncodeFailed = "qr.encode_failed" // Encoder rejected the payload

	// Storage domain - database and persistence errors
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageQueryFailed = "storage.query_failed" // Database query failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to save data

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "session.not_found")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}
	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// SessionNotFound creates a "session.not_found" error.
func SessionNotFound(token string) *CodedError {
	return New(CodeSessionNotFound, fmt.Sprintf("session %s not found", token))
}

// TargetMismatch creates a "session.target_mismatch" error.
// This indicates the client presented a valid token but for a different
// target object than the one the session was created for.
func TargetMismatch(got, want string) *CodedError {
	return New(CodeSessionTargetMismatch, fmt.Sprintf("target id %s does not match session target %s", got, want))
}

// ServerStarting creates a "server.starting" error.
// The caller should retry after a short delay.
func ServerStarting() *CodedError {
	return New(CodeServerStarting, "server is starting, retry shortly")
}

// NoAvailablePort creates a "server.no_port" error.
func NoAvailablePort(lo, hi int, cause error) *CodedError {
	return Wrap(CodeServerNoPort, fmt.Sprintf("no available port in range %d-%d", lo, hi), cause)
}

// ServerNotRunning creates a "server.not_running" error.
func ServerNotRunning() *CodedError {
	return New(CodeServerNotRunning, "web server is not running")
}

// InvalidMessage creates a "server.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeServerInvalidMessage, reason)
}

// ImageNotFound creates an "image.not_found" error.
func ImageNotFound(id string) *CodedError {
	return New(CodeImageNotFound, fmt.Sprintf("image %s not found", id))
}

// QREncodeFailed creates a "qr.encode_failed" error.
func QREncodeFailed(cause error) *CodedError {
	return Wrap(CodeQREncodeFailed, "failed to encode QR payload", cause)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
