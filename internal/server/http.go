package server

import (
	"embed"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/nuriemon/companion/internal/events"
	"github.com/nuriemon/companion/internal/storage"
)

//go:embed static
var staticFS embed.FS

// createMux creates the HTTP mux with all endpoints.
func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Front-end pages. The phone loads /app from the QR URL; /mobile is the
	// controller page it navigates to after connecting.
	mux.HandleFunc("/", s.handlePage("static/index.html"))
	mux.HandleFunc("/mobile", s.handlePage("static/mobile.html"))
	mux.HandleFunc("/app", s.handlePage("static/app.html"))

	// Image file serving backed by the metadata store.
	mux.HandleFunc("/image/", s.handleImage)

	// Legacy REST handshake kept for one generation of clients that called
	// it before opening the WebSocket.
	mux.HandleFunc("/api/connect", s.handleConnect)

	// WebSocket endpoint serviced by the transport gateway.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Health check endpoint for monitoring
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// handlePage serves one embedded HTML page.
func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The root pattern matches every unregistered path; keep it 404
		// for anything that is not the landing page itself.
		if name == "static/index.html" && r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data, err := staticFS.ReadFile(name)
		if err != nil {
			log.Printf("server: missing embedded page %s: %v", name, err)
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}

// handleImage resolves /image/{id} through the metadata store and streams the
// backing file. 404 when the id is unknown or the file is gone.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/image/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	if s.store == nil {
		http.NotFound(w, r)
		return
	}

	meta, err := s.store.GetImage(id)
	if err != nil {
		if err != storage.ErrImageNotFound {
			log.Printf("server: image lookup failed for %s: %v", id, err)
		}
		http.NotFound(w, r)
		return
	}

	path := storage.ResolvePath(meta)
	if _, err := os.Stat(path); err != nil {
		log.Printf("server: image %s has no backing file at %s", id, path)
		http.NotFound(w, r)
		return
	}

	// ServeFile guesses the content type from the extension and handles
	// range requests for audio files.
	http.ServeFile(w, r, path)
}

// connectRequest is the legacy REST handshake body.
type connectRequest struct {
	SessionID string `json:"sessionId"`
	ImageID   string `json:"imageId"`
}

// connectResponse mirrors the shape existing clients expect.
type connectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleConnect implements POST /api/connect. It publishes the same
// mobile-connected notification the WebSocket handshake does. Presence of
// both fields is the only requirement; the token is not validated here
// because old clients called this route with tokens the registry never saw.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeConnectResponse(w, http.StatusBadRequest, connectResponse{
			Success: false, Message: "invalid request body",
		})
		return
	}
	if req.SessionID == "" || req.ImageID == "" {
		writeConnectResponse(w, http.StatusBadRequest, connectResponse{
			Success: false, Message: "sessionId and imageId are required",
		})
		return
	}

	log.Printf("server: rest handshake for target %s", req.ImageID)
	s.bus.Publish(events.MobileConnected{SessionID: req.SessionID, ImageID: req.ImageID})

	writeConnectResponse(w, http.StatusOK, connectResponse{
		Success: true, Message: "connected",
	})
}

func writeConnectResponse(w http.ResponseWriter, status int, resp connectResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
