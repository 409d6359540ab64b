// Package backendtest runs an in-process fake of the conversational backend.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
)

// ChatFunc produces the HTTP answer for a chat message.
type ChatFunc func(w http.ResponseWriter, message string)

// Server is a fake backend exposing /api/health, /api/chat and /api/initialize.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	healthy     bool
	chat        ChatFunc
	received    []string
	healthCalls atomic.Int64
	chatCalls   atomic.Int64
	initCalls   atomic.Int64
	chatGate    chan struct{}
}

// New starts a healthy fake backend that echoes messages.
func New() *Server {
	s := &Server{healthy: true, chat: Echo}

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Post("/chat", s.handleChat)
		api.Post("/initialize", s.handleInitialize)
	})
	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL returns the address to configure the client with.
func (s *Server) BaseURL() string { return s.URL + "/api" }

// SetHealthy toggles the /health answer between 200 and 503.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	s.healthy = healthy
	s.mu.Unlock()
}

// SetChat replaces the /chat behaviour.
func (s *Server) SetChat(fn ChatFunc) {
	s.mu.Lock()
	s.chat = fn
	s.mu.Unlock()
}

// Hold makes /chat block until Release is called. It returns a channel that
// receives once per chat request that reached the gate.
func (s *Server) Hold() <-chan struct{} {
	arrived := make(chan struct{}, 16)
	gate := make(chan struct{})
	s.mu.Lock()
	s.chatGate = gate
	inner := s.chat
	s.chat = func(w http.ResponseWriter, message string) {
		arrived <- struct{}{}
		<-gate
		inner(w, message)
	}
	s.mu.Unlock()
	return arrived
}

// Release unblocks requests parked by Hold.
func (s *Server) Release() {
	s.mu.Lock()
	gate := s.chatGate
	s.chatGate = nil
	s.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// Received returns every chat message the backend has seen.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *Server) HealthCalls() int64 { return s.healthCalls.Load() }
func (s *Server) ChatCalls() int64   { return s.chatCalls.Load() }
func (s *Server) InitCalls() int64   { return s.initCalls.Load() }

// Close releases held requests and shuts the server down.
func (s *Server) Close() {
	s.Release()
	s.Server.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.healthCalls.Add(1)
	s.mu.Lock()
	healthy := s.healthy
	s.mu.Unlock()

	if !healthy {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": "EURO-Bot API is running"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.chatCalls.Add(1)
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	s.mu.Lock()
	s.received = append(s.received, payload.Message)
	fn := s.chat
	s.mu.Unlock()

	fn(w, payload.Message)
}

func (s *Server) handleInitialize(w http.ResponseWriter, _ *http.Request) {
	s.initCalls.Add(1)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Components initialized"})
}

// Echo answers with the message prefixed by "echo: ".
func Echo(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, map[string]any{"response": "echo: " + message, "context_used": true})
}

// Respond answers every message with text.
func Respond(text string) ChatFunc {
	return func(w http.ResponseWriter, _ string) {
		WriteJSON(w, http.StatusOK, map[string]any{"response": text, "context_used": false})
	}
}

// Fail answers every message with status.
func Fail(status int) ChatFunc {
	return func(w http.ResponseWriter, _ string) {
		WriteJSON(w, status, map[string]string{"error": "Internal server error"})
	}
}

// Raw answers every message with a 200 and body verbatim.
func Raw(body string) ChatFunc {
	return func(w http.ResponseWriter, _ string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

// WriteJSON encodes payload with status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
