// internal/web/server.go
// Package web serves the browser chat UI and its JSON API on a loopback address.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/pipeline"
)

//go:embed static/index.html
var indexHTML []byte

const maxRequestBytes = 1 << 20

// Answerer produces an answer for one question. *pipeline.Pipeline implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) (pipeline.AnswerResult, error)
}

// Server is the chat UI HTTP server. Answer calls are serialized because the
// model service handles one generation at a time.
type Server struct {
	addr     string
	answerer Answerer
	passages int

	mu      sync.Mutex
	handler http.Handler
}

// NewServer builds a Server for answerer. passages is reported by the health endpoint.
func NewServer(addr string, answerer Answerer, passages int) *Server {
	s := &Server{addr: addr, answerer: answerer, passages: passages}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/answer", s.handleAnswer)
	mux.HandleFunc("/api/health", s.handleHealth)
	s.handler = loggingMiddleware(mux)
	return s
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe binds the address, calls onListen with the bound address and
// serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, onListen func(addr string)) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if onListen != nil {
		onListen(ln.Addr().String())
	}
	logging.LogEvent("chat UI listening on http://%s", ln.Addr().String())

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("chat UI server error: %w", err)
	}
	err = <-shutdownErr
	logging.LogEvent("chat UI stopped")
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Text    string  `json:"text"`
	Elapsed float64 `json:"elapsed"`
	Display string  `json:"display"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req answerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	s.mu.Lock()
	result, err := s.answerer.Answer(r.Context(), req.Question)
	s.mu.Unlock()
	if err != nil {
		logging.LogEvent("answer failed: request_id=%s error=%v", requestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Text:    result.Text,
		Elapsed: result.ElapsedSeconds(),
		Display: result.Display(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"passages": s.passages,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogEvent("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(msg)})
}
