// Package mockbackend is a local stand-in for the chatbot backend. It serves
// the ask, get_prompt and save_prompt endpoints with canned behavior so the
// widget can be driven offline and in integration tests.
package mockbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-go-golems/chatwidget/pkg/api"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultPrompt = "You are a friendly assistant for Pharmacy Bali. Answer briefly."

// FailQuery makes /v1/ask answer with a 500, for exercising the error path.
const FailQuery = "/fail"

// Replier produces the full answer for a query. The server splits it into
// words when streaming.
type Replier func(query string) string

func EchoReplier(query string) string { return "You said: " + query }

type Server struct {
	reply     Replier
	wordDelay time.Duration
	logger    zerolog.Logger

	mu     sync.RWMutex
	prompt string
}

type Option func(*Server)

func WithReplier(r Replier) Option {
	return func(s *Server) {
		if r != nil {
			s.reply = r
		}
	}
}

// WithWordDelay sleeps between streamed words.
func WithWordDelay(d time.Duration) Option {
	return func(s *Server) { s.wordDelay = d }
}

func WithPrompt(p string) Option {
	return func(s *Server) { s.prompt = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func New(opts ...Option) *Server {
	s := &Server{
		reply:  EchoReplier,
		prompt: DefaultPrompt,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompt
}

// Router wires the endpoints behind the usual chi middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.HTTPMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Post(api.AskPath, s.handleAsk)
	r.Get(api.GetPromptPath, s.handleGetPrompt)
	r.Post(api.SavePromptPath, s.handleSavePrompt)

	return r
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req api.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{
			Detail: []api.ErrorDetail{{Msg: "invalid request body"}},
		})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{
			Detail: []api.ErrorDetail{{Msg: "query must not be empty"}},
		})
		return
	}
	if strings.TrimSpace(req.Query) == FailQuery {
		respondJSON(w, http.StatusInternalServerError, api.ErrorResponse{Message: "simulated failure"})
		return
	}

	answer := s.reply(req.Query)
	s.logger.Debug().
		Str("component", "mockbackend").
		Str("session_id", req.SessionID).
		Bool("stream", req.Stream).
		Int("answer_len", len(answer)).
		Msg("ask")

	if !req.Stream {
		respondJSON(w, http.StatusOK, api.AskResponse{Response: answer})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, word := range strings.SplitAfter(answer, " ") {
		if word == "" {
			continue
		}
		if s.wordDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.wordDelay):
			}
		}
		if _, err := w.Write([]byte(word)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, api.PromptResponse{Prompt: s.Prompt()})
}

func (s *Server) handleSavePrompt(w http.ResponseWriter, r *http.Request) {
	prompt := r.URL.Query().Get("prompt")
	if strings.TrimSpace(prompt) == "" {
		respondJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{
			Detail: []api.ErrorDetail{{Msg: "prompt must not be empty"}},
		})
		return
	}
	s.mu.Lock()
	s.prompt = prompt
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, api.SaveResponse{Msg: "Prompt updated."})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ListenAndServe runs the server on addr until ctx is cancelled, then shuts
// it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("mock backend listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "mock backend")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "mock backend")
	}
}
