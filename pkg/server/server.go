// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the HTTP surface: /ask for single questions
// through the tool-calling orchestrator, /chat for conversations
// through the retrieval graph, /health, and the /mcp mount serving the
// item tools to MCP clients (including this process's own
// orchestrator).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/poelore/pkg/model"
	"github.com/kadirpekel/poelore/pkg/orchestrator"
)

// Answerer answers one question. Implemented by the orchestrator.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// ChatRunner extends a conversation with an assistant turn.
// Implemented by the retrieval graph.
type ChatRunner interface {
	Run(ctx context.Context, messages []model.Message) ([]model.Message, error)
}

// Server is the HTTP server.
type Server struct {
	answerer Answerer
	chat     ChatRunner
	router   chi.Router
	http     *http.Server
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the server and its routes.
func New(addr string, answerer Answerer, chat ChatRunner, opts ...Option) (*Server, error) {
	if answerer == nil {
		return nil, fmt.Errorf("answerer is required")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat runner is required")
	}

	s := &Server{
		answerer: answerer,
		chat:     chat,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Post("/ask", s.handleAsk)
	r.Post("/chat", s.handleChat)

	// The item registry is served over MCP on the same listener.
	r.Mount("/mcp", mcpserver.NewStreamableHTTPServer(newItemRegistry(),
		mcpserver.WithEndpointPath("/mcp"),
	))

	return r
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.writeError(w, r, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Messages []chatMessage `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "at least one message is required")
		return
	}

	messages := make([]model.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role, err := parseRole(msg.Role)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		messages = append(messages, model.Message{Role: role, Content: msg.Content})
	}

	result, err := s.chat.Run(r.Context(), messages)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	resp := chatResponse{Messages: make([]chatMessage, 0, len(result))}
	for _, msg := range result {
		// Internal turns (tool results, tool requests) stay internal.
		if msg.Role == model.RoleTool || msg.HasToolCalls() {
			continue
		}
		resp.Messages = append(resp.Messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseRole(role string) (model.Role, error) {
	switch role {
	case "user", "human":
		return model.RoleUser, nil
	case "assistant", "ai":
		return model.RoleAssistant, nil
	case "system":
		return model.RoleSystem, nil
	default:
		return "", fmt.Errorf("unknown role: %q", role)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, errorResponse{
		Error:     message,
		RequestID: requestIDFrom(r.Context()),
	})
}

// writeUpstreamError maps orchestration failures to a single
// structured 502. Fatal protocol errors never leak partial answers.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		malformed *orchestrator.MalformedResponseError
		toolErr   *orchestrator.ToolExecutionError
		resultErr *orchestrator.ToolResultError
		noAnswer  *orchestrator.NoAnswerError
		kind      = "upstream_failure"
	)
	switch {
	case errors.As(err, &malformed):
		kind = "malformed_model_response"
	case errors.As(err, &toolErr):
		kind = "tool_execution_failed"
	case errors.As(err, &resultErr):
		kind = "tool_response_not_json"
	case errors.As(err, &noAnswer):
		kind = "no_textual_answer"
	}

	s.logger.Error("request failed",
		"kind", kind, "error", err, "request_id", requestIDFrom(r.Context()))
	s.writeError(w, r, http.StatusBadGateway, kind)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID tags every request with a UUID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}
