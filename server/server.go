package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/internal/models"
	"github.com/huskychat/huskychat/pkg/llm"
	"github.com/huskychat/huskychat/pkg/retriever"
)

// Asker is the question pipeline behind every endpoint.
type Asker interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

const unavailableMessage = "I'm unable to answer right now. Please try again in a moment."

type Server struct {
	bot      Asker
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	started  time.Time

	questions atomic.Int64
	failures  atomic.Int64
}

func New(bot Asker, logger zerolog.Logger) *Server {
	return &Server{
		bot:    bot,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting chat server")
	return http.ListenAndServe(addr, s.Handler())
}

type chatRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "a non-empty \"question\" field is required"})
		return
	}

	answer, err := s.ask(r.Context(), req.Question)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: unavailableMessage})
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// Message is the websocket frame in both directions. Clients send
// {"type":"question","content":...}; the server replies with status and
// answer frames.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}

		if msg.Type != "question" || msg.Content == "" {
			s.send(conn, Message{Type: "error", Content: "expected a question message"})
			continue
		}

		s.send(conn, Message{Type: "status", Content: "searching the knowledge base"})

		answer, err := s.ask(r.Context(), msg.Content)
		if err != nil {
			s.send(conn, Message{Type: "error", Content: unavailableMessage})
			continue
		}

		s.send(conn, Message{Type: "answer", Content: answer.Text, Data: answer})
	}
}

func (s *Server) ask(ctx context.Context, question string) (*models.Answer, error) {
	s.questions.Add(1)

	answer, err := s.bot.Ask(ctx, question)
	if err != nil {
		s.failures.Add(1)
		// The pipeline stage matters for the log, not for the client.
		event := s.logger.Error().Err(err).Str("question", question)
		switch {
		case errors.Is(err, retriever.ErrRetrieval):
			event.Msg("retrieval failed")
		case errors.Is(err, llm.ErrGeneration):
			event.Msg("generation failed")
		default:
			event.Msg("question pipeline failed")
		}
		return nil, err
	}
	return answer, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	Questions     int64   `json:"questions"`
	Failures      int64   `json:"failures"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Questions:     s.questions.Load(),
		Failures:      s.failures.Load(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

func (s *Server) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn().Err(err).Msg("websocket write failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Too late for an error status; the header is already out.
		return
	}
}
