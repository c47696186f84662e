package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskychat/huskychat/internal/models"
	"github.com/huskychat/huskychat/pkg/retriever"
)

type fakeBot struct {
	answer *models.Answer
	err    error
}

func (f *fakeBot) Ask(context.Context, string) (*models.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func testAnswer() *models.Answer {
	return &models.Answer{
		Text:              "Co-op placements run six months.",
		Confidence:        "high",
		ConfidencePercent: 78,
		DocumentsSearched: 4,
	}
}

func TestChatEndpoint(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{answer: testAnswer()}, zerolog.Nop()).Handler())
	defer srv.Close()

	body, _ := json.Marshal(chatRequest{Question: "How long is co-op?"})
	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var answer models.Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	assert.Equal(t, "Co-op placements run six months.", answer.Text)
	assert.Equal(t, 78.0, answer.ConfidencePercent)
}

func TestChatEndpointRejectsEmptyQuestion(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{answer: testAnswer()}, zerolog.Nop()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpointRejectsGet(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{answer: testAnswer()}, zerolog.Nop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chat")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChatEndpointPipelineFailure(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{err: fmt.Errorf("wrapped: %w", retriever.ErrRetrieval)}, zerolog.Nop()).Handler())
	defer srv.Close()

	body, _ := json.Marshal(chatRequest{Question: "anything"})
	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, unavailableMessage, errResp.Error)
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{}, zerolog.Nop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsCountsQuestionsAndFailures(t *testing.T) {
	s := New(&fakeBot{err: retriever.ErrRetrieval}, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(chatRequest{Question: "anything"})
	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Questions)
	assert.Equal(t, int64(1), stats.Failures)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketQuestion(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{answer: testAnswer()}, zerolog.Nop()).Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "question", Content: "How long is co-op?"}))

	var status Message
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "status", status.Type)

	var answer Message
	require.NoError(t, conn.ReadJSON(&answer))
	assert.Equal(t, "answer", answer.Type)
	assert.Equal(t, "Co-op placements run six months.", answer.Content)
	assert.NotNil(t, answer.Data)
}

func TestWebSocketRejectsMalformedFrame(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{answer: testAnswer()}, zerolog.Nop()).Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "question"}))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}

func TestWebSocketPipelineFailure(t *testing.T) {
	srv := httptest.NewServer(New(&fakeBot{err: retriever.ErrRetrieval}, zerolog.Nop()).Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "question", Content: "anything"}))

	var status Message
	require.NoError(t, conn.ReadJSON(&status))
	require.Equal(t, "status", status.Type)

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, unavailableMessage, msg.Content)
}
