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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/poelore/pkg/model"
	"github.com/kadirpekel/poelore/pkg/orchestrator"
)

type mockAnswerer struct {
	answer   string
	err      error
	question string
}

func (m *mockAnswerer) Answer(_ context.Context, question string) (string, error) {
	m.question = question
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

type mockChat struct {
	out []model.Message
	err error
	in  []model.Message
}

func (m *mockChat) Run(_ context.Context, messages []model.Message) ([]model.Message, error) {
	m.in = messages
	if m.err != nil {
		return nil, m.err
	}
	return m.out, nil
}

func newTestServer(t *testing.T, answerer Answerer, chat ChatRunner) *Server {
	t.Helper()
	s, err := New("127.0.0.1:0", answerer, chat)
	require.NoError(t, err)
	return s
}

func TestHandleAsk(t *testing.T) {
	answerer := &mockAnswerer{answer: "A Heavy Crossbow deals 8-10 damage."}
	s := newTestServer(t, answerer, &mockChat{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question": "What damage does a Heavy Crossbow deal?"}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resp askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "A Heavy Crossbow deals 8-10 damage.", resp.Answer)
	assert.Equal(t, "What damage does a Heavy Crossbow deal?", answerer.question)
}

func TestHandleAsk_BadRequest(t *testing.T) {
	s := newTestServer(t, &mockAnswerer{}, &mockChat{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"empty question", `{"question": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tt.body))
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleAsk_UpstreamFailure(t *testing.T) {
	answerer := &mockAnswerer{err: &orchestrator.NoAnswerError{ToolRequested: true}}
	s := newTestServer(t, answerer, &mockChat{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question": "hi"}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no_textual_answer", resp.Error)
	assert.NotEmpty(t, resp.RequestID)
}

func TestHandleChat(t *testing.T) {
	chat := &mockChat{out: []model.Message{
		model.NewUserMessage("what bows are there?"),
		model.NewAssistantMessage("", model.ToolCall{Name: "retrieve_items"}),
		model.NewToolMessage("retrieve_items", "chunks"),
		model.NewAssistantMessage("The Longbow and the Shortbow."),
	}}
	s := newTestServer(t, &mockAnswerer{}, chat)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"messages": [{"role": "user", "content": "what bows are there?"}]}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, chat.in, 1)
	assert.Equal(t, model.RoleUser, chat.in[0].Role)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2, "tool turns stay internal")
	assert.Equal(t, "assistant", resp.Messages[1].Role)
	assert.Equal(t, "The Longbow and the Shortbow.", resp.Messages[1].Content)
}

func TestHandleChat_UnknownRole(t *testing.T) {
	s := newTestServer(t, &mockAnswerer{}, &mockChat{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"messages": [{"role": "cat", "content": "meow"}]}`))
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &mockAnswerer{}, &mockChat{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHandleGetItems(t *testing.T) {
	tests := []struct {
		name      string
		itemType  string
		wantNames []string
	}{
		{"bows", "bow", []string{"Longbow", "Shortbow"}},
		{"crossbows case-insensitive", "CROSSBOW", []string{"Heavy Crossbow", "Light Crossbow"}},
		{"unknown type yields empty list", "axe", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{}
			req.Params.Name = "get_items"
			req.Params.Arguments = map[string]any{"type": tt.itemType}

			result, err := handleGetItems(context.Background(), req)
			require.NoError(t, err)
			require.False(t, result.IsError)

			text, ok := result.Content[0].(mcp.TextContent)
			require.True(t, ok)

			var payload struct {
				Items []Item `json:"items"`
			}
			require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))

			names := make([]string, 0, len(payload.Items))
			for _, item := range payload.Items {
				names = append(names, item.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestHandleGetItems_MissingType(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Name = "get_items"
	req.Params.Arguments = map[string]any{}

	result, err := handleGetItems(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
