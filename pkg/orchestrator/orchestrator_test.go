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

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/poelore/pkg/model"
	"github.com/kadirpekel/poelore/pkg/tool"
)

// mockLLM replays scripted responses in order and records requests.
type mockLLM struct {
	responses []*model.Response
	requests  []*model.Request
	err       error
}

func (m *mockLLM) Name() string { return "mock" }

func (m *mockLLM) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.requests) > len(m.responses) {
		return nil, errors.New("mock: no scripted response left")
	}
	return m.responses[len(m.requests)-1], nil
}

func (m *mockLLM) Close() error { return nil }

// mockSession counts lifecycle and tool invocations.
type mockSession struct {
	specs       []tool.Spec
	result      *tool.Result
	callErr     error
	initialized bool
	closed      bool
	calls       []model.ToolCall
}

func (m *mockSession) Initialize(context.Context) error {
	m.initialized = true
	return nil
}

func (m *mockSession) ListTools(context.Context) ([]tool.Spec, error) {
	return m.specs, nil
}

func (m *mockSession) CallTool(_ context.Context, name string, args map[string]any) (*tool.Result, error) {
	m.calls = append(m.calls, model.ToolCall{Name: name, Args: args})
	if m.callErr != nil {
		return nil, m.callErr
	}
	return m.result, nil
}

func (m *mockSession) Close() error {
	m.closed = true
	return nil
}

func sessionFactory(s *mockSession) tool.SessionFactory {
	return tool.SessionFactoryFunc(func(context.Context) (tool.Session, error) {
		return s, nil
	})
}

func getItemsSpec() tool.Spec {
	return tool.Spec{
		Name:        "get_items",
		Description: "Get items of the given type",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type": map[string]any{"type": "string"},
			},
			"required": []any{"type"},
		},
	}
}

func TestAnswer_DirectText(t *testing.T) {
	llm := &mockLLM{responses: []*model.Response{
		{Text: "A Heavy Crossbow deals 8-10 damage."},
	}}
	session := &mockSession{specs: []tool.Spec{getItemsSpec()}}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), "What damage does a Heavy Crossbow deal?")
	require.NoError(t, err)
	assert.Equal(t, "A Heavy Crossbow deals 8-10 damage.", answer)

	assert.Len(t, llm.requests, 1, "direct text must not trigger a second model call")
	assert.Empty(t, session.calls, "direct text must not trigger a tool call")
	assert.True(t, session.initialized)
	assert.True(t, session.closed, "session must be released on success")
}

func TestAnswer_ToolRoundTrip(t *testing.T) {
	llm := &mockLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{Name: "get_items", Args: map[string]any{"type": "bow"}}}},
		{Text: "The Longbow deals 6-8 damage at range 150."},
	}}
	session := &mockSession{
		specs:  []tool.Spec{getItemsSpec()},
		result: &tool.Result{Content: `{"items": [{"name": "Longbow", "damage": "6-8"}]}`},
	}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), "What bows are there?")
	require.NoError(t, err)
	assert.Equal(t, "The Longbow deals 6-8 damage at range 150.", answer)

	require.Len(t, session.calls, 1, "tool must be executed exactly once")
	assert.Equal(t, "get_items", session.calls[0].Name)
	assert.Equal(t, map[string]any{"type": "bow"}, session.calls[0].Args)

	// The second request must carry the folded-back round-trip.
	require.Len(t, llm.requests, 2)
	first := llm.requests[0].Messages
	folded := llm.requests[1].Messages
	require.Len(t, first, 1)
	require.Len(t, folded, 3)
	assert.Equal(t, model.RoleAssistant, folded[1].Role)
	require.Len(t, folded[1].ToolCalls, 1)
	assert.Equal(t, "get_items", folded[1].ToolCalls[0].Name)
	assert.Equal(t, model.RoleTool, folded[2].Role)
	assert.Equal(t, "get_items", folded[2].ToolName)
	assert.JSONEq(t, `{"items": [{"name": "Longbow", "damage": "6-8"}]}`, folded[2].Content)

	assert.True(t, session.closed)
}

func TestAnswer_ToolError(t *testing.T) {
	llm := &mockLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{Name: "get_items", Args: map[string]any{"type": "axe"}}}},
	}}
	session := &mockSession{
		specs:  []tool.Spec{getItemsSpec()},
		result: &tool.Result{IsError: true, Content: "unknown item type"},
	}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "What axes are there?")
	var toolErr *ToolExecutionError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "get_items", toolErr.Tool)
	assert.Equal(t, "unknown item type", toolErr.Message)

	assert.Len(t, llm.requests, 1, "tool error must not trigger a second model call")
	assert.True(t, session.closed, "session must be released on tool failure")
}

func TestAnswer_NonJSONToolPayload(t *testing.T) {
	llm := &mockLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{Name: "get_items", Args: map[string]any{"type": "bow"}}}},
	}}
	session := &mockSession{
		specs:  []tool.Spec{getItemsSpec()},
		result: &tool.Result{Content: "internal server error"},
	}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "What bows are there?")
	var resultErr *ToolResultError
	require.ErrorAs(t, err, &resultErr)
	assert.Equal(t, "get_items", resultErr.Tool)
	assert.Equal(t, "internal server error", resultErr.Raw)
	assert.True(t, session.closed)
}

func TestAnswer_SecondToolCallNotServiced(t *testing.T) {
	llm := &mockLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{Name: "get_items", Args: map[string]any{"type": "bow"}}}},
		{ToolCalls: []model.ToolCall{{Name: "get_items", Args: map[string]any{"type": "crossbow"}}}},
	}}
	session := &mockSession{
		specs:  []tool.Spec{getItemsSpec()},
		result: &tool.Result{Content: `{"items": []}`},
	}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "Compare bows and crossbows")
	var noAnswer *NoAnswerError
	require.ErrorAs(t, err, &noAnswer)
	assert.True(t, noAnswer.ToolRequested)

	assert.Len(t, session.calls, 1, "a second tool call must never be executed")
	assert.True(t, session.closed)
}

func TestAnswer_NoTextAfterRoundTrip(t *testing.T) {
	llm := &mockLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{Name: "get_items", Args: map[string]any{"type": "bow"}}}},
		{},
	}}
	session := &mockSession{
		specs:  []tool.Spec{getItemsSpec()},
		result: &tool.Result{Content: `{"items": []}`},
	}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "What bows are there?")
	var noAnswer *NoAnswerError
	require.ErrorAs(t, err, &noAnswer)
	assert.False(t, noAnswer.ToolRequested)
}

func TestAnswer_MalformedFirstResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *model.Response
	}{
		{"empty response", &model.Response{}},
		{"multiple tool calls", &model.Response{ToolCalls: []model.ToolCall{
			{Name: "get_items"},
			{Name: "get_items"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLM{responses: []*model.Response{tt.resp}}
			session := &mockSession{specs: []tool.Spec{getItemsSpec()}}

			o, err := New(llm, sessionFactory(session))
			require.NoError(t, err)

			_, err = o.Answer(context.Background(), "hello")
			var malformed *MalformedResponseError
			require.ErrorAs(t, err, &malformed)
			assert.Empty(t, session.calls)
			assert.True(t, session.closed)
		})
	}
}

func TestAnswer_SchemaErrorFailsBeforeModelCall(t *testing.T) {
	llm := &mockLLM{}
	session := &mockSession{specs: []tool.Spec{{
		Name:        "broken",
		InputSchema: map[string]any{"properties": map[string]any{}},
	}}}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "hello")
	require.Error(t, err)
	assert.Empty(t, llm.requests, "schema failure must fail fast, before any model call")
	assert.True(t, session.closed)
}

func TestAnswer_ModelErrorReleasesSession(t *testing.T) {
	llm := &mockLLM{err: errors.New("upstream unavailable")}
	session := &mockSession{specs: []tool.Spec{getItemsSpec()}}

	o, err := New(llm, sessionFactory(session))
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, session.closed)
}

func TestNew_Validation(t *testing.T) {
	session := &mockSession{}

	_, err := New(nil, sessionFactory(session))
	assert.Error(t, err)

	_, err = New(&mockLLM{}, nil)
	assert.Error(t, err)
}
