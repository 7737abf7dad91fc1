// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kadirpekel/poelore/pkg/model"
)

func TestMessageToContent(t *testing.T) {
	t.Run("user message", func(t *testing.T) {
		content := messageToContent(model.NewUserMessage("hello"))
		require.NotNil(t, content)
		assert.Equal(t, "user", content.Role)
		require.Len(t, content.Parts, 1)
		assert.Equal(t, "hello", content.Parts[0].Text)
	})

	t.Run("assistant tool call", func(t *testing.T) {
		msg := model.NewAssistantMessage("", model.ToolCall{
			Name: "get_items",
			Args: map[string]any{"type": "bow"},
		})
		content := messageToContent(msg)
		require.NotNil(t, content)
		assert.Equal(t, "model", content.Role)
		require.Len(t, content.Parts, 1)
		require.NotNil(t, content.Parts[0].FunctionCall)
		assert.Equal(t, "get_items", content.Parts[0].FunctionCall.Name)
	})

	t.Run("tool response", func(t *testing.T) {
		content := messageToContent(model.NewToolMessage("get_items", `{"items":[]}`))
		require.NotNil(t, content)
		require.Len(t, content.Parts, 1)
		fr := content.Parts[0].FunctionResponse
		require.NotNil(t, fr)
		assert.Equal(t, "get_items", fr.Name)
		assert.Equal(t, `{"items":[]}`, fr.Response["content"])
	})

	t.Run("empty message dropped", func(t *testing.T) {
		assert.Nil(t, messageToContent(model.NewUserMessage("")))
	})
}

func TestBuildConfig(t *testing.T) {
	m := &geminiModel{config: Config{Temperature: 0.7, MaxTokens: 1024}}

	cfg := m.buildConfig(&model.Request{
		SystemInstruction: "be helpful",
		Tools: []model.Declaration{{
			Name:        "get_items",
			Description: "fetch items",
			Parameters:  &genai.Schema{Type: genai.TypeObject},
		}},
	})

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be helpful", cfg.SystemInstruction.Parts[0].Text)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.7, float64(*cfg.Temperature), 1e-6)
	assert.Equal(t, int32(1024), cfg.MaxOutputTokens)
	require.Len(t, cfg.Tools, 1)
	require.Len(t, cfg.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "get_items", cfg.Tools[0].FunctionDeclarations[0].Name)
}

func TestParseResponse(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		resp, err := parseResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: "answer"}}},
			}},
		})
		require.NoError(t, err)
		assert.True(t, resp.HasText())
		assert.Equal(t, "answer", resp.Text)
	})

	t.Run("tool call", func(t *testing.T) {
		resp, err := parseResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						Name: "get_items",
						Args: map[string]any{"type": "bow"},
					},
				}}},
			}},
		})
		require.NoError(t, err)
		assert.False(t, resp.HasText())
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "get_items", resp.ToolCalls[0].Name)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := parseResponse(&genai.GenerateContentResponse{})
		assert.Error(t, err)
	})
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
