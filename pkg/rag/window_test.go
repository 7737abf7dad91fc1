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

package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/poelore/pkg/model"
)

func TestTrailingToolWindow(t *testing.T) {
	toolCall := model.ToolCall{Name: "retrieve_items", Args: map[string]any{"query": "bows"}}

	t.Run("collects trailing tools in original order", func(t *testing.T) {
		messages := []model.Message{
			model.NewUserMessage("what bows are there?"),
			model.NewAssistantMessage("", toolCall),
			model.NewToolMessage("retrieve_items", "A"),
			model.NewToolMessage("retrieve_items", "B"),
		}

		window := TrailingToolWindow(messages)
		require.Len(t, window, 2)
		assert.Equal(t, "A", window[0].Content)
		assert.Equal(t, "B", window[1].Content)
	})

	t.Run("later non-tool message excludes prior tool run", func(t *testing.T) {
		messages := []model.Message{
			model.NewUserMessage("what bows are there?"),
			model.NewAssistantMessage("", toolCall),
			model.NewToolMessage("retrieve_items", "A"),
			model.NewToolMessage("retrieve_items", "B"),
			model.NewAssistantMessage("the longbow"),
		}

		assert.Empty(t, TrailingToolWindow(messages))
	})

	t.Run("empty sequence", func(t *testing.T) {
		assert.Empty(t, TrailingToolWindow(nil))
	})

	t.Run("all tool messages", func(t *testing.T) {
		messages := []model.Message{
			model.NewToolMessage("retrieve_items", "A"),
			model.NewToolMessage("retrieve_items", "B"),
			model.NewToolMessage("retrieve_items", "C"),
		}

		window := TrailingToolWindow(messages)
		require.Len(t, window, 3)
		assert.Equal(t, "A", window[0].Content)
		assert.Equal(t, "C", window[2].Content)
	})
}

func TestFilterConversation(t *testing.T) {
	toolCall := model.ToolCall{Name: "retrieve_items", Args: map[string]any{"query": "bows"}}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "be helpful"},
		model.NewUserMessage("what bows are there?"),
		model.NewAssistantMessage("", toolCall),
		model.NewToolMessage("retrieve_items", "A"),
		model.NewAssistantMessage("the longbow"),
	}

	filtered := FilterConversation(messages)
	require.Len(t, filtered, 3)
	assert.Equal(t, model.RoleSystem, filtered[0].Role)
	assert.Equal(t, model.RoleUser, filtered[1].Role)
	assert.Equal(t, "the longbow", filtered[2].Content, "assistant turn without pending tool call is kept")
}

func TestSerializeChunks(t *testing.T) {
	chunks := []model.Chunk{
		{Text: "Longbow deals 6-8 damage", Metadata: map[string]string{"name": "Longbow", "item_class": "Bow"}},
		{Text: "Shortbow deals 4-6 damage", Metadata: nil},
	}

	got := SerializeChunks(chunks)
	want := "Source: item_class=Bow, name=Longbow\nContent: Longbow deals 6-8 damage\n\n" +
		"Source: unknown\nContent: Shortbow deals 4-6 damage"
	assert.Equal(t, want, got)
}
