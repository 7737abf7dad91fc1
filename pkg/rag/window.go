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
	"sort"
	"strings"

	"github.com/kadirpekel/poelore/pkg/model"
)

// TrailingToolWindow collects the consecutive tool messages at the end
// of the sequence, in original order. The scan runs backward from the
// end and stops at the first non-tool message; a non-tool message
// appended after a tool run therefore excludes that run from any
// subsequent window.
func TrailingToolWindow(messages []model.Message) []model.Message {
	var window []model.Message
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != model.RoleTool {
			break
		}
		window = append(window, messages[i])
	}

	// Collected back-to-front; restore original order.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}

// FilterConversation keeps the turns meant to be read by a user-facing
// model call: every user and system message, plus assistant messages
// that carry no pending tool-call request. An assistant turn that is
// itself a tool request is addressed to the tool layer, not the user.
func FilterConversation(messages []model.Message) []model.Message {
	filtered := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleUser, model.RoleSystem:
			filtered = append(filtered, msg)
		case model.RoleAssistant:
			if !msg.HasToolCalls() {
				filtered = append(filtered, msg)
			}
		}
	}
	return filtered
}

// SerializeChunks renders retrieved chunks for prompt inclusion, one
// block per chunk, separated by blank lines.
func SerializeChunks(chunks []model.Chunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		blocks = append(blocks, "Source: "+formatMetadata(chunk.Metadata)+"\nContent: "+chunk.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// formatMetadata renders metadata deterministically, keys sorted.
func formatMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "unknown"
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+metadata[k])
	}
	return strings.Join(pairs, ", ")
}
