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
	"fmt"
)

// MalformedResponseError reports a model response that carried neither
// usable text nor exactly one tool-call request. Fatal for the request.
type MalformedResponseError struct {
	Message   string // What the response looked like instead
	ToolCalls int    // Number of tool calls the response carried
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s (tool calls: %d)", e.Message, e.ToolCalls)
}

// ToolExecutionError reports a tool that ran and returned an error
// result. Fatal for the request; no retry, no fallback answer.
type ToolExecutionError struct {
	Tool    string // Tool that failed
	Message string // Error content reported by the tool
}

// Error implements the error interface.
func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q reported an error: %s", e.Tool, e.Message)
}

// ToolResultError reports a tool payload that could not be parsed as
// JSON where structured data was required. Carries the raw payload for
// diagnosis.
type ToolResultError struct {
	Tool string // Tool that produced the payload
	Raw  string // Unparseable payload text
	Err  error  // Underlying parse error
}

// Error implements the error interface.
func (e *ToolResultError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("tool %q returned non-JSON payload: %v (raw: %s)", e.Tool, e.Err, raw)
}

// Unwrap returns the underlying error.
func (e *ToolResultError) Unwrap() error {
	return e.Err
}

// NoAnswerError reports that the model produced no usable text after
// the single permitted tool round-trip. A second tool-call request
// lands here: tool execution is bounded to one round-trip per request.
type NoAnswerError struct {
	// ToolRequested is true when the second response asked for another
	// tool call rather than returning nothing at all.
	ToolRequested bool
}

// Error implements the error interface.
func (e *NoAnswerError) Error() string {
	if e.ToolRequested {
		return "no textual answer: model requested a second tool call after its round-trip was spent"
	}
	return "no textual answer: model returned no text after tool round-trip"
}
