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

// Package orchestrator runs the bounded tool-calling protocol: at most
// one tool execution and at most two model invocations per question.
//
// The flow is a small state machine. The first model call may answer
// directly (text always wins) or request exactly one tool. After the
// tool runs, its parsed result is folded back into the conversation and
// the model gets one more chance to answer. A model that asks for a
// second tool call is not serviced; the request fails with a typed
// error rather than looping.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/poelore/pkg/model"
	"github.com/kadirpekel/poelore/pkg/schema"
	"github.com/kadirpekel/poelore/pkg/tool"
)

// state tracks where a request is in the protocol. Used for logging;
// transitions are linear, there is no loop back.
type state string

const (
	stateInit          state = "init"
	stateAwaitModel    state = "await_model"
	stateToolExecuting state = "tool_executing"
	stateAwaitModel2   state = "await_model_2"
	stateDone          state = "done"
	stateFailed        state = "failed"
)

// Orchestrator answers questions with at most one tool round-trip.
//
// Safe for concurrent use: each Answer call opens its own registry
// session and keeps all conversation state on the stack.
type Orchestrator struct {
	llm      model.LLM
	sessions tool.SessionFactory
	system   string
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSystemInstruction sets the system instruction passed to the model.
func WithSystemInstruction(instruction string) Option {
	return func(o *Orchestrator) {
		o.system = instruction
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator around a model client and a tool session
// factory.
func New(llm model.LLM, sessions tool.SessionFactory, opts ...Option) (*Orchestrator, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	o := &Orchestrator{
		llm:      llm,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Answer processes one question through the bounded protocol and
// returns the model's textual answer.
//
// The registry session is scoped to this call and released on every
// exit path. Errors are typed per failure mode and never wrapped into
// a fallback answer.
func (o *Orchestrator) Answer(ctx context.Context, question string) (string, error) {
	session, err := o.sessions.OpenSession(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open tool session: %w", err)
	}
	defer session.Close()

	if err := session.Initialize(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize tool session: %w", err)
	}

	declarations, err := o.discoverTools(ctx, session)
	if err != nil {
		return "", err
	}

	messages := []model.Message{model.NewUserMessage(question)}
	o.logState(stateAwaitModel, "tools", len(declarations))

	resp, err := o.llm.Generate(ctx, &model.Request{
		Messages:          messages,
		Tools:             declarations,
		SystemInstruction: o.system,
	})
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	// Direct text ends the request even when declarations were offered.
	if resp.HasText() {
		o.logState(stateDone, "tool_calls", 0)
		return resp.Text, nil
	}

	call, err := singleToolCall(resp)
	if err != nil {
		o.logState(stateFailed, "reason", "malformed_response")
		return "", err
	}

	o.logState(stateToolExecuting, "tool", call.Name)
	toolMsg, err := o.executeTool(ctx, session, call)
	if err != nil {
		o.logState(stateFailed, "reason", "tool_failure", "tool", call.Name)
		return "", err
	}

	// Fold the round-trip back: the assistant turn records the exact
	// call the model made, the tool turn carries the parsed result.
	messages = append(messages,
		model.NewAssistantMessage("", call),
		toolMsg,
	)

	o.logState(stateAwaitModel2, "tool", call.Name)
	resp, err = o.llm.Generate(ctx, &model.Request{
		Messages:          messages,
		Tools:             declarations,
		SystemInstruction: o.system,
	})
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	if resp.HasText() {
		o.logState(stateDone, "tool_calls", 1)
		return resp.Text, nil
	}

	o.logState(stateFailed, "reason", "no_answer")
	return "", &NoAnswerError{ToolRequested: resp.HasToolCalls()}
}

// discoverTools lists the session's tools and converts their schemas to
// provider declarations. A malformed schema fails the request before
// any model call is made.
func (o *Orchestrator) discoverTools(ctx context.Context, session tool.Session) ([]model.Declaration, error) {
	specs, err := session.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	declarations := make([]model.Declaration, 0, len(specs))
	for _, spec := range specs {
		params, err := schema.Convert(spec.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", spec.Name, err)
		}
		declarations = append(declarations, model.Declaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  params,
		})
	}
	return declarations, nil
}

// executeTool runs the single permitted tool call and builds the tool
// turn from its parsed JSON payload.
func (o *Orchestrator) executeTool(ctx context.Context, session tool.Session, call model.ToolCall) (model.Message, error) {
	result, err := session.CallTool(ctx, call.Name, call.Args)
	if err != nil {
		return model.Message{}, fmt.Errorf("tool %q call failed: %w", call.Name, err)
	}

	if result.IsError {
		return model.Message{}, &ToolExecutionError{Tool: call.Name, Message: result.Content}
	}

	var payload any
	if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
		return model.Message{}, &ToolResultError{Tool: call.Name, Raw: result.Content, Err: err}
	}

	// Re-marshal the parsed payload so the tool turn carries normalized
	// JSON rather than whatever whitespace the tool emitted.
	normalized, err := json.Marshal(payload)
	if err != nil {
		return model.Message{}, &ToolResultError{Tool: call.Name, Raw: result.Content, Err: err}
	}

	return model.NewToolMessage(call.Name, string(normalized)), nil
}

// singleToolCall extracts the one tool call a no-text response must
// carry. Zero or multiple calls is a contract violation.
func singleToolCall(resp *model.Response) (model.ToolCall, error) {
	switch len(resp.ToolCalls) {
	case 1:
		return resp.ToolCalls[0], nil
	case 0:
		return model.ToolCall{}, &MalformedResponseError{Message: "no text and no tool call"}
	default:
		return model.ToolCall{}, &MalformedResponseError{
			Message:   "no text and multiple tool calls",
			ToolCalls: len(resp.ToolCalls),
		}
	}
}

func (o *Orchestrator) logState(s state, args ...any) {
	o.logger.Debug("orchestrator state", append([]any{"state", string(s)}, args...)...)
}
