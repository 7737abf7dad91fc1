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

// Package model defines the LLM contract and the conversation log the
// orchestration layers build on.
//
// A conversation is an append-only sequence of tagged messages scoped to
// a single request; nothing here persists across requests. The LLM
// interface guarantees that a response which is not plain text yields at
// most one tool-call request per invocation.
package model

import (
	"context"

	"google.golang.org/genai"
)

// Role tags a conversation message.
type Role string

const (
	// RoleUser is a human turn.
	RoleUser Role = "user"

	// RoleAssistant is a model turn. It may carry pending tool calls.
	RoleAssistant Role = "assistant"

	// RoleSystem is an instruction turn.
	RoleSystem Role = "system"

	// RoleTool carries a tool's response back into the conversation.
	RoleTool Role = "tool"
)

// ToolCall is a model-produced request to invoke a named tool.
// The orchestrator never fabricates these.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is one entry in a request-scoped conversation log.
//
// Ordering is significant and the log is append-only: derivations over
// it (windowing, filtering) operate on immutable snapshots.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls holds pending tool-call requests on assistant turns.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolName names the tool a RoleTool message responds for.
	ToolName string `json:"tool_name,omitempty"`

	// Chunks carries raw retrieval results alongside the serialized
	// content on RoleTool messages produced by the retrieval path.
	Chunks []Chunk `json:"-"`
}

// Chunk is a unit of retrieved text plus metadata. It is opaque to the
// orchestration logic beyond concatenation into prompt text.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasToolCalls reports whether the message carries pending tool calls.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// NewUserMessage builds a user turn.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant turn.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage builds a tool-response turn.
func NewToolMessage(toolName, content string) Message {
	return Message{Role: RoleTool, ToolName: toolName, Content: content}
}

// Declaration is a tool made available to the model for function calling.
type Declaration struct {
	Name        string
	Description string
	Parameters  *genai.Schema
}

// Request contains the input for one model invocation.
type Request struct {
	// Messages is the conversation so far.
	Messages []Message

	// Tools the model may request; nil offers none.
	Tools []Declaration

	// SystemInstruction is passed out of band of the message log.
	SystemInstruction string
}

// Usage reports token accounting for one invocation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of one model invocation.
//
// Either Text or a single entry in ToolCalls is the usable outcome;
// callers treat anything else as a malformed response.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *Usage
}

// HasText reports whether the response carries direct text.
func (r *Response) HasText() bool {
	return r != nil && r.Text != ""
}

// HasToolCalls reports whether the response requests tool execution.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// LLM is the language-model client contract.
//
// Implementations must be safe for concurrent use; each request is
// processed by a single logical task issuing strictly sequential calls.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// Generate produces one response for the given request. Blocking;
	// honors ctx deadlines.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Close releases resources held by the client.
	Close() error
}
