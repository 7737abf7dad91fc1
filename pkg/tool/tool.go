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

// Package tool defines the tool registry contract consumed by the
// orchestrator.
//
// A registry session is scoped to exactly one request: acquired from a
// SessionFactory, initialized, used for discovery and at most one call,
// and released on every exit path.
package tool

import (
	"context"
)

// Spec describes an externally registered callable tool.
//
// InputSchema is a JSON-Schema-like tree as declared by the tool server;
// the schema package converts it to the model's native declaration type.
// Specs are immutable for the lifetime of a request.
type Spec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Result is the outcome of one tool invocation.
//
// Content is expected, but not guaranteed, to be a JSON-encoded value
// when the calling context requires structured data.
type Result struct {
	IsError bool
	Content string
}

// Session is a request-scoped connection to a tool registry.
type Session interface {
	// Initialize performs the protocol handshake.
	Initialize(ctx context.Context) error

	// ListTools returns the registry's tool specs.
	ListTools(ctx context.Context) ([]Spec, error)

	// CallTool invokes a named tool with the given arguments.
	CallTool(ctx context.Context, name string, args map[string]any) (*Result, error)

	// Close releases the session. Must be called on every exit path.
	Close() error
}

// SessionFactory opens a fresh Session per request.
type SessionFactory interface {
	OpenSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to the SessionFactory interface.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

// OpenSession implements SessionFactory.
func (f SessionFactoryFunc) OpenSession(ctx context.Context) (Session, error) {
	return f(ctx)
}
