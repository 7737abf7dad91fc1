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

// Package mcptoolset implements the tool.Session contract against MCP
// servers.
//
// MCP (Model Context Protocol) exposes external tools via a standardized
// protocol. Sessions here are request-scoped: the factory dials a fresh
// connection per OpenSession and the caller closes it when the request
// ends, on success or failure alike.
//
// Transport support:
//   - stdio: subprocess communication
//   - sse: HTTP Server-Sent Events
//   - streamable-http: HTTP with optional streaming
package mcptoolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/poelore/pkg/tool"
)

const (
	protocolVersion = "2024-11-05"
	clientName      = "poelore"
	clientVersion   = "0.1.0"
)

// Config configures the MCP session factory.
type Config struct {
	// Name identifies this registry in logs.
	Name string `yaml:"name,omitempty"`

	// URL is the MCP server URL (for HTTP transports).
	URL string `yaml:"url,omitempty"`

	// Transport selects the MCP transport (sse, streamable-http, stdio).
	Transport string `yaml:"transport,omitempty"`

	// Command for stdio transport.
	Command string `yaml:"command,omitempty"`

	// Args for stdio transport.
	Args []string `yaml:"args,omitempty"`

	// Env for stdio transport.
	Env map[string]string `yaml:"env,omitempty"`
}

// Factory opens request-scoped MCP sessions.
type Factory struct {
	cfg Config
}

// NewFactory creates an MCP session factory.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.URL == "" && cfg.Command == "" {
		return nil, fmt.Errorf("either url or command is required")
	}
	if cfg.Transport == "" {
		if cfg.Command != "" {
			cfg.Transport = "stdio"
		} else {
			cfg.Transport = "streamable-http"
		}
	}
	return &Factory{cfg: cfg}, nil
}

// OpenSession dials the MCP server and returns an uninitialized session.
func (f *Factory) OpenSession(ctx context.Context) (tool.Session, error) {
	mcpClient, err := f.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	return &session{name: f.cfg.Name, client: mcpClient}, nil
}

// dial builds the transport-specific client.
func (f *Factory) dial() (*client.Client, error) {
	switch f.cfg.Transport {
	case "stdio":
		return client.NewStdioMCPClient(f.cfg.Command, convertEnv(f.cfg.Env), f.cfg.Args...)
	case "sse":
		return client.NewSSEMCPClient(f.cfg.URL)
	case "streamable-http":
		return client.NewStreamableHttpClient(f.cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported MCP transport: %q", f.cfg.Transport)
	}
}

// session is one request-scoped MCP connection.
type session struct {
	name   string
	client *client.Client
}

// Initialize performs the MCP handshake.
func (s *session) Initialize(ctx context.Context) error {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	initReq.Params.ProtocolVersion = protocolVersion

	if _, err := s.client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	slog.Debug("MCP session initialized", "registry", s.name)
	return nil
}

// ListTools returns the registry's tool specs.
func (s *session) ListTools(ctx context.Context) ([]tool.Spec, error) {
	listResp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	specs := make([]tool.Spec, 0, len(listResp.Tools))
	for _, mcpTool := range listResp.Tools {
		specs = append(specs, tool.Spec{
			Name:        mcpTool.Name,
			Description: mcpTool.Description,
			InputSchema: convertSchema(mcpTool.InputSchema),
		})
	}

	slog.Debug("Listed MCP tools", "registry", s.name, "tools", len(specs))
	return specs, nil
}

// CallTool invokes a named tool with the given arguments.
func (s *session) CallTool(ctx context.Context, name string, args map[string]any) (*tool.Result, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}

	return &tool.Result{
		IsError: resp.IsError,
		Content: textContent(resp.Content),
	}, nil
}

// Close releases the session.
func (s *session) Close() error {
	return s.client.Close()
}

// textContent concatenates the text parts of an MCP tool result.
func textContent(content []mcp.Content) string {
	var texts []string
	for _, c := range content {
		if textPart, ok := c.(mcp.TextContent); ok {
			texts = append(texts, textPart.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertSchema converts an MCP tool schema to a plain map.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	// Marshal and unmarshal to get a clean map.
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	return result
}

// convertEnv converts a map to a slice of "KEY=VALUE".
func convertEnv(env map[string]string) []string {
	if env == nil {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// Ensure interfaces are implemented.
var (
	_ tool.SessionFactory = (*Factory)(nil)
	_ tool.Session        = (*session)(nil)
)
