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

// Package gemini implements the model.LLM interface for Google Gemini
// models using the official google.golang.org/genai SDK.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/kadirpekel/poelore/pkg/model"
)

// Config contains configuration for the Gemini model.
type Config struct {
	// APIKey is the Google AI API key.
	APIKey string `yaml:"api_key"`

	// Model is the model name (e.g., "gemini-2.0-flash").
	Model string `yaml:"model,omitempty"`

	// MaxTokens limits the response length.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Temperature controls randomness (0-2).
	Temperature float64 `yaml:"temperature,omitempty"`
}

// geminiModel implements model.LLM for Gemini.
type geminiModel struct {
	client *genai.Client
	name   string
	config Config
}

// New creates a new Gemini model instance.
func New(cfg Config) (model.LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	// Constructors shouldn't require context.
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiModel{
		client: client,
		name:   cfg.Model,
		config: cfg,
	}, nil
}

// Name returns the model identifier.
func (m *geminiModel) Name() string {
	return m.name
}

// Generate produces one response for the given request.
func (m *geminiModel) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	contents := m.buildContents(req.Messages)
	config := m.buildConfig(req)

	genResp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini generation failed: %w", err)
	}

	return parseResponse(genResp)
}

// Close releases resources.
func (m *geminiModel) Close() error {
	return nil
}

// buildContents converts the conversation log to Gemini contents.
func (m *geminiModel) buildContents(messages []model.Message) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		content := messageToContent(msg)
		if content != nil {
			contents = append(contents, content)
		}
	}

	return contents
}

// messageToContent converts one message to genai.Content.
func messageToContent(msg model.Message) *genai.Content {
	var parts []*genai.Part

	switch msg.Role {
	case model.RoleTool:
		// Tool responses travel as functionResponse parts. Gemini wants
		// a map payload; the content is already a JSON-decoded value
		// re-encoded as text by the caller, so wrap it.
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				Name: msg.ToolName,
				Response: map[string]any{
					"content": msg.Content,
				},
			},
		})

	default:
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					Name: tc.Name,
					Args: tc.Args,
				},
			})
		}
	}

	if len(parts) == 0 {
		return nil
	}

	role := "user"
	if msg.Role == model.RoleAssistant {
		role = "model"
	}

	return &genai.Content{Role: role, Parts: parts}
}

// buildConfig creates the Gemini generation config.
func (m *geminiModel) buildConfig(req *model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}

	if m.config.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(m.config.Temperature))
	}
	if m.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(m.config.MaxTokens)
	}

	if len(req.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return config
}

// parseResponse converts a Gemini response to a model.Response.
func parseResponse(genResp *genai.GenerateContentResponse) (*model.Response, error) {
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	candidate := genResp.Candidates[0]
	resp := &model.Response{}

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				resp.Text += part.Text
			}
			if part.FunctionCall != nil {
				resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
			}
		}
	}

	if genResp.UsageMetadata != nil {
		resp.Usage = &model.Usage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	return resp, nil
}

// Ensure geminiModel implements model.LLM.
var _ model.LLM = (*geminiModel)(nil)
