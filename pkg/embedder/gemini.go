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

package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultGeminiEmbedModel = "text-embedding-004"
	defaultGeminiDimension  = 768
)

// GeminiConfig configures the Gemini embedder.
type GeminiConfig struct {
	// APIKey is the Google AI API key.
	APIKey string `yaml:"api_key"`

	// Model is the embedding model name (default: text-embedding-004).
	Model string `yaml:"model,omitempty"`

	// Dimension is the embedding vector dimension (default: 768).
	Dimension int `yaml:"dimension,omitempty"`
}

// GeminiEmbedder implements Embedder using the Gemini embedding API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGemini creates a Gemini-backed embedder.
func NewGemini(cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiEmbedModel
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = defaultGeminiDimension
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Embed converts text to a vector embedding.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts to vector embeddings in one call.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding failed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimension returns the embedding vector dimension.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// Model returns the model name being used.
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// Close releases resources.
func (e *GeminiEmbedder) Close() error {
	return nil
}

// Ensure GeminiEmbedder implements Embedder.
var _ Embedder = (*GeminiEmbedder)(nil)
