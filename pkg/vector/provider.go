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

// Package vector abstracts vector storage behind a similarity-search
// interface.
//
// The rest of the system only ever upserts (text, metadata, id) triples
// and queries by embedding; storage and indexing mechanics belong to the
// provider. Upserts are keyed by id, which is what makes re-ingestion
// idempotent.
package vector

import (
	"context"
	"fmt"
)

// Result is one similarity-search hit.
type Result struct {
	// ID is the document identifier.
	ID string

	// Score is the similarity score (higher is more similar).
	Score float32

	// Content is the stored document text.
	Content string

	// Metadata is the stored document metadata.
	Metadata map[string]string
}

// Provider is the vector storage contract.
//
// Implementations must be safe for concurrent use: providers are
// long-lived and shared across requests.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Upsert adds or replaces a document keyed by id.
	Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]string) error

	// Search finds the topK most similar documents.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// Delete removes a document by id.
	Delete(ctx context.Context, collection, id string) error

	// CreateCollection ensures a collection exists with the given
	// vector dimension.
	CreateCollection(ctx context.Context, collection string, dimension int) error

	// Close releases provider resources.
	Close() error
}

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderChromem uses chromem-go for embedded vector storage.
	// Zero-config, no external services. Best for development and
	// single-node deployments.
	ProviderChromem ProviderType = "chromem"

	// ProviderQdrant uses the Qdrant vector database over gRPC.
	ProviderQdrant ProviderType = "qdrant"
)

// ProviderConfig selects and configures a vector provider.
type ProviderConfig struct {
	// Type identifies which provider to create.
	Type ProviderType `yaml:"type"`

	// Chromem configuration (used when Type == "chromem").
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`

	// Qdrant configuration (used when Type == "qdrant").
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SetDefaults applies default values.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderChromem
	}
	if c.Type == ProviderChromem && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

// Validate checks the configuration.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderChromem:
		return nil
	case ProviderQdrant:
		if c.Qdrant == nil {
			return fmt.Errorf("qdrant configuration is required")
		}
		if c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant host is required")
		}
		return nil
	case "":
		return fmt.Errorf("provider type is required")
	default:
		return fmt.Errorf("unknown provider type: %q", c.Type)
	}
}

// NewProvider creates a vector provider from configuration.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		cfg = &ProviderConfig{}
	}
	cfg.SetDefaults()

	switch cfg.Type {
	case ProviderChromem:
		chromemCfg := ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return NewChromemProvider(chromemCfg)

	case ProviderQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant configuration is required")
		}
		return NewQdrantProvider(*cfg.Qdrant)

	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
}
