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

// Package rag implements the retrieval-augmented answer path: a small
// directed graph that lets the model decide whether to retrieve, runs
// one similarity search against the vector store, and generates the
// final answer grounded in the retrieved chunks.
package rag

import (
	"context"
	"fmt"

	"github.com/kadirpekel/poelore/pkg/embedder"
	"github.com/kadirpekel/poelore/pkg/model"
	"github.com/kadirpekel/poelore/pkg/vector"
)

// Searcher returns the chunks most semantically similar to a query.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]model.Chunk, error)
}

// SearchService implements Searcher over an embedder and a vector
// store. Long-lived and safe for concurrent use.
type SearchService struct {
	embedder   embedder.Embedder
	provider   vector.Provider
	collection string
}

// NewSearchService creates a search service bound to one collection.
func NewSearchService(emb embedder.Embedder, provider vector.Provider, collection string) (*SearchService, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("vector provider is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	return &SearchService{
		embedder:   emb,
		provider:   provider,
		collection: collection,
	}, nil
}

// SimilaritySearch embeds the query and returns the k nearest chunks.
func (s *SearchService) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Chunk, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.provider.Search(ctx, s.collection, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	chunks := make([]model.Chunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, model.Chunk{
			Text:     res.Content,
			Metadata: res.Metadata,
		})
	}
	return chunks, nil
}
