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

// Package ingest builds the retrieval corpus: it fetches game item
// feeds, flattens nested records into explanatory text, and upserts
// the resulting documents into the vector store.
//
// Ingestion is idempotent. Document ids derive from the item's
// canonical feed path and the store treats inserts keyed by id as
// upserts, so re-running the pipeline never duplicates chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/poelore/pkg/embedder"
	"github.com/kadirpekel/poelore/pkg/vector"
)

// embedBatchSize bounds one embedding request.
const embedBatchSize = 100

// Pipeline ingests RePoE item data into a vector collection.
type Pipeline struct {
	source     *Source
	embedder   embedder.Embedder
	provider   vector.Provider
	collection string
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline wires a source, an embedder, and a vector provider.
func NewPipeline(source *Source, emb embedder.Embedder, provider vector.Provider, collection string, opts ...PipelineOption) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("vector provider is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	p := &Pipeline{
		source:     source,
		embedder:   emb,
		provider:   provider,
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run fetches, flattens, embeds, and upserts all released items.
// Returns the number of documents ingested. Records that fail
// validation are skipped and logged, not fatal for the run.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	items, err := p.source.FetchItems(ctx)
	if err != nil {
		return 0, err
	}
	mods, err := p.source.FetchMods(ctx)
	if err != nil {
		return 0, err
	}
	p.logger.Info("fetched item feeds", "items", len(items), "mods", len(mods))

	docs := make([]Document, 0, len(items))
	skipped := 0
	for _, item := range items {
		doc, err := BuildDocument(item, mods)
		if err != nil {
			var validationErr *ValidationError
			if errors.As(err, &validationErr) {
				p.logger.Warn("skipping invalid item", "item", item.Name, "error", err)
				skipped++
				continue
			}
			return 0, err
		}
		docs = append(docs, doc)
	}

	if err := p.provider.CreateCollection(ctx, p.collection, p.embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}

	ingested := 0
	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return ingested, fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return ingested, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, doc := range batch {
			if err := p.provider.Upsert(ctx, p.collection, doc.ID, vectors[i], doc.Text, doc.Metadata); err != nil {
				return ingested, fmt.Errorf("failed to upsert %q: %w", doc.ID, err)
			}
			ingested++
		}
		p.logger.Debug("ingested batch", "done", ingested, "total", len(docs))
	}

	p.logger.Info("ingestion complete", "ingested", ingested, "skipped", skipped)
	return ingested, nil
}
