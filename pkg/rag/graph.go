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

package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/poelore/pkg/model"
	"github.com/kadirpekel/poelore/pkg/schema"
)

const (
	// retrieveToolName is the single tool the decide node binds.
	retrieveToolName = "retrieve_items"

	// retrieveTopK is the chunk count per retrieval round-trip.
	retrieveTopK = 15
)

const generatePersona = `You are a helpful Path of Exile 2 assistant. Only answer questions about Path of Exile 2 items and mechanics; politely decline anything else. Provide explanations with your answers. Assume you are talking to a new player and adapt the depth of your explanations accordingly, unless the player tells you otherwise.

Use the following item documentation to ground your answer:

`

// nodeID names a node in the retrieval graph. nodeEnd terminates.
type nodeID string

const (
	nodeDecide   nodeID = "decide"
	nodeRetrieve nodeID = "retrieve"
	nodeGenerate nodeID = "generate"
	nodeEnd      nodeID = "end"
)

// nodeFunc processes the accumulated message sequence and names the
// next node. Nodes append to the sequence, never mutate prior entries.
type nodeFunc func(ctx context.Context, messages []model.Message) ([]model.Message, nodeID, error)

// Graph is the retrieval graph: decide → (end | retrieve → generate →
// end). At most one retrieval round-trip and one post-retrieval
// generation per run; there is no edge back to decide.
//
// Safe for concurrent use: each Run operates on its own message
// sequence.
type Graph struct {
	llm      model.LLM
	searcher Searcher
	tool     model.Declaration
	nodes    map[nodeID]nodeFunc
	logger   *slog.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithGraphLogger sets the logger.
func WithGraphLogger(logger *slog.Logger) GraphOption {
	return func(g *Graph) {
		g.logger = logger
	}
}

// NewGraph wires the three nodes around a model client and a searcher.
func NewGraph(llm model.LLM, searcher Searcher, opts ...GraphOption) (*Graph, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	params, err := schema.Convert(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural-language search query over the item documentation",
			},
		},
		"required": []any{"query"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build retrieval tool schema: %w", err)
	}

	g := &Graph{
		llm:      llm,
		searcher: searcher,
		tool: model.Declaration{
			Name:        retrieveToolName,
			Description: "Search the Path of Exile 2 item documentation for relevant passages",
			Parameters:  params,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.nodes = map[nodeID]nodeFunc{
		nodeDecide:   g.decide,
		nodeRetrieve: g.retrieve,
		nodeGenerate: g.generate,
	}
	return g, nil
}

// Run evaluates the graph against a fresh copy of the caller's
// messages and returns the extended sequence; the final answer is the
// content of the last assistant message. No state is retained between
// runs.
func (g *Graph) Run(ctx context.Context, messages []model.Message) ([]model.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	seq := make([]model.Message, len(messages))
	copy(seq, messages)

	current := nodeDecide
	for current != nodeEnd {
		node, ok := g.nodes[current]
		if !ok {
			return nil, fmt.Errorf("unknown graph node: %q", current)
		}

		var err error
		var next nodeID
		seq, next, err = node(ctx, seq)
		if err != nil {
			return nil, fmt.Errorf("node %q failed: %w", current, err)
		}

		g.logger.Debug("graph transition", "from", string(current), "to", string(next))
		current = next
	}
	return seq, nil
}

// decide invokes the model with the retrieval tool bound. The response
// is appended unconditionally; routing terminates when it carries no
// tool-call request.
func (g *Graph) decide(ctx context.Context, messages []model.Message) ([]model.Message, nodeID, error) {
	resp, err := g.llm.Generate(ctx, &model.Request{
		Messages: messages,
		Tools:    []model.Declaration{g.tool},
	})
	if err != nil {
		return nil, nodeEnd, fmt.Errorf("model call failed: %w", err)
	}

	messages = append(messages, model.NewAssistantMessage(resp.Text, resp.ToolCalls...))

	if !resp.HasToolCalls() {
		return messages, nodeEnd, nil
	}
	return messages, nodeRetrieve, nil
}

// retrieve executes the similarity search requested by the preceding
// decide turn and appends a tool message carrying the serialized
// chunks. Always proceeds to generate.
func (g *Graph) retrieve(ctx context.Context, messages []model.Message) ([]model.Message, nodeID, error) {
	call, err := pendingRetrieval(messages)
	if err != nil {
		return nil, nodeEnd, err
	}

	query, _ := call.Args["query"].(string)
	if query == "" {
		return nil, nodeEnd, fmt.Errorf("retrieval call carries no query")
	}

	chunks, err := g.searcher.SimilaritySearch(ctx, query, retrieveTopK)
	if err != nil {
		return nil, nodeEnd, err
	}
	g.logger.Debug("retrieved chunks", "query", query, "count", len(chunks))

	toolMsg := model.NewToolMessage(call.Name, SerializeChunks(chunks))
	toolMsg.Chunks = chunks
	messages = append(messages, toolMsg)

	return messages, nodeGenerate, nil
}

// generate builds the final prompt from the two windowing passes and
// invokes the model once more, without tools. Terminates the graph.
func (g *Graph) generate(ctx context.Context, messages []model.Message) ([]model.Message, nodeID, error) {
	var docs string
	window := TrailingToolWindow(messages)
	for i, msg := range window {
		if i > 0 {
			docs += "\n\n"
		}
		docs += msg.Content
	}

	conversation := FilterConversation(messages)

	resp, err := g.llm.Generate(ctx, &model.Request{
		Messages:          conversation,
		SystemInstruction: generatePersona + docs,
	})
	if err != nil {
		return nil, nodeEnd, fmt.Errorf("model call failed: %w", err)
	}
	if !resp.HasText() {
		return nil, nodeEnd, fmt.Errorf("model returned no text for grounded generation")
	}

	messages = append(messages, model.NewAssistantMessage(resp.Text))
	return messages, nodeEnd, nil
}

// pendingRetrieval finds the tool call the last assistant turn made.
func pendingRetrieval(messages []model.Message) (model.ToolCall, error) {
	last := messages[len(messages)-1]
	if last.Role != model.RoleAssistant || !last.HasToolCalls() {
		return model.ToolCall{}, fmt.Errorf("no pending retrieval request")
	}
	return last.ToolCalls[0], nil
}
