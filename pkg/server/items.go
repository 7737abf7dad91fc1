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

package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Item is one catalog entry served by the get_items tool.
type Item struct {
	Name   string `json:"name"`
	Damage string `json:"damage"`
	Range  int    `json:"range"`
	Weight int    `json:"weight"`
}

// itemCatalog maps item types to their base items.
// TODO: replace with a lookup against the ingested RePoE data.
var itemCatalog = map[string][]Item{
	"crossbow": {
		{Name: "Heavy Crossbow", Damage: "8-10", Range: 120, Weight: 5},
		{Name: "Light Crossbow", Damage: "6-8", Range: 80, Weight: 3},
	},
	"bow": {
		{Name: "Longbow", Damage: "6-8", Range: 150, Weight: 3},
		{Name: "Shortbow", Damage: "4-6", Range: 80, Weight: 2},
	},
}

// newItemRegistry builds the MCP server exposing the item tools.
func newItemRegistry() *mcpserver.MCPServer {
	registry := mcpserver.NewMCPServer("poe-knowledge", "0.1.0",
		mcpserver.WithToolCapabilities(false),
	)

	getItems := mcp.NewTool("get_items",
		mcp.WithDescription(`Get items of the given type and possible subtypes. Available types are "crossbow" and "bow".`),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("The type of the items to retrieve"),
		),
	)
	registry.AddTool(getItems, handleGetItems)

	return registry
}

// handleGetItems returns the catalog entries for a type as JSON. An
// unknown type yields an empty list, not an error.
func handleGetItems(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	items := itemCatalog[strings.ToLower(itemType)]
	if items == nil {
		items = []Item{}
	}

	payload, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
