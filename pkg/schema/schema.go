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

// Package schema converts JSON-Schema-like tool parameter trees into the
// Gemini function-declaration schema type.
//
// Tool servers (MCP) declare their parameters as a recursive
// JSON-Schema-like tree. Gemini wants *genai.Schema. Convert walks the
// tree once, recursing through object properties and array items, and
// maps the type discriminator onto a closed set of variants. Anything it
// does not recognize becomes TypeUnspecified rather than being dropped or
// rejected, so schema evolution on the tool side never silently loses a
// field.
package schema

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Kind is the closed set of schema type discriminators we understand.
type Kind string

const (
	KindString      Kind = "string"
	KindInteger     Kind = "integer"
	KindNumber      Kind = "number"
	KindBoolean     Kind = "boolean"
	KindArray       Kind = "array"
	KindObject      Kind = "object"
	KindUnspecified Kind = "unspecified"
)

// Error reports a malformed tool parameter schema. It is returned before
// any model call is made, so the request fails fast.
type Error struct {
	Message string
	Node    map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invalid tool schema: %s (node: %v)", e.Message, e.Node)
}

// KindOf maps a JSON schema type string to a Kind. Matching is
// case-insensitive so the upper-case names Gemini uses in already
// converted schemas ("STRING", "OBJECT", ...) resolve to the same
// variant; unknown strings map to KindUnspecified.
func KindOf(typeStr string) Kind {
	switch strings.ToLower(typeStr) {
	case "string":
		return KindString
	case "integer":
		return KindInteger
	case "number":
		return KindNumber
	case "boolean":
		return KindBoolean
	case "array":
		return KindArray
	case "object":
		return KindObject
	default:
		return KindUnspecified
	}
}

// geminiType maps a Kind onto the corresponding genai type.
func geminiType(k Kind) genai.Type {
	switch k {
	case KindString:
		return genai.TypeString
	case KindInteger:
		return genai.TypeInteger
	case KindNumber:
		return genai.TypeNumber
	case KindBoolean:
		return genai.TypeBoolean
	case KindArray:
		return genai.TypeArray
	case KindObject:
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// Convert converts a JSON-Schema-like node into a Gemini schema.
//
// A node without a "type" discriminator is rejected with *Error. Object
// properties and array items are converted recursively; property key
// identity is preserved exactly. Sibling fields (description, enum,
// required, format, default) pass through unchanged.
//
// Convert is idempotent: feeding it the map rendering of a converted
// schema produces an equivalent schema, which makes round-trip testing
// possible.
func Convert(node map[string]any) (*genai.Schema, error) {
	if node == nil {
		return nil, &Error{Message: "schema node is nil"}
	}

	typeStr, ok := node["type"].(string)
	if !ok || typeStr == "" {
		return nil, &Error{Message: "missing 'type' field", Node: node}
	}

	kind := KindOf(typeStr)
	out := &genai.Schema{Type: geminiType(kind)}

	if desc, ok := node["description"].(string); ok {
		out.Description = desc
	}
	if format, ok := node["format"].(string); ok {
		out.Format = format
	}
	if def, ok := node["default"]; ok {
		out.Default = def
	}
	if enum, ok := node["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				out.Enum = append(out.Enum, es)
			}
		}
	} else if enum, ok := node["enum"].([]string); ok {
		out.Enum = append(out.Enum, enum...)
	}
	if required, ok := node["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				out.Required = append(out.Required, rs)
			}
		}
	} else if required, ok := node["required"].([]string); ok {
		out.Required = append(out.Required, required...)
	}

	if kind == KindObject {
		if props, ok := node["properties"].(map[string]any); ok {
			out.Properties = make(map[string]*genai.Schema, len(props))
			for name, prop := range props {
				propMap, ok := prop.(map[string]any)
				if !ok {
					return nil, &Error{
						Message: fmt.Sprintf("property %q is not a schema node", name),
						Node:    node,
					}
				}
				converted, err := Convert(propMap)
				if err != nil {
					return nil, err
				}
				out.Properties[name] = converted
			}
		}
	}

	if kind == KindArray {
		if items, ok := node["items"].(map[string]any); ok {
			converted, err := Convert(items)
			if err != nil {
				return nil, err
			}
			out.Items = converted
		}
		// An array without items passes through with an unconstrained
		// item type.
	}

	return out, nil
}
