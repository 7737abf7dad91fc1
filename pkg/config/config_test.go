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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/poelore/pkg/vector"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
llm:
  api_key: test-key
embedder:
  api_key: test-key
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1337, cfg.Server.Port)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "poe", cfg.Vector.Collection)
	assert.Equal(t, vector.ProviderChromem, cfg.Vector.Type)
	assert.Equal(t, "http://localhost:1337/mcp", cfg.MCP.URL)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("POELORE_TEST_KEY", "secret")

	cfg, err := Parse([]byte(`
server:
  port: ${POELORE_TEST_PORT:-8080}
llm:
  api_key: ${POELORE_TEST_KEY}
embedder:
  api_key: ${POELORE_TEST_KEY}
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port, "default survives as an int")
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing llm key", "embedder:\n  api_key: x\n"},
		{"missing embedder key", "llm:\n  api_key: x\n"},
		{"qdrant without host", `
llm:
  api_key: x
embedder:
  api_key: x
vector:
  type: qdrant
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("{not yaml"))
	assert.Error(t, err)
}
