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

// Package config loads the YAML application configuration with
// ${VAR:-default} environment expansion.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/poelore/pkg/embedder"
	"github.com/kadirpekel/poelore/pkg/model/gemini"
	"github.com/kadirpekel/poelore/pkg/tool/mcptoolset"
	"github.com/kadirpekel/poelore/pkg/vector"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	LLM      gemini.Config         `yaml:"llm"`
	Embedder embedder.GeminiConfig `yaml:"embedder"`
	Vector   VectorConfig          `yaml:"vector"`
	MCP      mcptoolset.Config     `yaml:"mcp"`
	Ingest   IngestConfig          `yaml:"ingest"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// VectorConfig selects the vector provider and collection.
type VectorConfig struct {
	vector.ProviderConfig `yaml:",inline"`

	// Collection is the vector collection name.
	Collection string `yaml:"collection,omitempty"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	BaseItemsURL string `yaml:"base_items_url,omitempty"`
	ModsURL      string `yaml:"mods_url,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 1337
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.0-flash"
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "poe"
	}
	if c.MCP.URL == "" && c.MCP.Command == "" {
		// Default to the registry this server mounts itself.
		c.MCP.URL = fmt.Sprintf("http://localhost:%d/mcp", c.Server.Port)
	}
	c.Vector.ProviderConfig.SetDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required")
	}
	if c.Embedder.APIKey == "" {
		return fmt.Errorf("embedder api_key is required")
	}
	if err := c.Vector.ProviderConfig.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	return nil
}

// Load reads, expands, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse loads configuration from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	expanded, err := yaml.Marshal(ExpandEnvVarsInData(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to expand config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
