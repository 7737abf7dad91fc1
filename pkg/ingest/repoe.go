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

package ingest

import (
	"context"
	"fmt"

	"github.com/kadirpekel/poelore/internal/httpclient"
)

const (
	// DefaultBaseItemsURL is the RePoE base item feed.
	DefaultBaseItemsURL = "https://repoe-fork.github.io/poe2/base_items.min.json"

	// DefaultModsURL is the RePoE modifier feed.
	DefaultModsURL = "https://repoe-fork.github.io/poe2/mods.min.json"
)

// BaseItem is one entry in the RePoE base item feed. Path is the feed
// key, not a field of the record; Source fills it in.
type BaseItem struct {
	Name         string         `json:"name"`
	ItemClass    string         `json:"item_class"`
	Tags         []string       `json:"tags"`
	Requirements map[string]int `json:"requirements"`
	Properties   ItemProperties `json:"properties"`
	DropLevel    int            `json:"drop_level"`
	Implicits    []string       `json:"implicits"`
	Domain       string         `json:"domain"`
	ReleaseState string         `json:"release_state"`

	Path string `json:"-"`
}

// ItemProperties holds the numeric base properties relevant to text
// flattening. AttackTime is in milliseconds; zero means not a weapon.
type ItemProperties struct {
	AttackTime int `json:"attack_time"`
}

// Mod is one entry in the RePoE modifier feed.
type Mod struct {
	Text  string    `json:"text"`
	Stats []ModStat `json:"stats"`
}

// ModStat is a stat range on a modifier.
type ModStat struct {
	ID  string `json:"id"`
	Min int    `json:"min"`
	Max int    `json:"max"`
}

// Source fetches item and modifier data from the RePoE feeds.
type Source struct {
	client       *httpclient.Client
	baseItemsURL string
	modsURL      string
}

// NewSource creates a RePoE source. Empty URLs fall back to the public
// feeds.
func NewSource(client *httpclient.Client, baseItemsURL, modsURL string) *Source {
	if client == nil {
		client = httpclient.New()
	}
	if baseItemsURL == "" {
		baseItemsURL = DefaultBaseItemsURL
	}
	if modsURL == "" {
		modsURL = DefaultModsURL
	}
	return &Source{
		client:       client,
		baseItemsURL: baseItemsURL,
		modsURL:      modsURL,
	}
}

// FetchItems retrieves the base item feed, keeping only released
// equipment. Each kept item carries its feed key as Path.
func (s *Source) FetchItems(ctx context.Context) ([]BaseItem, error) {
	var feed map[string]BaseItem
	if err := s.client.GetJSON(ctx, s.baseItemsURL, &feed); err != nil {
		return nil, fmt.Errorf("failed to fetch base items: %w", err)
	}

	items := make([]BaseItem, 0, len(feed))
	for path, item := range feed {
		if item.Domain != "item" || item.ReleaseState != "released" {
			continue
		}
		item.Path = path
		items = append(items, item)
	}
	return items, nil
}

// FetchMods retrieves the modifier feed keyed by mod id.
func (s *Source) FetchMods(ctx context.Context) (map[string]Mod, error) {
	var feed map[string]Mod
	if err := s.client.GetJSON(ctx, s.modsURL, &feed); err != nil {
		return nil, fmt.Errorf("failed to fetch mods: %w", err)
	}
	return feed, nil
}
