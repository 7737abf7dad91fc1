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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Document is one retrievable unit: flattened text, metadata for
// source attribution, and a stable id derived from the item path.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// AttacksPerSecond converts a millisecond attack duration to attacks
// per second, rounded to two decimals. Non-positive durations are
// invalid input, not a division to attempt.
func AttacksPerSecond(durationMS int) (float64, error) {
	if durationMS <= 0 {
		return 0, &ValidationError{
			Field:   "attack_time",
			Value:   durationMS,
			Message: "attack duration must be positive milliseconds",
		}
	}
	return math.Round(1000.0/float64(durationMS)*100) / 100, nil
}

// ItemID derives the stable document id from the item's canonical
// feed path.
func ItemID(item BaseItem) (string, error) {
	if item.Path == "" {
		return "", &ValidationError{
			Field:   "path",
			Value:   item.Path,
			Message: "item path is required for a stable id",
		}
	}
	return item.Path, nil
}

// BuildDocument flattens one item into retrievable text plus metadata.
// Implicit modifier ids are resolved against the mod feed; unknown ids
// are kept as bare ids rather than dropped.
func BuildDocument(item BaseItem, mods map[string]Mod) (Document, error) {
	id, err := ItemID(item)
	if err != nil {
		return Document{}, err
	}

	text, err := flattenText(item, mods)
	if err != nil {
		return Document{}, err
	}

	return Document{
		ID:       id,
		Text:     text,
		Metadata: itemMetadata(item),
	}, nil
}

// flattenText renders the nested item record as explanatory lines the
// embedding model can work with.
func flattenText(item BaseItem, mods map[string]Mod) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Name: %s\n", item.Name)
	fmt.Fprintf(&b, "Type of an item, also known as item class: %s\n", item.ItemClass)
	fmt.Fprintf(&b, "Tags for item: %s\n", strings.Join(item.Tags, ", "))

	if reqs := requirementLines(item.Requirements); reqs != "" {
		fmt.Fprintf(&b, "Requirements:\n%s", reqs)
	}

	fmt.Fprintf(&b, "Minimum character level that item can drop on: %d\n", item.DropLevel)

	if item.Properties.AttackTime != 0 {
		aps, err := AttacksPerSecond(item.Properties.AttackTime)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Attacks per second: %.2f\n", aps)
	}

	if len(item.Implicits) > 0 {
		fmt.Fprintf(&b, "Implicit item modifiers:\n%s", implicitLines(item.Implicits, mods))
	}

	return b.String(), nil
}

// requirementLines renders non-zero requirements, keys sorted for
// stable output.
func requirementLines(requirements map[string]int) string {
	keys := make([]string, 0, len(requirements))
	for key, value := range requirements {
		if value != 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %d\n", key, requirements[key])
	}
	return b.String()
}

// implicitLines resolves implicit mod ids to their description and
// stat ranges.
func implicitLines(implicitIDs []string, mods map[string]Mod) string {
	var b strings.Builder
	for _, id := range implicitIDs {
		mod, ok := mods[id]
		if !ok {
			fmt.Fprintf(&b, "Implicit modifier: %s\n", id)
			continue
		}
		fmt.Fprintf(&b, "Implicit description: %s\n", mod.Text)
		for _, stat := range mod.Stats {
			fmt.Fprintf(&b, "Max and min range for mod: %d - %d\n", stat.Min, stat.Max)
		}
	}
	return b.String()
}

// itemMetadata builds the flat string metadata stored with the chunk.
func itemMetadata(item BaseItem) map[string]string {
	return map[string]string{
		"name":       item.Name,
		"item_class": item.ItemClass,
		"tags":       strings.Join(item.Tags, ", "),
		"drop_level": strconv.Itoa(item.DropLevel),
		"implicits":  strings.Join(item.Implicits, ", "),
		"path":       item.Path,
	}
}
