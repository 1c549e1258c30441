// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Item is a local experience in the catalog.
type Item struct {
	ItemId    int      `json:"id"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Location  string   `json:"location"`
	PriceTier string   `json:"price_tier"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Rating is the score given by a user to an item. Scores are not range checked.
type Rating struct {
	UserId int     `json:"user_id"`
	ItemId int     `json:"item_id"`
	Score  float64 `json:"score"`
}

// Catalog is an immutable table of items.
type Catalog struct {
	items   []Item
	index   map[int]int
	columns mapset.Set[string]
}

// NewCatalog creates a catalog from items. Columns lists the source columns of the
// catalog; location and price filters are skipped if their column is absent.
func NewCatalog(items []Item, columns ...string) (*Catalog, error) {
	catalog := &Catalog{
		items:   make([]Item, 0, len(items)),
		index:   make(map[int]int, len(items)),
		columns: mapset.NewThreadUnsafeSet(columns...),
	}
	for _, item := range items {
		if _, exist := catalog.index[item.ItemId]; exist {
			return nil, errors.AlreadyExistsf("item %d", item.ItemId)
		}
		catalog.index[item.ItemId] = len(catalog.items)
		catalog.items = append(catalog.items, item)
	}
	return catalog, nil
}

// Items returns all items in load order.
func (c *Catalog) Items() []Item {
	return slices.Clone(c.items)
}

func (c *Catalog) Len() int {
	return len(c.items)
}

// Get returns the item with the id.
func (c *Catalog) Get(itemId int) (Item, bool) {
	if i, exist := c.index[itemId]; exist {
		return c.items[i], true
	}
	return Item{}, false
}

// HasColumn reports whether the source of the catalog has the column.
func (c *Catalog) HasColumn(column string) bool {
	return c.columns.Contains(column)
}

// Categories counts items per category.
func (c *Catalog) Categories() map[string]int {
	return lo.CountValuesBy(c.items, func(item Item) string {
		return item.Category
	})
}
