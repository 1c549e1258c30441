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

package logics

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gorse-io/explorer/dataset"
	"github.com/juju/errors"
)

// ItemFilter decides whether a candidate item is kept.
type ItemFilter struct {
	catalog   *dataset.Catalog
	location  string
	priceTier string
	program   *vm.Program
}

// NewItemFilter creates a filter. Location is matched as a case-insensitive
// substring and price tier as a case-insensitive exact value. Either is
// skipped if unset or if the catalog has no such column. The expression is
// evaluated with the item bound to "item" and must return a boolean.
func NewItemFilter(catalog *dataset.Catalog, location, priceTier, expression string) (*ItemFilter, error) {
	f := &ItemFilter{catalog: catalog}
	if location != "" && catalog.HasColumn(dataset.ColumnLocation) {
		f.location = strings.ToLower(location)
	}
	if priceTier != "" && catalog.HasColumn(dataset.ColumnPriceEstimate) {
		f.priceTier = priceTier
	}
	if strings.TrimSpace(expression) != "" {
		program, err := expr.Compile(expression, expr.Env(map[string]any{
			"item": dataset.Item{},
		}), expr.AsBool())
		if err != nil {
			return nil, errors.NewNotValid(err, "invalid filter expression")
		}
		f.program = program
	}
	return f, nil
}

// Match returns true if the item passes the filter.
func (f *ItemFilter) Match(item dataset.Item) (bool, error) {
	if f.location != "" && !strings.Contains(strings.ToLower(item.Location), f.location) {
		return false, nil
	}
	if f.priceTier != "" && !strings.EqualFold(item.PriceTier, f.priceTier) {
		return false, nil
	}
	if f.program != nil {
		result, err := expr.Run(f.program, map[string]any{
			"item": item,
		})
		if err != nil {
			return false, errors.Annotatef(err, "evaluate filter on item %d", item.ItemId)
		}
		return result.(bool), nil
	}
	return true, nil
}
