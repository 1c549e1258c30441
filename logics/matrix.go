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
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/explorer/dataset"
	"github.com/samber/lo"
)

// Matrix is a dense user-item matrix. Users and items are sorted by id.
// Unobserved cells are zero, so "never rated" and "rated zero" are the same
// value. Ratings of the same user and item are averaged.
type Matrix struct {
	UserIds []int
	ItemIds []int

	userIndex map[int]int
	values    [][]float64
	rated     []mapset.Set[int]
}

// BuildMatrix builds a user-item matrix from ratings.
func BuildMatrix(ratings []dataset.Rating) *Matrix {
	m := &Matrix{
		UserIds: lo.Uniq(lo.Map(ratings, func(r dataset.Rating, _ int) int { return r.UserId })),
		ItemIds: lo.Uniq(lo.Map(ratings, func(r dataset.Rating, _ int) int { return r.ItemId })),
	}
	slices.Sort(m.UserIds)
	slices.Sort(m.ItemIds)
	m.userIndex = make(map[int]int, len(m.UserIds))
	for i, userId := range m.UserIds {
		m.userIndex[userId] = i
	}
	itemIndex := make(map[int]int, len(m.ItemIds))
	for i, itemId := range m.ItemIds {
		itemIndex[itemId] = i
	}

	// sum and count ratings of each cell
	m.values = make([][]float64, len(m.UserIds))
	m.rated = make([]mapset.Set[int], len(m.UserIds))
	counts := make([][]int, len(m.UserIds))
	for i := range m.UserIds {
		m.values[i] = make([]float64, len(m.ItemIds))
		m.rated[i] = mapset.NewThreadUnsafeSet[int]()
		counts[i] = make([]int, len(m.ItemIds))
	}
	for _, r := range ratings {
		u, i := m.userIndex[r.UserId], itemIndex[r.ItemId]
		m.values[u][i] += r.Score
		counts[u][i]++
		m.rated[u].Add(r.ItemId)
	}
	for u := range m.values {
		for i, n := range counts[u] {
			if n > 1 {
				m.values[u][i] /= float64(n)
			}
		}
	}
	return m
}

// NumUsers returns the number of users.
func (m *Matrix) NumUsers() int {
	return len(m.UserIds)
}

// NumItems returns the number of items.
func (m *Matrix) NumItems() int {
	return len(m.ItemIds)
}

// Row returns the vector of a user. The vector must not be modified.
func (m *Matrix) Row(userId int) ([]float64, bool) {
	u, ok := m.userIndex[userId]
	if !ok {
		return nil, false
	}
	return m.values[u], true
}

// Get returns the value of a cell.
func (m *Matrix) Get(userId, itemId int) float64 {
	row, ok := m.Row(userId)
	if !ok {
		return 0
	}
	if i, found := slices.BinarySearch(m.ItemIds, itemId); found {
		return row[i]
	}
	return 0
}

// Rated returns items rated by a user, including items rated zero.
func (m *Matrix) Rated(userId int) mapset.Set[int] {
	u, ok := m.userIndex[userId]
	if !ok {
		return mapset.NewThreadUnsafeSet[int]()
	}
	return m.rated[u]
}
