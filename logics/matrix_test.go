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
	"testing"

	"github.com/gorse-io/explorer/dataset"
	"github.com/stretchr/testify/assert"
)

func TestBuildMatrix(t *testing.T) {
	m := BuildMatrix([]dataset.Rating{
		{UserId: 3, ItemId: 20, Score: 4},
		{UserId: 1, ItemId: 10, Score: 5},
		{UserId: 1, ItemId: 30, Score: 0},
		{UserId: 2, ItemId: 20, Score: 1},
	})
	assert.Equal(t, []int{1, 2, 3}, m.UserIds)
	assert.Equal(t, []int{10, 20, 30}, m.ItemIds)
	assert.Equal(t, 3, m.NumUsers())
	assert.Equal(t, 3, m.NumItems())

	row, ok := m.Row(1)
	assert.True(t, ok)
	assert.Equal(t, []float64{5, 0, 0}, row)
	row, ok = m.Row(3)
	assert.True(t, ok)
	assert.Equal(t, []float64{0, 4, 0}, row)
	_, ok = m.Row(4)
	assert.False(t, ok)

	assert.Equal(t, 1.0, m.Get(2, 20))
	assert.Zero(t, m.Get(2, 10))
	assert.Zero(t, m.Get(2, 40))
	assert.Zero(t, m.Get(4, 10))

	// an item rated zero is still rated
	assert.ElementsMatch(t, []int{10, 30}, m.Rated(1).ToSlice())
	assert.Zero(t, m.Rated(4).Cardinality())
}

func TestBuildMatrixDuplicates(t *testing.T) {
	m := BuildMatrix([]dataset.Rating{
		{UserId: 1, ItemId: 10, Score: 5},
		{UserId: 1, ItemId: 20, Score: 3},
		{UserId: 1, ItemId: 10, Score: 2},
		{UserId: 1, ItemId: 10, Score: 2},
	})
	assert.Equal(t, 3.0, m.Get(1, 10))
	assert.Equal(t, 3.0, m.Get(1, 20))
}

func TestBuildMatrixEmpty(t *testing.T) {
	m := BuildMatrix(nil)
	assert.Zero(t, m.NumUsers())
	assert.Zero(t, m.NumItems())
	assert.Empty(t, m.Neighbors(1, 3))
	assert.Empty(t, m.Predict(1, nil))
}
