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
	"cmp"
	"slices"

	"github.com/gorse-io/explorer/base/floats"
	"github.com/gorse-io/explorer/dataset"
)

// Score is the predicted score of an item.
type Score struct {
	ItemId int     `json:"item_id"`
	Score  float64 `json:"score"`
}

// Predict scores items not rated by a user. The score of an item is the mean
// of the neighbors' values for it, zeros included. Scores are sorted in
// descending order and ties are broken by item id.
func (m *Matrix) Predict(userId int, neighbors []Neighbor) []Score {
	if len(neighbors) == 0 {
		return nil
	}
	sum := make([]float64, m.NumItems())
	for _, neighbor := range neighbors {
		row, ok := m.Row(neighbor.UserId)
		if !ok {
			continue
		}
		floats.Add(sum, row)
	}
	floats.MulConst(sum, 1/float64(len(neighbors)))

	rated := m.Rated(userId)
	scores := make([]Score, 0, m.NumItems())
	for i, itemId := range m.ItemIds {
		if !rated.Contains(itemId) {
			scores = append(scores, Score{ItemId: itemId, Score: sum[i]})
		}
	}
	slices.SortFunc(scores, func(a, b Score) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ItemId, b.ItemId)
	})
	return scores
}

// ranking is the outcome of neighbor selection and scoring for one user.
type ranking struct {
	found     bool
	neighbors []Neighbor
	scores    []Score
}

// rank builds the matrix from ratings, selects neighbors and scores
// candidates. It is shared by recommendation and evaluation.
func rank(ratings []dataset.Rating, userId, numNeighbors int) ranking {
	m := BuildMatrix(ratings)
	if _, ok := m.Row(userId); !ok {
		return ranking{}
	}
	neighbors := m.Neighbors(userId, numNeighbors)
	return ranking{
		found:     true,
		neighbors: neighbors,
		scores:    m.Predict(userId, neighbors),
	}
}
