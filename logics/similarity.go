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
	"github.com/samber/lo"
)

// Cosine computes the cosine similarity between a pair of vectors. It is zero
// if either vector is zero.
func Cosine(a, b []float64) float64 {
	normA, normB := floats.Norm(a), floats.Norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return lo.Clamp(floats.Dot(a, b)/(normA*normB), -1, 1)
}

// Neighbor is a user similar to the target user.
type Neighbor struct {
	UserId     int     `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// Neighbors returns at most k users most similar to a user. Only users with
// positive similarity are returned. Ties are broken by user id.
func (m *Matrix) Neighbors(userId, k int) []Neighbor {
	target, ok := m.Row(userId)
	if !ok {
		return nil
	}
	var neighbors []Neighbor
	for u, otherId := range m.UserIds {
		if otherId == userId {
			continue
		}
		if similarity := Cosine(target, m.values[u]); similarity > 0 {
			neighbors = append(neighbors, Neighbor{UserId: otherId, Similarity: similarity})
		}
	}
	slices.SortFunc(neighbors, func(a, b Neighbor) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.UserId, b.UserId)
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}
