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
	"fmt"
	"time"

	"github.com/gorse-io/explorer/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// RecommendRequest is a recommendation request. Empty filters match all items.
type RecommendRequest struct {
	UserId    int
	TopN      int
	Location  string
	PriceTier string
	Filter    string
}

// ScoredItem is a recommended item and its predicted score.
type ScoredItem struct {
	dataset.Item
	Score float64 `json:"score"`
}

// RecommendResult is the outcome of a recommendation. An unknown user or a user
// without similar users gets an empty result, not an error.
type RecommendResult struct {
	Items       []ScoredItem `json:"recommendations"`
	Neighbors   []Neighbor   `json:"neighbors"`
	Explanation string       `json:"explanation"`
}

// Recommender recommends catalog items with user-based collaborative filtering.
type Recommender struct {
	catalog      *dataset.Catalog
	numNeighbors int
	defaultN     int
}

func NewRecommender(catalog *dataset.Catalog, numNeighbors, defaultN int) *Recommender {
	return &Recommender{
		catalog:      catalog,
		numNeighbors: numNeighbors,
		defaultN:     defaultN,
	}
}

// Recommend items to a user from ratings. The only error is an invalid filter.
func (r *Recommender) Recommend(ratings []dataset.Rating, req RecommendRequest) (*RecommendResult, error) {
	start := time.Now()
	defer func() {
		RecommendSeconds.Observe(time.Since(start).Seconds())
	}()

	topN := req.TopN
	if topN <= 0 {
		topN = r.defaultN
	}
	filter, err := NewItemFilter(r.catalog, req.Location, req.PriceTier, req.Filter)
	if err != nil {
		return nil, errors.Trace(err)
	}

	result := rank(ratings, req.UserId, r.numNeighbors)
	if !result.found {
		return &RecommendResult{
			Items:       []ScoredItem{},
			Neighbors:   []Neighbor{},
			Explanation: fmt.Sprintf("user %d not found", req.UserId),
		}, nil
	}
	if len(result.neighbors) == 0 {
		return &RecommendResult{
			Items:       []ScoredItem{},
			Neighbors:   []Neighbor{},
			Explanation: "no similar users found",
		}, nil
	}

	items := make([]ScoredItem, 0, topN)
	for _, score := range result.scores {
		if len(items) >= topN {
			break
		}
		item, ok := r.catalog.Get(score.ItemId)
		if !ok {
			continue
		}
		match, err := filter.Match(item)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if match {
			items = append(items, ScoredItem{Item: item, Score: score.Score})
		}
	}
	neighborIds := lo.Map(result.neighbors, func(n Neighbor, _ int) int { return n.UserId })
	return &RecommendResult{
		Items:       items,
		Neighbors:   result.neighbors,
		Explanation: fmt.Sprintf("recommended because you are similar to users %v", neighborIds),
	}, nil
}
