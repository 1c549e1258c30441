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

	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/config"
	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/storage/ratings"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// RatingList summarizes the rating store.
type RatingList struct {
	PersistedCount   int              `json:"persisted_count"`
	SimulatedRatings []dataset.Rating `json:"simulated_ratings"`
}

// EligibleUserList is the list of users eligible for evaluation.
type EligibleUserList struct {
	MinRatings int            `json:"min_ratings"`
	Total      int            `json:"total"`
	Users      []EligibleUser `json:"users"`
}

// Engine serves recommendations and evaluations over a catalog and a rating
// store. Every call reads the latest ratings.
type Engine struct {
	catalog     *dataset.Catalog
	store       *ratings.Store
	recommender *Recommender
	evaluator   *Evaluator
	evaluation  config.EvaluationConfig
}

func NewEngine(cfg *config.Config, catalog *dataset.Catalog, store *ratings.Store) *Engine {
	return &Engine{
		catalog:     catalog,
		store:       store,
		recommender: NewRecommender(catalog, cfg.Recommend.NumNeighbors, cfg.Recommend.DefaultN),
		evaluator:   NewEvaluator(store.Persisted(), catalog),
		evaluation:  cfg.Evaluation,
	}
}

// DefaultHoldoutOptions returns holdout options from the configuration.
func (e *Engine) DefaultHoldoutOptions() HoldoutOptions {
	return HoldoutOptions{
		MinRatings:      e.evaluation.MinRatings,
		HoldoutFraction: e.evaluation.HoldoutFraction,
		MinTestSize:     e.evaluation.MinTestSize,
		BaseSeed:        e.evaluation.BaseSeed,
	}
}

// DefaultAccuracyOptions returns accuracy options from the configuration.
func (e *Engine) DefaultAccuracyOptions() AccuracyOptions {
	return AccuracyOptions{
		HoldoutOptions:     e.DefaultHoldoutOptions(),
		TopK:               e.evaluation.TopK,
		NumNeighbors:       e.evaluation.NumNeighbors,
		RelevanceThreshold: e.evaluation.RelevanceThreshold,
		NumJobs:            e.evaluation.NumJobs,
	}
}

// SubmitRating appends a simulated rating and returns an acknowledgement.
func (e *Engine) SubmitRating(userId, itemId int, score float64) string {
	e.store.Submit(dataset.Rating{UserId: userId, ItemId: itemId, Score: score})
	log.Logger().Debug("submit rating",
		zap.Int("user_id", userId), zap.Int("item_id", itemId), zap.Float64("score", score))
	return fmt.Sprintf("rating of user %d for item %d added", userId, itemId)
}

// Recommend items to a user over persisted and simulated ratings.
func (e *Engine) Recommend(req RecommendRequest) (*RecommendResult, error) {
	result, err := e.recommender.Recommend(e.store.EffectiveRatings(), req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return result, nil
}

// ListRatings returns the number of persisted ratings and all simulated ratings.
func (e *Engine) ListRatings() RatingList {
	simulated := e.store.Simulated()
	if simulated == nil {
		simulated = []dataset.Rating{}
	}
	return RatingList{
		PersistedCount:   e.store.CountPersisted(),
		SimulatedRatings: simulated,
	}
}

// EligibleUsers returns users with at least minRatings persisted ratings.
func (e *Engine) EligibleUsers(minRatings int) EligibleUserList {
	users := e.evaluator.EligibleUsers(minRatings)
	return EligibleUserList{
		MinRatings: minRatings,
		Total:      len(users),
		Users:      users,
	}
}

// HoldoutReport splits every eligible user.
func (e *Engine) HoldoutReport(opts HoldoutOptions) *HoldoutReport {
	return e.evaluator.HoldoutReport(opts)
}

// AccuracyReport evaluates every eligible user.
func (e *Engine) AccuracyReport(opts AccuracyOptions, progress func(done, total int)) *AccuracyReport {
	return e.evaluator.Accuracy(opts, progress)
}

// CategoriesHistogram returns the number of items per category.
func (e *Engine) CategoriesHistogram() map[string]int {
	return e.catalog.Categories()
}

// Items returns all items in the catalog.
func (e *Engine) Items() []dataset.Item {
	return e.catalog.Items()
}

// Item returns an item by id.
func (e *Engine) Item(itemId int) (dataset.Item, error) {
	item, ok := e.catalog.Get(itemId)
	if !ok {
		return dataset.Item{}, errors.NotFoundf("item %d", itemId)
	}
	return item, nil
}
