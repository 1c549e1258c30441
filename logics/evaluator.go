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
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/explorer/base"
	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/base/parallel"
	"github.com/gorse-io/explorer/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// MinHoldoutRatings is the least number of ratings a user needs to be split.
const MinHoldoutRatings = 3

// ErrInsufficientRatings is returned when a user has too few ratings to be split.
var ErrInsufficientRatings = errors.NotValidf("insufficient ratings")

// HoldoutOptions configures holdout splits.
type HoldoutOptions struct {
	MinRatings      int     `json:"min_ratings" validate:"gte=0"`
	HoldoutFraction float64 `json:"holdout_fraction" validate:"gt=0,lte=1"`
	MinTestSize     int     `json:"min_test_size" validate:"gte=1"`
	BaseSeed        int64   `json:"base_seed"`
}

// AccuracyOptions configures accuracy evaluation.
type AccuracyOptions struct {
	HoldoutOptions
	TopK               int     `json:"k_top" validate:"gt=0"`
	NumNeighbors       int     `json:"k_neighbors" validate:"gt=0"`
	RelevanceThreshold float64 `json:"relevance_threshold"`
	NumJobs            int     `json:"-" validate:"gte=0"`
}

// EligibleUser is a user with enough ratings for evaluation.
type EligibleUser struct {
	UserId      int `json:"user_id"`
	RatingCount int `json:"rating_count"`
}

// HoldoutEntry is the holdout split of one user.
type HoldoutEntry struct {
	UserId      int    `json:"user_id"`
	RatingCount int    `json:"rating_count"`
	TrainCount  int    `json:"train_count"`
	TestCount   int    `json:"test_count"`
	TestItems   []int  `json:"test_items"`
	Error       string `json:"error,omitempty"`
}

// HoldoutReport is the holdout split of every eligible user.
type HoldoutReport struct {
	Parameters HoldoutOptions `json:"parameters"`
	Users      []HoldoutEntry `json:"users"`
}

// UserAccuracy is the accuracy of recommendations for one user. Accuracy is
// nil if the user could not be split.
type UserAccuracy struct {
	UserId           int      `json:"user_id"`
	Accuracy         *float64 `json:"accuracy"`
	Hits             int      `json:"hits"`
	TrainCount       int      `json:"train_count"`
	TestCount        int      `json:"test_count"`
	Neighbors        []int    `json:"neighbors"`
	Recommended      []int    `json:"recommended"`
	Relevant         []int    `json:"relevant"`
	RecommendedNames []string `json:"recommended_names"`
	RelevantNames    []string `json:"relevant_names"`
	Error            string   `json:"error,omitempty"`
}

// AccuracyReport is the accuracy of every eligible user. MeanAccuracy is the
// mean over users with an accuracy.
type AccuracyReport struct {
	Parameters   AccuracyOptions `json:"parameters"`
	Users        []UserAccuracy  `json:"users"`
	NumEvaluated int             `json:"num_evaluated"`
	MeanAccuracy *float64        `json:"mean_accuracy"`
}

// Evaluator measures recommendation quality offline on persisted ratings.
type Evaluator struct {
	persisted []dataset.Rating
	catalog   *dataset.Catalog
}

func NewEvaluator(persisted []dataset.Rating, catalog *dataset.Catalog) *Evaluator {
	return &Evaluator{persisted: persisted, catalog: catalog}
}

// EligibleUsers returns users with at least minRatings ratings, sorted by the
// number of ratings in descending order and then by user id.
func (e *Evaluator) EligibleUsers(minRatings int) []EligibleUser {
	counts := lo.CountValuesBy(e.persisted, func(r dataset.Rating) int { return r.UserId })
	users := make([]EligibleUser, 0, len(counts))
	for userId, count := range counts {
		if count >= minRatings {
			users = append(users, EligibleUser{UserId: userId, RatingCount: count})
		}
	}
	slices.SortFunc(users, func(a, b EligibleUser) int {
		if c := cmp.Compare(b.RatingCount, a.RatingCount); c != 0 {
			return c
		}
		return cmp.Compare(a.UserId, b.UserId)
	})
	return users
}

// TestSize returns the size of the test set of a user with n ratings. It never
// exceeds n.
func TestSize(n int, holdoutFraction float64, minTestSize int) int {
	size := max(minTestSize, int(math.Ceil(float64(n)*holdoutFraction)))
	return min(size, n)
}

// HoldoutSplit splits the ratings of a user into train and test. Test ratings
// are sampled with the seed baseSeed + userId. Train ratings are all persisted
// ratings except the test ratings of this user.
func (e *Evaluator) HoldoutSplit(userId int, holdoutFraction float64, minTestSize int, baseSeed int64) (train, test []dataset.Rating, err error) {
	var positions []int
	for i, r := range e.persisted {
		if r.UserId == userId {
			positions = append(positions, i)
		}
	}
	if len(positions) < MinHoldoutRatings {
		return nil, nil, errors.Annotatef(ErrInsufficientRatings, "user %d has %d ratings", userId, len(positions))
	}

	testSize := TestSize(len(positions), holdoutFraction, minTestSize)
	rng := base.NewRandomGenerator(baseSeed + int64(userId))
	sampled := rng.SampleSorted(0, len(positions), testSize)
	testPositions := mapset.NewThreadUnsafeSet[int]()
	for _, i := range sampled {
		testPositions.Add(positions[i])
	}

	train = make([]dataset.Rating, 0, len(e.persisted)-testSize)
	test = make([]dataset.Rating, 0, testSize)
	for i, r := range e.persisted {
		if testPositions.Contains(i) {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	return train, test, nil
}

// TopKForEval returns the top k items for a user from train ratings, without
// catalog lookups or filters.
func TopKForEval(train []dataset.Rating, userId, k, numNeighbors int) ([]int, []Neighbor) {
	result := rank(train, userId, numNeighbors)
	scores := result.scores
	if len(scores) > k {
		scores = scores[:k]
	}
	return lo.Map(scores, func(s Score, _ int) int { return s.ItemId }), result.neighbors
}

// HoldoutReport splits every eligible user.
func (e *Evaluator) HoldoutReport(opts HoldoutOptions) *HoldoutReport {
	users := e.EligibleUsers(opts.MinRatings)
	report := &HoldoutReport{
		Parameters: opts,
		Users:      make([]HoldoutEntry, 0, len(users)),
	}
	for _, user := range users {
		entry := HoldoutEntry{UserId: user.UserId, RatingCount: user.RatingCount, TestItems: []int{}}
		_, test, err := e.HoldoutSplit(user.UserId, opts.HoldoutFraction, opts.MinTestSize, opts.BaseSeed)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.TrainCount = user.RatingCount - len(test)
			entry.TestCount = len(test)
			entry.TestItems = lo.Map(test, func(r dataset.Rating, _ int) int { return r.ItemId })
		}
		report.Users = append(report.Users, entry)
	}
	return report
}

// Accuracy evaluates every eligible user on opts.NumJobs workers. A failure of
// one user is reported in its entry and does not stop the evaluation. Progress
// is called after each user if not nil.
func (e *Evaluator) Accuracy(opts AccuracyOptions, progress func(done, total int)) *AccuracyReport {
	start := time.Now()
	users := e.EligibleUsers(opts.MinRatings)
	report := &AccuracyReport{
		Parameters: opts,
		Users:      make([]UserAccuracy, 0, len(users)),
	}
	// users are evaluated independently and reported in eligible order
	entries := make([]UserAccuracy, len(users))
	done := atomic.NewInt64(0)
	var mu sync.Mutex
	// userAccuracy reports failures inline, so workers never return errors
	lo.Must0(parallel.Parallel(len(users), opts.NumJobs, func(_, jobId int) error {
		entries[jobId] = e.userAccuracy(users[jobId].UserId, opts)
		if progress != nil {
			mu.Lock()
			progress(int(done.Inc()), len(users))
			mu.Unlock()
		}
		return nil
	}))
	var sum float64
	for _, entry := range entries {
		if entry.Accuracy != nil {
			report.NumEvaluated++
			sum += *entry.Accuracy
		}
		report.Users = append(report.Users, entry)
	}
	if report.NumEvaluated > 0 {
		report.MeanAccuracy = lo.ToPtr(sum / float64(report.NumEvaluated))
		EvaluateMeanAccuracy.Set(*report.MeanAccuracy)
	}
	EvaluateSeconds.Set(time.Since(start).Seconds())
	log.Logger().Info("complete accuracy evaluation",
		zap.Int("n_users", len(users)),
		zap.Int("n_evaluated", report.NumEvaluated),
		zap.Duration("duration", time.Since(start)))
	return report
}

func (e *Evaluator) userAccuracy(userId int, opts AccuracyOptions) UserAccuracy {
	entry := UserAccuracy{
		UserId:           userId,
		Neighbors:        []int{},
		Recommended:      []int{},
		Relevant:         []int{},
		RecommendedNames: []string{},
		RelevantNames:    []string{},
	}
	train, test, err := e.HoldoutSplit(userId, opts.HoldoutFraction, opts.MinTestSize, opts.BaseSeed)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.TrainCount = lo.CountBy(train, func(r dataset.Rating) bool { return r.UserId == userId })
	entry.TestCount = len(test)

	// relevant items are test items scored at least the threshold
	relevant := mapset.NewThreadUnsafeSet[int]()
	for _, r := range test {
		if r.Score >= opts.RelevanceThreshold {
			relevant.Add(r.ItemId)
		}
	}
	entry.Relevant = relevant.ToSlice()
	slices.Sort(entry.Relevant)
	entry.RelevantNames = e.names(entry.Relevant)

	recommended, neighbors := TopKForEval(train, userId, opts.TopK, opts.NumNeighbors)
	entry.Neighbors = lo.Map(neighbors, func(n Neighbor, _ int) int { return n.UserId })
	if len(neighbors) == 0 {
		entry.Accuracy = lo.ToPtr(0.0)
		entry.Error = "no similar users found"
		return entry
	}
	entry.Recommended = recommended
	entry.RecommendedNames = e.names(recommended)
	entry.Hits = lo.CountBy(recommended, func(itemId int) bool { return relevant.Contains(itemId) })
	accuracy := 0.0
	if opts.TopK > 0 {
		accuracy = float64(entry.Hits) / float64(opts.TopK)
	}
	entry.Accuracy = &accuracy
	return entry
}

// names returns catalog names of items. Unknown items are named by id.
func (e *Evaluator) names(itemIds []int) []string {
	return lo.Map(itemIds, func(itemId int, _ int) string {
		if e.catalog != nil {
			if item, ok := e.catalog.Get(itemId); ok {
				return item.Name
			}
		}
		return strconv.Itoa(itemId)
	})
}
