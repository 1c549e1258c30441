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
	"math"
	"testing"

	"github.com/gorse-io/explorer/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestEligibleUsers(t *testing.T) {
	evaluator := NewEvaluator([]dataset.Rating{
		{UserId: 3, ItemId: 1, Score: 1},
		{UserId: 3, ItemId: 2, Score: 1},
		{UserId: 3, ItemId: 3, Score: 1},
		{UserId: 1, ItemId: 1, Score: 1},
		{UserId: 1, ItemId: 2, Score: 1},
		{UserId: 1, ItemId: 3, Score: 1},
		{UserId: 2, ItemId: 1, Score: 1},
		{UserId: 2, ItemId: 2, Score: 1},
		{UserId: 2, ItemId: 3, Score: 1},
		{UserId: 2, ItemId: 4, Score: 1},
		{UserId: 4, ItemId: 1, Score: 1},
	}, nil)
	assert.Equal(t, []EligibleUser{
		{UserId: 2, RatingCount: 4},
		{UserId: 1, RatingCount: 3},
		{UserId: 3, RatingCount: 3},
	}, evaluator.EligibleUsers(3))
	assert.Equal(t, []EligibleUser{{UserId: 2, RatingCount: 4}}, evaluator.EligibleUsers(4))
	assert.Empty(t, evaluator.EligibleUsers(5))
	assert.Len(t, evaluator.EligibleUsers(0), 4)
}

func TestTestSize(t *testing.T) {
	assert.Equal(t, 4, TestSize(10, 0.4, 1))
	assert.Equal(t, 2, TestSize(3, 0.4, 1))
	assert.Equal(t, 2, TestSize(5, 0.4, 1))
	assert.Equal(t, 6, TestSize(10, 0.4, 6))
	assert.Equal(t, 10, TestSize(10, 0.4, 20))
	assert.Equal(t, 3, TestSize(3, 1, 1))
}

func userRatings(userId, n int) []dataset.Rating {
	ratings := make([]dataset.Rating, n)
	for i := range ratings {
		ratings[i] = dataset.Rating{UserId: userId, ItemId: i + 1, Score: float64(i%5 + 1)}
	}
	return ratings
}

func TestHoldoutSplit(t *testing.T) {
	persisted := append(userRatings(1, 10), userRatings(2, 7)...)
	persisted = append(persisted, userRatings(3, 2)...)
	evaluator := NewEvaluator(persisted, nil)

	train, test, err := evaluator.HoldoutSplit(1, 0.4, 1, 42)
	assert.NoError(t, err)
	assert.Len(t, test, 4)
	assert.Len(t, train, len(persisted)-4)
	for _, r := range test {
		assert.Equal(t, 1, r.UserId)
		assert.NotContains(t, train, r)
	}
	// other users keep their full history
	assert.Equal(t, 7, lo.CountBy(train, func(r dataset.Rating) bool { return r.UserId == 2 }))
	assert.Equal(t, 2, lo.CountBy(train, func(r dataset.Rating) bool { return r.UserId == 3 }))

	// deterministic
	train2, test2, err := evaluator.HoldoutSplit(1, 0.4, 1, 42)
	assert.NoError(t, err)
	assert.Equal(t, test, test2)
	assert.Equal(t, train, train2)

	// test size
	for _, minTestSize := range []int{1, 3, 5, 7} {
		_, test, err = evaluator.HoldoutSplit(2, 0.4, minTestSize, 42)
		assert.NoError(t, err)
		assert.Len(t, test, max(minTestSize, int(math.Ceil(7*0.4))))
	}
}

func TestHoldoutSplitInsufficientRatings(t *testing.T) {
	persisted := append(userRatings(1, 2), userRatings(2, 5)...)
	evaluator := NewEvaluator(persisted, nil)
	train, test, err := evaluator.HoldoutSplit(1, 0.4, 1, 42)
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.ErrorContains(t, err, "insufficient ratings")
	assert.Nil(t, train)
	assert.Nil(t, test)

	_, _, err = evaluator.HoldoutSplit(3, 0.4, 1, 42)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestHoldoutReport(t *testing.T) {
	persisted := append(userRatings(1, 10), userRatings(2, 5)...)
	persisted = append(persisted, userRatings(3, 2)...)
	evaluator := NewEvaluator(persisted, nil)
	opts := HoldoutOptions{MinRatings: 2, HoldoutFraction: 0.4, MinTestSize: 1, BaseSeed: 42}
	report := evaluator.HoldoutReport(opts)
	assert.Equal(t, opts, report.Parameters)
	assert.Len(t, report.Users, 3)
	assert.Equal(t, HoldoutEntry{UserId: 1, RatingCount: 10, TrainCount: 6, TestCount: 4, TestItems: report.Users[0].TestItems}, report.Users[0])
	assert.Len(t, report.Users[0].TestItems, 4)
	assert.Equal(t, 3, report.Users[1].TrainCount)
	assert.Equal(t, 2, report.Users[1].TestCount)
	assert.Equal(t, 3, report.Users[2].UserId)
	assert.NotEmpty(t, report.Users[2].Error)
	assert.Zero(t, report.Users[2].TestCount)
}

func TestAccuracyRelevance(t *testing.T) {
	catalog := newTestCatalog(t, allColumns...)
	evaluator := NewEvaluator([]dataset.Rating{
		{UserId: 1, ItemId: 1, Score: 2.0},
		{UserId: 1, ItemId: 2, Score: 3.0},
		{UserId: 1, ItemId: 3, Score: 4.0},
	}, catalog)
	report := evaluator.Accuracy(AccuracyOptions{
		HoldoutOptions:     HoldoutOptions{MinRatings: 3, HoldoutFraction: 1, MinTestSize: 1, BaseSeed: 42},
		TopK:               5,
		NumNeighbors:       3,
		RelevanceThreshold: 3.0,
	}, nil)
	assert.Len(t, report.Users, 1)
	entry := report.Users[0]
	assert.Equal(t, 3, entry.TestCount)
	assert.Equal(t, []int{2, 3}, entry.Relevant)
	assert.Equal(t, []string{"Trilha da Serra", "Feira Gastronômica"}, entry.RelevantNames)
	// no other users to learn from
	assert.Equal(t, "no similar users found", entry.Error)
	assert.Equal(t, lo.ToPtr(0.0), entry.Accuracy)
	assert.Zero(t, entry.Hits)
}

func TestAccuracy(t *testing.T) {
	catalog := newTestCatalog(t, allColumns...)
	persisted := []dataset.Rating{
		{UserId: 1, ItemId: 1, Score: 5},
		{UserId: 1, ItemId: 2, Score: 5},
		{UserId: 1, ItemId: 3, Score: 5},
		{UserId: 9, ItemId: 1, Score: 5},
	}
	for _, userId := range []int{2, 3} {
		persisted = append(persisted,
			dataset.Rating{UserId: userId, ItemId: 1, Score: 5},
			dataset.Rating{UserId: userId, ItemId: 2, Score: 5},
			dataset.Rating{UserId: userId, ItemId: 3, Score: 5},
			dataset.Rating{UserId: userId, ItemId: 4, Score: 1},
		)
	}
	evaluator := NewEvaluator(persisted, catalog)
	opts := AccuracyOptions{
		HoldoutOptions:     HoldoutOptions{MinRatings: 1, HoldoutFraction: 0.3, MinTestSize: 1, BaseSeed: 42},
		TopK:               1,
		NumNeighbors:       3,
		RelevanceThreshold: 3.0,
	}
	var progress []int
	report := evaluator.Accuracy(opts, func(done, total int) {
		assert.Equal(t, 4, total)
		progress = append(progress, done)
	})
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.Equal(t, opts, report.Parameters)
	assert.Equal(t, []int{2, 3, 1, 9}, lo.Map(report.Users, func(u UserAccuracy, _ int) int { return u.UserId }))

	// the held out item of user 1 is ranked first
	entry := report.Users[2]
	assert.Empty(t, entry.Error)
	assert.Equal(t, 1, entry.TestCount)
	assert.Equal(t, 2, entry.TrainCount)
	assert.Equal(t, entry.Relevant, entry.Recommended)
	assert.Equal(t, 1, entry.Hits)
	assert.Equal(t, lo.ToPtr(1.0), entry.Accuracy)
	assert.Len(t, entry.RecommendedNames, 1)

	// user 9 cannot be split
	entry = report.Users[3]
	assert.Nil(t, entry.Accuracy)
	assert.ErrorContains(t, errors.New(entry.Error), "insufficient ratings")

	assert.Equal(t, 3, report.NumEvaluated)
	if assert.NotNil(t, report.MeanAccuracy) {
		assert.GreaterOrEqual(t, *report.MeanAccuracy, 1.0/3)
		assert.LessOrEqual(t, *report.MeanAccuracy, 1.0)
	}

	// accuracy is divided by k
	opts.TopK = 5
	report = evaluator.Accuracy(opts, nil)
	entry = report.Users[2]
	assert.Equal(t, 1, entry.Hits)
	assert.Len(t, entry.Recommended, 2)
	assert.InDelta(t, 0.2, *entry.Accuracy, 1e-12)
}

func TestAccuracyBounds(t *testing.T) {
	evaluator := NewEvaluator(randomRatings(7, 12, 6), newTestCatalog(t, allColumns...))
	for _, k := range []int{1, 3, 5} {
		report := evaluator.Accuracy(AccuracyOptions{
			HoldoutOptions:     HoldoutOptions{MinRatings: 3, HoldoutFraction: 0.4, MinTestSize: 1, BaseSeed: 42},
			TopK:               k,
			NumNeighbors:       3,
			RelevanceThreshold: 3.0,
		}, nil)
		for _, entry := range report.Users {
			if entry.Accuracy == nil {
				continue
			}
			assert.LessOrEqual(t, entry.Hits, min(k, len(entry.Relevant)))
			assert.LessOrEqual(t, len(entry.Recommended), k)
			assert.InDelta(t, float64(entry.Hits)/float64(k), *entry.Accuracy, 1e-12)
			assert.LessOrEqual(t, *entry.Accuracy, 1.0)
		}
	}
}

func TestAccuracyParallel(t *testing.T) {
	evaluator := NewEvaluator(randomRatings(11, 20, 6), newTestCatalog(t, allColumns...))
	opts := AccuracyOptions{
		HoldoutOptions:     HoldoutOptions{MinRatings: 3, HoldoutFraction: 0.4, MinTestSize: 1, BaseSeed: 7},
		TopK:               3,
		NumNeighbors:       3,
		RelevanceThreshold: 3.0,
		NumJobs:            1,
	}
	expected := evaluator.Accuracy(opts, nil)
	opts.NumJobs = 4
	calls := 0
	actual := evaluator.Accuracy(opts, func(done, total int) {
		calls++
		assert.LessOrEqual(t, done, total)
	})
	assert.Equal(t, len(actual.Users), calls)
	assert.Equal(t, expected.Users, actual.Users)
	assert.Equal(t, expected.NumEvaluated, actual.NumEvaluated)
	assert.Equal(t, expected.MeanAccuracy, actual.MeanAccuracy)
}
