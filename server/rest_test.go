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

package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/config"
	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/logics"
	"github.com/gorse-io/explorer/storage/ratings"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	*Server
	store *ratings.Store
}

func (suite *ServerTestSuite) SetupTest() {
	catalog, err := dataset.NewCatalog([]dataset.Item{
		{ItemId: 1, Name: "Museu", Category: "Cultura", Location: "Centro", PriceTier: "Baixo"},
		{ItemId: 2, Name: "Trilha", Category: "Natureza", Location: "Serra", PriceTier: "Gratuito"},
		{ItemId: 3, Name: "Feira", Category: "Gastronomia", Location: "Centro Histórico", PriceTier: "Médio"},
		{ItemId: 4, Name: "Barco", Category: "Aventura", Location: "Orla", PriceTier: "Alto"},
	}, dataset.ColumnId, dataset.ColumnName, dataset.ColumnCategory, dataset.ColumnLocation, dataset.ColumnPriceEstimate)
	suite.NoError(err)
	suite.store = ratings.NewStore([]dataset.Rating{
		{UserId: 10, ItemId: 1, Score: 5},
		{UserId: 10, ItemId: 2, Score: 4},
		{UserId: 11, ItemId: 1, Score: 5},
		{UserId: 11, ItemId: 2, Score: 4},
		{UserId: 11, ItemId: 4, Score: 2},
		{UserId: 12, ItemId: 3, Score: 3},
	})
	cfg := config.GetDefaultConfig()
	suite.Server = NewServer(cfg, logics.NewEngine(cfg, catalog, suite.store))
}

func (suite *ServerTestSuite) marshal(v any) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

func (suite *ServerTestSuite) TestRating() {
	t := suite.T()
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/rating").
		JSON(`{"user_id": 10, "item_id": 3, "score": 4.5}`).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message": "rating of user 10 for item 3 added"}`).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/rating").
		JSON(`{"user_id": 10, "item_id": 4, "score": 0}`).
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/ratings").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(logics.RatingList{
			PersistedCount: 6,
			SimulatedRatings: []dataset.Rating{
				{UserId: 10, ItemId: 3, Score: 4.5},
				{UserId: 10, ItemId: 4, Score: 0},
			},
		})).
		End()

	// missing fields
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/rating").
		JSON(`{"user_id": 10, "item_id": 3}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/rating").
		JSON(`{"user_id": "ten", "item_id": 3, "score": 1}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	suite.Equal(2, suite.store.CountSimulated())
}

func (suite *ServerTestSuite) TestRecommend() {
	t := suite.T()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/recommend/10").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			suite.NotEmpty(resp.Header.Get(log.RequestIDHeader))
			return nil
		}).
		Body(suite.marshal(logics.RecommendResult{
			Items: []logics.ScoredItem{
				{Item: dataset.Item{ItemId: 4, Name: "Barco", Category: "Aventura", Location: "Orla", PriceTier: "Alto"}, Score: 2},
				{Item: dataset.Item{ItemId: 3, Name: "Feira", Category: "Gastronomia", Location: "Centro Histórico", PriceTier: "Médio"}, Score: 0},
			},
			Neighbors:   []logics.Neighbor{{UserId: 11, Similarity: suite.similarity()}},
			Explanation: "recommended because you are similar to users [11]",
		})).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/recommend/10").
		Query("location", "centro").
		Query("n", "3").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var result logics.RecommendResult
			suite.NoError(json.NewDecoder(resp.Body).Decode(&result))
			suite.Len(result.Items, 1)
			suite.Equal(3, result.Items[0].ItemId)
			return nil
		}).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/recommend").
		JSON(`{"user_id": 10, "top_n": 1, "price_tier": "ALTO"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var result logics.RecommendResult
			suite.NoError(json.NewDecoder(resp.Body).Decode(&result))
			suite.Len(result.Items, 1)
			suite.Equal(4, result.Items[0].ItemId)
			return nil
		}).
		End()

	// zero means the default number of items on both routes
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/recommend/10").
		Query("n", "0").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var result logics.RecommendResult
			suite.NoError(json.NewDecoder(resp.Body).Decode(&result))
			suite.Len(result.Items, 2)
			return nil
		}).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/recommend").
		JSON(`{"user_id": 10, "top_n": 0}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var result logics.RecommendResult
			suite.NoError(json.NewDecoder(resp.Body).Decode(&result))
			suite.Len(result.Items, 2)
			return nil
		}).
		End()

	// unknown user is not an error
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/recommend").
		JSON(`{"user_id": 99}`).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"recommendations": [], "neighbors": [], "explanation": "user 99 not found"}`).
		End()

	// bad requests
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/recommend/abc").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/recommend/10").
		Query("n", "-1").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/recommend/10").
		Query("filter", "item.Name").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/recommend").
		JSON(`{"top_n": 3}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestReadAfterWrite() {
	t := suite.T()
	apitest.New().
		Handler(suite.Handler()).
		Post("/api/rating").
		JSON(`{"user_id": 10, "item_id": 3, "score": 4.5}`).
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/recommend/10").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var result logics.RecommendResult
			suite.NoError(json.NewDecoder(resp.Body).Decode(&result))
			for _, item := range result.Items {
				suite.NotEqual(3, item.ItemId)
			}
			return nil
		}).
		End()
}

func (suite *ServerTestSuite) TestItems() {
	t := suite.T()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/items").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(suite.Engine.Items())).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/item/2").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"id": 2, "name": "Trilha", "category": "Natureza", "location": "Serra", "price_tier": "Gratuito"}`).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/item/100").
		Expect(t).
		Status(http.StatusNotFound).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/categories").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"Aventura": 1, "Cultura": 1, "Gastronomia": 1, "Natureza": 1}`).
		End()
}

func (suite *ServerTestSuite) TestEvaluation() {
	t := suite.T()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/evaluation/eligible-users").
		Query("min-ratings", "2").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"min_ratings": 2, "total": 2, "users": [{"user_id": 11, "rating_count": 3}, {"user_id": 10, "rating_count": 2}]}`).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/evaluation/holdout").
		Query("min-ratings", "2").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var report logics.HoldoutReport
			suite.NoError(json.NewDecoder(resp.Body).Decode(&report))
			suite.Equal(2, report.Parameters.MinRatings)
			suite.Equal(0.4, report.Parameters.HoldoutFraction)
			suite.Len(report.Users, 2)
			suite.Equal(2, report.Users[0].TestCount)
			suite.Equal(1, report.Users[0].TrainCount)
			suite.NotEmpty(report.Users[1].Error)
			return nil
		}).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/evaluation/accuracy").
		Query("min-ratings", "2").
		Query("k", "3").
		Query("threshold", "4").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var report logics.AccuracyReport
			suite.NoError(json.NewDecoder(resp.Body).Decode(&report))
			suite.Equal(3, report.Parameters.TopK)
			suite.Equal(4.0, report.Parameters.RelevanceThreshold)
			suite.Len(report.Users, 2)
			suite.NotNil(report.Users[0].Accuracy)
			suite.Nil(report.Users[1].Accuracy)
			return nil
		}).
		End()

	// invalid parameters
	for _, query := range []map[string]string{
		{"holdout": "0"},
		{"holdout": "1.5"},
		{"min-test-size": "0"},
		{"k": "0"},
		{"neighbors": "x"},
	} {
		apitest.New().
			Handler(suite.Handler()).
			Get("/api/evaluation/accuracy").
			QueryParams(query).
			Expect(t).
			Status(http.StatusBadRequest).
			End()
	}
	apitest.New().
		Handler(suite.Handler()).
		Get("/api/evaluation/eligible-users").
		Query("min-ratings", "-1").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestDocsAndMetrics() {
	t := suite.T()
	apitest.New().
		Handler(suite.Handler()).
		Get("/apidocs.json").
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.New().
		Handler(suite.Handler()).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		End()
}

func (suite *ServerTestSuite) similarity() float64 {
	return logics.Cosine([]float64{5, 4, 0, 0}, []float64{5, 4, 0, 2})
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
