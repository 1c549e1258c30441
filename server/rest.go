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
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/config"
	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/logics"
	"github.com/juju/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config     *config.Config
	Engine     *logics.Engine
	WebService *restful.WebService
	validate   *validator.Validate
}

// Message is the acknowledgement of a request.
type Message struct {
	Message string `json:"message"`
}

// RatingRequest submits a simulated rating.
type RatingRequest struct {
	UserId *int     `json:"user_id" validate:"required"`
	ItemId *int     `json:"item_id" validate:"required"`
	Score  *float64 `json:"score" validate:"required"`
}

// RecommendRequest asks for recommendations. Empty filters match all items.
type RecommendRequest struct {
	UserId    *int   `json:"user_id" validate:"required"`
	TopN      int    `json:"top_n" validate:"gte=0"`
	Location  string `json:"location"`
	PriceTier string `json:"price_tier"`
	Filter    string `json:"filter"`
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := req.Request.Header.Get(log.RequestIDHeader)
	if requestId == "" {
		requestId = uuid.New().String()
	}
	resp.Header().Set(log.RequestIDHeader, requestId)

	start := time.Now()
	chain.ProcessFilter(req, resp)
	duration := time.Since(start)
	route := req.SelectedRoutePath()
	RestAPIRequestSecondsVec.WithLabelValues(route).Observe(duration.Seconds())
	RestAPIRequestsTotalVec.WithLabelValues(route, strconv.Itoa(resp.StatusCode())).Inc()
	log.ResponseLogger(resp).Info(req.Request.Method+" "+req.Request.URL.String(),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", duration))
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	s.validate = validator.New()
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(otelrestful.OTelFilter("explorer"))
	ws.Filter(LogFilter)

	// Submit a rating
	ws.Route(ws.POST("/rating").To(s.submitRating).
		Doc("Submit a simulated rating.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"rating"}).
		Reads(RatingRequest{}).
		Returns(http.StatusOK, "OK", Message{}).
		Writes(Message{}))
	// Get ratings
	ws.Route(ws.GET("/ratings").To(s.getRatings).
		Doc("Get the number of persisted ratings and all simulated ratings.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"rating"}).
		Returns(http.StatusOK, "OK", logics.RatingList{}).
		Writes(logics.RatingList{}))

	// Recommend items
	ws.Route(ws.POST("/recommend").To(s.postRecommend).
		Doc("Recommend items to a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Reads(RecommendRequest{}).
		Returns(http.StatusOK, "OK", logics.RecommendResult{}).
		Writes(logics.RecommendResult{}))
	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Recommend items to a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned items, 0 for the default").DataType("integer")).
		Param(ws.QueryParameter("location", "substring of the item location").DataType("string")).
		Param(ws.QueryParameter("price-tier", "price tier of the item").DataType("string")).
		Param(ws.QueryParameter("filter", "boolean expression over item").DataType("string")).
		Returns(http.StatusOK, "OK", logics.RecommendResult{}).
		Writes(logics.RecommendResult{}))

	// Catalog
	ws.Route(ws.GET("/items").To(s.getItems).
		Doc("Get items.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"item"}).
		Returns(http.StatusOK, "OK", []dataset.Item{}).
		Writes([]dataset.Item{}))
	ws.Route(ws.GET("/item/{item-id}").To(s.getItem).
		Doc("Get an item.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"item"}).
		Param(ws.PathParameter("item-id", "identifier of the item").DataType("integer")).
		Returns(http.StatusOK, "OK", dataset.Item{}).
		Writes(dataset.Item{}))
	ws.Route(ws.GET("/categories").To(s.getCategories).
		Doc("Get the number of items per category.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"item"}).
		Returns(http.StatusOK, "OK", map[string]int{}).
		Writes(map[string]int{}))

	// Evaluation
	ws.Route(ws.GET("/evaluation/eligible-users").To(s.getEligibleUsers).
		Doc("Get users eligible for evaluation.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"evaluation"}).
		Param(ws.QueryParameter("min-ratings", "minimum number of ratings").DataType("integer")).
		Returns(http.StatusOK, "OK", logics.EligibleUserList{}).
		Writes(logics.EligibleUserList{}))
	ws.Route(ws.GET("/evaluation/holdout").To(s.getHoldout).
		Doc("Get holdout splits of eligible users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"evaluation"}).
		Param(ws.QueryParameter("min-ratings", "minimum number of ratings").DataType("integer")).
		Param(ws.QueryParameter("holdout", "fraction of ratings held out").DataType("number")).
		Param(ws.QueryParameter("min-test-size", "minimum number of held out ratings").DataType("integer")).
		Param(ws.QueryParameter("seed", "base random seed").DataType("integer")).
		Returns(http.StatusOK, "OK", logics.HoldoutReport{}).
		Writes(logics.HoldoutReport{}))
	ws.Route(ws.GET("/evaluation/accuracy").To(s.getAccuracy).
		Doc("Get accuracy@K of eligible users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"evaluation"}).
		Param(ws.QueryParameter("min-ratings", "minimum number of ratings").DataType("integer")).
		Param(ws.QueryParameter("holdout", "fraction of ratings held out").DataType("number")).
		Param(ws.QueryParameter("min-test-size", "minimum number of held out ratings").DataType("integer")).
		Param(ws.QueryParameter("seed", "base random seed").DataType("integer")).
		Param(ws.QueryParameter("k", "number of recommended items").DataType("integer")).
		Param(ws.QueryParameter("neighbors", "number of neighbors").DataType("integer")).
		Param(ws.QueryParameter("threshold", "minimum score of relevant items").DataType("number")).
		Returns(http.StatusOK, "OK", logics.AccuracyReport{}).
		Writes(logics.AccuracyReport{}))
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

// ParseInt64 parses 64-bit integers from the query parameter.
func ParseInt64(request *restful.Request, name string, fallback int64) (value int64, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.ParseInt(valueString, 10, 64)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

// ParseFloat parses floats from the query parameter.
func ParseFloat(request *restful.Request, name string, fallback float64) (value float64, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.ParseFloat(valueString, 64)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

func (s *RestServer) submitRating(request *restful.Request, response *restful.Response) {
	var req RatingRequest
	if err := request.ReadEntity(&req); err != nil {
		BadRequest(response, err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		BadRequest(response, err)
		return
	}
	message := s.Engine.SubmitRating(*req.UserId, *req.ItemId, *req.Score)
	SubmittedRatingsTotal.Inc()
	Ok(response, Message{Message: message})
}

func (s *RestServer) getRatings(_ *restful.Request, response *restful.Response) {
	Ok(response, s.Engine.ListRatings())
}

func (s *RestServer) recommend(response *restful.Response, req logics.RecommendRequest) {
	result, err := s.Engine.Recommend(req)
	if errors.Is(err, errors.NotValid) {
		BadRequest(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, result)
}

func (s *RestServer) postRecommend(request *restful.Request, response *restful.Response) {
	var req RecommendRequest
	if err := request.ReadEntity(&req); err != nil {
		BadRequest(response, err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		BadRequest(response, err)
		return
	}
	s.recommend(response, logics.RecommendRequest{
		UserId:    *req.UserId,
		TopN:      req.TopN,
		Location:  req.Location,
		PriceTier: req.PriceTier,
		Filter:    req.Filter,
	})
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	userId, err := strconv.Atoi(request.PathParameter("user-id"))
	if err != nil {
		BadRequest(response, err)
		return
	}
	// n = 0 falls back to the default like top_n in the request body
	n, err := ParseInt(request, "n", 0)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if n < 0 {
		BadRequest(response, errors.NotValidf("n %d", n))
		return
	}
	s.recommend(response, logics.RecommendRequest{
		UserId:    userId,
		TopN:      n,
		Location:  request.QueryParameter("location"),
		PriceTier: request.QueryParameter("price-tier"),
		Filter:    request.QueryParameter("filter"),
	})
}

func (s *RestServer) getItems(_ *restful.Request, response *restful.Response) {
	Ok(response, s.Engine.Items())
}

func (s *RestServer) getItem(request *restful.Request, response *restful.Response) {
	itemId, err := strconv.Atoi(request.PathParameter("item-id"))
	if err != nil {
		BadRequest(response, err)
		return
	}
	item, err := s.Engine.Item(itemId)
	if errors.Is(err, errors.NotFound) {
		PageNotFound(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, item)
}

func (s *RestServer) getCategories(_ *restful.Request, response *restful.Response) {
	Ok(response, s.Engine.CategoriesHistogram())
}

func (s *RestServer) getEligibleUsers(request *restful.Request, response *restful.Response) {
	minRatings, err := ParseInt(request, "min-ratings", s.Config.Evaluation.MinRatings)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if minRatings < 0 {
		BadRequest(response, errors.NotValidf("min-ratings %d", minRatings))
		return
	}
	Ok(response, s.Engine.EligibleUsers(minRatings))
}

func (s *RestServer) parseHoldoutOptions(request *restful.Request) (opts logics.HoldoutOptions, err error) {
	opts = s.Engine.DefaultHoldoutOptions()
	if opts.MinRatings, err = ParseInt(request, "min-ratings", opts.MinRatings); err != nil {
		return
	}
	if opts.HoldoutFraction, err = ParseFloat(request, "holdout", opts.HoldoutFraction); err != nil {
		return
	}
	if opts.MinTestSize, err = ParseInt(request, "min-test-size", opts.MinTestSize); err != nil {
		return
	}
	opts.BaseSeed, err = ParseInt64(request, "seed", opts.BaseSeed)
	return
}

func (s *RestServer) getHoldout(request *restful.Request, response *restful.Response) {
	opts, err := s.parseHoldoutOptions(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if err = s.validate.Struct(&opts); err != nil {
		BadRequest(response, err)
		return
	}
	Ok(response, s.Engine.HoldoutReport(opts))
}

func (s *RestServer) getAccuracy(request *restful.Request, response *restful.Response) {
	var (
		opts = s.Engine.DefaultAccuracyOptions()
		err  error
	)
	if opts.HoldoutOptions, err = s.parseHoldoutOptions(request); err != nil {
		BadRequest(response, err)
		return
	}
	if opts.TopK, err = ParseInt(request, "k", opts.TopK); err != nil {
		BadRequest(response, err)
		return
	}
	if opts.NumNeighbors, err = ParseInt(request, "neighbors", opts.NumNeighbors); err != nil {
		BadRequest(response, err)
		return
	}
	if opts.RelevanceThreshold, err = ParseFloat(request, "threshold", opts.RelevanceThreshold); err != nil {
		BadRequest(response, err)
		return
	}
	if err = s.validate.Struct(&opts); err != nil {
		BadRequest(response, err)
		return
	}
	Ok(response, s.Engine.AccuracyReport(opts, nil))
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
