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

package ratinglog

import (
	"context"
	"encoding/json"

	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/storage"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// Redis stores simulated ratings as JSON values of a list.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
}

func (r *Redis) Init() error {
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Append(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	values := make([]any, 0, len(ratings))
	for _, rating := range ratings {
		b, err := json.Marshal(rating)
		if err != nil {
			return errors.Trace(err)
		}
		values = append(values, string(b))
	}
	return errors.Trace(r.client.RPush(ctx, r.SimulatedRatingsTable(), values...).Err())
}

func (r *Redis) Load(ctx context.Context) ([]dataset.Rating, error) {
	values, err := r.client.LRange(ctx, r.SimulatedRatingsTable(), 0, -1).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	ratings := make([]dataset.Rating, 0, len(values))
	for _, value := range values {
		var rating dataset.Rating
		if err = json.Unmarshal([]byte(value), &rating); err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, nil
}

func (r *Redis) Purge(ctx context.Context) error {
	return errors.Trace(r.client.Del(ctx, r.SimulatedRatingsTable()).Err())
}
