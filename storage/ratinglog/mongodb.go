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
	"time"

	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/storage"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRating struct {
	UserId    int       `bson:"user_id"`
	ItemId    int       `bson:"item_id"`
	Score     float64   `bson:"score"`
	Timestamp time.Time `bson:"time_stamp"`
}

// MongoDB stores simulated ratings in a collection.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

func (m *MongoDB) collection() *mongo.Collection {
	return m.client.Database(m.dbName).Collection(m.SimulatedRatingsTable())
}

func (m *MongoDB) Init() error {
	ctx := context.Background()
	d := m.client.Database(m.dbName)
	collections, err := d.ListCollectionNames(ctx, bson.M{"name": m.SimulatedRatingsTable()})
	if err != nil {
		return errors.Trace(err)
	}
	if len(collections) == 0 {
		if err = d.CreateCollection(ctx, m.SimulatedRatingsTable()); err != nil {
			return errors.Trace(err)
		}
	}
	_, err = m.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	return errors.Trace(err)
}

func (m *MongoDB) Close() error {
	return m.client.Disconnect(context.Background())
}

func (m *MongoDB) Append(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(ratings))
	for _, rating := range ratings {
		docs = append(docs, mongoRating{
			UserId:    rating.UserId,
			ItemId:    rating.ItemId,
			Score:     rating.Score,
			Timestamp: now,
		})
	}
	_, err := m.collection().InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return errors.Trace(err)
}

func (m *MongoDB) Load(ctx context.Context) ([]dataset.Rating, error) {
	cur, err := m.collection().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer cur.Close(ctx)
	var ratings []dataset.Rating
	for cur.Next(ctx) {
		var doc mongoRating
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, dataset.Rating{UserId: doc.UserId, ItemId: doc.ItemId, Score: doc.Score})
	}
	return ratings, errors.Trace(cur.Err())
}

func (m *MongoDB) Purge(ctx context.Context) error {
	_, err := m.collection().DeleteMany(ctx, bson.M{})
	return errors.Trace(err)
}
