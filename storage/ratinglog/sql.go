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
	"database/sql"
	"time"

	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// SQLRating is the row of a simulated rating in MySQL or Postgres.
type SQLRating struct {
	Seq       int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	UserId    int       `gorm:"column:user_id;index"`
	ItemId    int       `gorm:"column:item_id"`
	Score     float64   `gorm:"column:score"`
	Timestamp time.Time `gorm:"column:time_stamp"`
}

// SQLDatabase stores simulated ratings in MySQL or Postgres through gorm.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
}

func (d *SQLDatabase) Init() error {
	return errors.Trace(d.gormDB.AutoMigrate(&SQLRating{}))
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) Append(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := lo.Map(ratings, func(rating dataset.Rating, _ int) SQLRating {
		return SQLRating{
			UserId:    rating.UserId,
			ItemId:    rating.ItemId,
			Score:     rating.Score,
			Timestamp: now,
		}
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Create(&rows).Error)
}

func (d *SQLDatabase) Load(ctx context.Context) ([]dataset.Rating, error) {
	var rows []SQLRating
	if err := d.gormDB.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLRating, _ int) dataset.Rating {
		return dataset.Rating{UserId: row.UserId, ItemId: row.ItemId, Score: row.Score}
	}), nil
}

func (d *SQLDatabase) Purge(ctx context.Context) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Where("1 = 1").Delete(&SQLRating{}).Error)
}
