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
	"fmt"
	"time"

	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/storage"
	"github.com/juju/errors"
)

// SQLite stores simulated ratings in a SQLite table.
type SQLite struct {
	storage.TablePrefix
	db *sql.DB
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Init() error {
	if _, err := s.db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	item_id INTEGER NOT NULL,
	score REAL NOT NULL,
	time_stamp DATETIME NOT NULL
);`, s.SimulatedRatingsTable())); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT INTO %s (user_id, item_id, score, time_stamp) VALUES (?, ?, ?, ?)
`, s.SimulatedRatingsTable()))
	if err != nil {
		_ = tx.Rollback()
		return errors.Trace(err)
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, rating := range ratings {
		if _, err = stmt.ExecContext(ctx, rating.UserId, rating.ItemId, rating.Score, now); err != nil {
			_ = tx.Rollback()
			return errors.Trace(err)
		}
	}
	return errors.Trace(tx.Commit())
}

func (s *SQLite) Load(ctx context.Context) ([]dataset.Rating, error) {
	rs, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT user_id, item_id, score FROM %s ORDER BY seq
`, s.SimulatedRatingsTable()))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var ratings []dataset.Rating
	for rs.Next() {
		var rating dataset.Rating
		if err = rs.Scan(&rating.UserId, &rating.ItemId, &rating.Score); err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, errors.Trace(rs.Err())
}

func (s *SQLite) Purge(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.SimulatedRatingsTable()))
	return errors.Trace(err)
}
