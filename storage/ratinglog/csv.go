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
	"os"
	"strings"
	"sync"

	"github.com/gorse-io/explorer/dataset"
	"github.com/juju/errors"
)

const csvSeparator = ","

// CSV appends simulated ratings to a ratings file with the same layout as the
// persisted ratings file.
type CSV struct {
	mu   sync.Mutex
	path string
}

func (c *CSV) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, err := os.Stat(c.path)
	if err == nil && info.Size() > 0 {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return errors.Trace(os.WriteFile(c.path, []byte(dataset.RatingsHeader(csvSeparator)+"\n"), 0644))
}

func (c *CSV) Close() error {
	return nil
}

func (c *CSV) Append(_ context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	file, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return errors.Trace(err)
	}
	var builder strings.Builder
	for _, rating := range ratings {
		builder.WriteString(dataset.FormatRating(rating, csvSeparator))
		builder.WriteByte('\n')
	}
	if _, err = file.WriteString(builder.String()); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	if err = file.Sync(); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}

func (c *CSV) Load(_ context.Context) ([]dataset.Rating, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dataset.LoadRatingsFile(c.path, csvSeparator)
}

func (c *CSV) Purge(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Trace(os.WriteFile(c.path, []byte(dataset.RatingsHeader(csvSeparator)+"\n"), 0644))
}
