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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/dataset"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Flusher writes simulated ratings to a rating log in the background. Ratings
// are pushed by the rating store and appended to the log in batches, either
// every flush interval or as soon as new ratings arrive. A batch that fails
// after all retries is put back in front of the queue.
type Flusher struct {
	database   Database
	interval   time.Duration
	maxRetries uint
	newBackOff func() backoff.BackOff

	mu      sync.Mutex
	pending []dataset.Rating
	signal  chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	started  atomic.Bool
	flushed  atomic.Int64
	failures atomic.Int64
}

func NewFlusher(database Database, interval time.Duration, maxRetries uint) *Flusher {
	return &Flusher{
		database:   database,
		interval:   interval,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Push queues ratings for the next flush.
func (f *Flusher) Push(ratings ...dataset.Rating) {
	if len(ratings) == 0 {
		return
	}
	f.mu.Lock()
	f.pending = append(f.pending, ratings...)
	PendingRatings.Set(float64(len(f.pending)))
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued ratings.
func (f *Flusher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Flushed returns the number of ratings written to the log.
func (f *Flusher) Flushed() int64 {
	return f.flushed.Load()
}

// Failures returns the number of batches that failed after all retries.
func (f *Flusher) Failures() int64 {
	return f.failures.Load()
}

// Start the flush loop. It stops when Close is called.
func (f *Flusher) Start() {
	if !f.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(f.stopped)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-f.done:
				return
			case <-ticker.C:
			case <-f.signal:
			}
			if err := f.Flush(context.Background()); err != nil {
				log.Logger().Error("failed to flush simulated ratings", zap.Error(err))
			}
		}
	}()
}

// Flush writes all queued ratings to the log.
func (f *Flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	batch := f.pending
	f.pending = nil
	f.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := f.database.Append(ctx, batch); err != nil {
			log.Logger().Warn("failed to append simulated ratings, retrying",
				zap.Int("n_ratings", len(batch)), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(f.newBackOff()), backoff.WithMaxTries(f.maxRetries+1))
	if err != nil {
		f.mu.Lock()
		f.pending = append(batch, f.pending...)
		PendingRatings.Set(float64(len(f.pending)))
		f.mu.Unlock()
		f.failures.Inc()
		FlushFailuresTotal.Inc()
		return errors.Annotatef(err, "append %d simulated ratings", len(batch))
	}

	f.flushed.Add(int64(len(batch)))
	FlushedRatingsTotal.Add(float64(len(batch)))
	FlushSeconds.Observe(time.Since(start).Seconds())
	f.mu.Lock()
	PendingRatings.Set(float64(len(f.pending)))
	f.mu.Unlock()
	log.Logger().Debug("flush simulated ratings",
		zap.Int("n_ratings", len(batch)), zap.Duration("duration", time.Since(start)))
	return nil
}

// Close stops the flush loop and writes the remaining ratings.
func (f *Flusher) Close(ctx context.Context) error {
	f.once.Do(func() {
		close(f.done)
	})
	if f.started.Load() {
		select {
		case <-f.stopped:
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		}
	}
	return f.Flush(ctx)
}
