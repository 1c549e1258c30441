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

package ratings

import (
	"slices"
	"sync"

	"github.com/gorse-io/explorer/dataset"
)

// Sink receives simulated ratings after they become visible in the store.
type Sink interface {
	Push(ratings ...dataset.Rating)
}

// Store holds persisted ratings loaded at startup and simulated ratings
// submitted at runtime. Persisted ratings are never modified. Simulated
// ratings are appended under a write lock and readers get snapshots.
type Store struct {
	persisted []dataset.Rating

	mu        sync.RWMutex
	simulated []dataset.Rating
	sink      Sink
}

func NewStore(persisted []dataset.Rating) *Store {
	return &Store{persisted: slices.Clip(slices.Clone(persisted))}
}

// SetSink sets the receiver of submitted ratings.
func (s *Store) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Submit appends a simulated rating. It is visible to EffectiveRatings as soon
// as Submit returns. The sink receives ratings in the order they are appended,
// so it must not block.
func (s *Store) Submit(rating dataset.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulated = append(s.simulated, rating)
	if s.sink != nil {
		s.sink.Push(rating)
	}
}

// Restore appends simulated ratings recovered from durable storage. Restored
// ratings are not sent to the sink.
func (s *Store) Restore(ratings []dataset.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulated = append(s.simulated, ratings...)
}

// EffectiveRatings returns persisted ratings followed by simulated ratings,
// without deduplication.
func (s *Store) EffectiveRatings() []dataset.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	effective := make([]dataset.Rating, 0, len(s.persisted)+len(s.simulated))
	effective = append(effective, s.persisted...)
	return append(effective, s.simulated...)
}

// Persisted returns persisted ratings.
func (s *Store) Persisted() []dataset.Rating {
	return slices.Clone(s.persisted)
}

// Simulated returns simulated ratings in insertion order.
func (s *Store) Simulated() []dataset.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.simulated)
}

func (s *Store) CountPersisted() int {
	return len(s.persisted)
}

func (s *Store) CountSimulated() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.simulated)
}
