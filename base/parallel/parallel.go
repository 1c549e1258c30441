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

package parallel

import (
	"sync"

	"github.com/juju/errors"
)

const chanSize = 1024

// Parallel runs nJobs jobs on nWorkers workers. A worker stops at its first
// error and the first error by job id is returned.
func Parallel(nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := worker(0, i); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}

	c := make(chan int, chanSize)
	// producer
	go func() {
		for i := 0; i < nJobs; i++ {
			c <- i
		}
		close(c)
	}()
	// consumer
	var wg sync.WaitGroup
	wg.Add(nWorkers)
	errs := make([]error, nJobs)
	for j := 0; j < nWorkers; j++ {
		go func(workerId int) {
			defer wg.Done()
			for jobId := range c {
				if err := worker(workerId, jobId); err != nil {
					errs[jobId] = err
					// drain remaining jobs so the producer never blocks
					for range c {
					}
					return
				}
			}
		}(j)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
