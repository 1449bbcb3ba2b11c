/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package issuer

import (
	"context"
	"sync"
	"time"

	"github.com/nuts-foundation/openid4vci-issuer/issuer/log"
)

var _ Store = (*memoryStore)(nil)

var memoryStorePruneInterval = 10 * time.Minute

// NewMemoryStore creates an in-memory pre-authorized code store.
// Expired records are pruned periodically until Close is called.
func NewMemoryStore() Store {
	result := &memoryStore{
		records: map[string]PreAuthorizedCodeRecord{},
	}
	result.ctx, result.cancel = context.WithCancel(context.Background())
	result.startPruning(memoryStorePruneInterval)
	return result
}

type memoryStore struct {
	cancel   context.CancelFunc
	ctx      context.Context
	mux      sync.RWMutex
	routines sync.WaitGroup
	records  map[string]PreAuthorizedCodeRecord
}

func (s *memoryStore) Save(_ context.Context, record PreAuthorizedCodeRecord) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.records[record.Code] = record
	return nil
}

func (s *memoryStore) Get(_ context.Context, code string) (*PreAuthorizedCodeRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	record, ok := s.records[code]
	if !ok || record.Expired(time.Now()) {
		return nil, nil
	}
	return &record, nil
}

func (s *memoryStore) Consume(_ context.Context, code string) (*PreAuthorizedCodeRecord, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	record, ok := s.records[code]
	if !ok {
		return nil, nil
	}
	delete(s.records, code)
	if record.Expired(time.Now()) {
		return nil, nil
	}
	return &record, nil
}

func (s *memoryStore) Close() {
	// Signal pruner to stop and wait for it to finish
	s.cancel()
	s.routines.Wait()
}

func (s *memoryStore) startPruning(interval time.Duration) {
	ticker := time.NewTicker(interval)
	s.routines.Add(1)
	go func(ctx context.Context) {
		defer s.routines.Done()
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				recordsPruned := s.prune()
				if recordsPruned > 0 {
					log.Logger().Debugf("Pruned %d expired pre-authorized codes", recordsPruned)
				}
			}
		}
	}(s.ctx)
}

func (s *memoryStore) prune() int {
	s.mux.Lock()
	defer s.mux.Unlock()

	moment := time.Now()

	var count int
	for code, record := range s.records {
		if record.Expired(moment) {
			count++
			delete(s.records, code)
		}
	}

	return count
}
