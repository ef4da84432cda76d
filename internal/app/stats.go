package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/wanistats/internal/adapters/repository"
	"github.com/example/wanistats/internal/domain/types"
	"github.com/example/wanistats/pkg/metrics"
)

// cacheEntry pairs a computed report with its cache time.
type cacheEntry struct {
	report     *types.Report
	computedAt time.Time
}

// Stats returns the user's report, from cache when fresh. A cache
// entry stays fresh for one sync window; afterwards the report is
// recomputed from the stored records on demand.
func (s *Service) Stats(ctx context.Context, username string) (*types.Report, error) {
	s.mu.RLock()
	started := s.started
	reports := s.reports
	s.mu.RUnlock()

	if !started || reports == nil {
		return nil, fmt.Errorf("service not started")
	}

	if report, ok := s.cachedReport(username); ok {
		metrics.RecordCacheHit()
		return report, nil
	}
	metrics.RecordCacheMiss()

	report, err := reports.Compute(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", username, ErrUnknownUser)
		}
		return nil, err
	}

	s.cacheReport(username, report)
	return report, nil
}

func (s *Service) cachedReport(username string) (*types.Report, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	e, ok := s.cache[username]
	if !ok || time.Since(e.computedAt) >= s.syncWindow {
		return nil, false
	}
	return e.report, true
}

func (s *Service) cacheReport(username string, report *types.Report) {
	s.cacheMu.Lock()
	s.cache[username] = cacheEntry{report: report, computedAt: time.Now()}
	s.cacheMu.Unlock()
}

// pruneCache drops expired report entries.
func (s *Service) pruneCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	for username, e := range s.cache {
		if time.Since(e.computedAt) >= s.syncWindow {
			delete(s.cache, username)
		}
	}
}
