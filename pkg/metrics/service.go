package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/common/models"
	"github.com/radmetrics/platform/pkg/filter"
	"github.com/radmetrics/platform/pkg/store"
)

// Service loads a user's records, applies the active filter and computes a
// snapshot, consulting the cache first when one is attached.
type Service struct {
	store       store.RecordStore
	cache       *Cache
	defaultGoal float64
	opts        Options
}

func NewService(recordStore store.RecordStore, cache *Cache, defaultGoal float64, opts Options) *Service {
	return &Service{
		store:       recordStore,
		cache:       cache,
		defaultGoal: defaultGoal,
		opts:        opts,
	}
}

// Snapshot computes the metrics view for one user under the given filter.
// goal <= 0 falls back to the configured default. A nil snapshot with a
// nil error means the filtered set is empty.
func (s *Service) Snapshot(ctx context.Context, userID string, f filter.Filter, goal float64) (*Snapshot, error) {
	if goal <= 0 {
		goal = s.defaultGoal
	}

	var key string
	if s.cache != nil {
		key = s.cache.Key(ctx, userID, f, goal)
		if snapshot, ok := s.cache.Get(ctx, key); ok {
			logger.Log.WithField("user_id", userID).Debug("metrics snapshot served from cache")
			return snapshot, nil
		}
	}

	records, err := s.activeRecords(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	snapshot := Compute(records, goal, s.opts)
	if s.cache != nil && snapshot != nil {
		s.cache.Put(ctx, key, snapshot)
	}
	return snapshot, nil
}

// ActiveRecords returns the filtered record set in timestamp order, for
// consumers that need rows rather than aggregates.
func (s *Service) ActiveRecords(ctx context.Context, userID string, f filter.Filter) ([]models.CanonicalRecord, error) {
	return s.activeRecords(ctx, userID, f)
}

// Vocabularies lists the distinct modality and body-part labels across the
// user's full record set, ignoring any active filter.
func (s *Service) Vocabularies(ctx context.Context, userID string) (modalities, bodyParts []string, err error) {
	records, err := s.store.QueryByUser(ctx, userID, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("loading records: %w", err)
	}
	modalities, bodyParts = filter.Vocabularies(records)
	return modalities, bodyParts, nil
}

// Invalidate drops cached snapshots for the user. No-op without a cache.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}

func (s *Service) activeRecords(ctx context.Context, userID string, f filter.Filter) ([]models.CanonicalRecord, error) {
	// Date bounds push down to the store widened to whole days; the
	// remaining predicates apply in memory.
	var query *store.QueryFilter
	if f.StartDate != nil || f.EndDate != nil {
		query = &store.QueryFilter{}
		if f.StartDate != nil {
			from := dateOf(*f.StartDate)
			query.From = &from
		}
		if f.EndDate != nil {
			to := dateOf(*f.EndDate).Add(24*time.Hour - time.Nanosecond)
			query.To = &to
		}
	}

	records, err := s.store.QueryByUser(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	return filter.Apply(records, f), nil
}
