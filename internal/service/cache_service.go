package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached read models.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AttendanceSheetKey is the cache key of a class attendance sheet for one date.
func AttendanceSheetKey(classID, date string) string {
	return fmt.Sprintf("attendance:%s:%s", classID, date)
}

// GradeSheetKey is the cache key of a class grade sheet for one period.
func GradeSheetKey(classID, periodID string) string {
	return fmt.Sprintf("grades:%s:%s", classID, periodID)
}

// CacheService fronts the sheet cache with metrics. Cache failures never fail the caller's write.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool

	// writes counts evictions made by this process. Read-through fills compare it before and
	// after storing so a sheet loaded before a commit never outlives that commit's eviction.
	writes atomic.Uint64
}

// FillToken snapshots the eviction counter before a read-through load.
type FillToken struct {
	key    string
	writes uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.metrics.ObserveCacheLookup(CacheHit, time.Since(start))
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.metrics.ObserveCacheLookup(CacheMiss, time.Since(start))
		return false, nil
	default:
		s.metrics.ObserveCacheLookup(CacheError, time.Since(start))
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Begin returns the token a later Fill of key is checked against. Take it before reading
// the sheet from the store.
func (s *CacheService) Begin(key string) FillToken {
	if !s.Enabled() {
		return FillToken{key: key}
	}
	return FillToken{key: key, writes: s.writes.Load()}
}

// Fill stores a sheet loaded from the store unless a write was evicted since token was taken.
// A write racing the store call itself is caught by the second check, which drops the entry.
func (s *CacheService) Fill(ctx context.Context, token FillToken, value interface{}) {
	if !s.Enabled() {
		return
	}
	if s.writes.Load() != token.writes {
		s.logger.Debug("cache fill skipped, sheet changed during load", zap.String("key", token.key))
		return
	}
	if err := s.Set(ctx, token.key, value, 0); err != nil {
		return
	}
	if s.writes.Load() != token.writes {
		if err := s.repo.Delete(ctx, token.key); err != nil {
			s.logger.Warn("cache evict failed", zap.String("key", token.key), zap.Error(err))
		}
	}
}

// Evict drops exact keys after a committed write.
func (s *CacheService) Evict(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	s.writes.Add(1)
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache evict failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	s.writes.Add(1)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
