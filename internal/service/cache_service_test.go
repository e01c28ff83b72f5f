package service

import (
	"context"
	"encoding/json"
	"path"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-academic-api/internal/models"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
)

type memoryCache struct {
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilCache *CacheService
	hit, err := nilCache.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	nilCache.Evict(context.Background(), "k")

	disabled := NewCacheService(newMemoryCache(), nil, 0, nil, false)
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.Set(context.Background(), "k", 1, 0))
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	metrics := NewMetricsService()
	cache := NewCacheService(newMemoryCache(), metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out string
	hit, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", "v", 0))
	hit, err = cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v", out)

	assert.Equal(t, float64(1), counterValue(t, metrics, "cache_lookups_total", map[string]string{"result": CacheHit}))
	assert.Equal(t, float64(1), counterValue(t, metrics, "cache_lookups_total", map[string]string{"result": CacheMiss}))
}

func TestAttendanceSheetCacheIsEvictedOnReconcile(t *testing.T) {
	f := newAttendanceFixture(t, 1)
	backend := newMemoryCache()
	f.svc.cache = NewCacheService(backend, nil, time.Minute, nil, true)
	ctx := context.Background()

	sheet, err := f.svc.ListAttendance(ctx, "c1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, sheet.Counts.Total)
	assert.Contains(t, backend.items, AttendanceSheetKey("c1", "2025-03-10"))

	_, err = f.svc.ReconcileAttendance(ctx, attendanceRequest("2025-03-10", entry("s1", models.AttendanceStatusPresent)))
	require.NoError(t, err)
	assert.NotContains(t, backend.items, AttendanceSheetKey("c1", "2025-03-10"))

	sheet, err = f.svc.ListAttendance(ctx, "c1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, sheet.Counts.Present)
}

func TestCacheInvalidateByPattern(t *testing.T) {
	backend := newMemoryCache()
	cache := NewCacheService(backend, nil, time.Minute, nil, true)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, GradeSheetKey("c1", "p1"), 1, 0))
	require.NoError(t, cache.Set(ctx, GradeSheetKey("c2", "p1"), 1, 0))

	require.NoError(t, cache.Invalidate(ctx, GradeSheetKey("c1", "*")))
	assert.Len(t, backend.items, 1)
}

func TestCacheFillSkipsSheetLoadedBeforeEviction(t *testing.T) {
	backend := newMemoryCache()
	cache := NewCacheService(backend, nil, time.Minute, nil, true)
	ctx := context.Background()
	key := AttendanceSheetKey("c1", "2025-03-10")

	fill := cache.Begin(key)
	cache.Evict(ctx, key)
	cache.Fill(ctx, fill, models.AttendanceSummary{ClassID: "c1"})
	assert.NotContains(t, backend.items, key)

	cache.Fill(ctx, cache.Begin(key), models.AttendanceSummary{ClassID: "c1"})
	assert.Contains(t, backend.items, key)
}

func TestCacheFillOnDisabledCacheIsNoop(t *testing.T) {
	var nilCache *CacheService
	nilCache.Fill(context.Background(), nilCache.Begin("k"), 1)
}

// committingAttendanceStore lets a reconcile commit while a sheet read is in flight.
type committingAttendanceStore struct {
	*attendanceStore
	duringRead func()
}

func (s *committingAttendanceStore) ListByClassDate(ctx context.Context, exec sqlx.ExtContext, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	rows, err := s.attendanceStore.ListByClassDate(ctx, exec, classID, date)
	if exec == nil && s.duringRead != nil {
		hook := s.duringRead
		s.duringRead = nil
		hook()
	}
	return rows, err
}

func TestAttendanceSheetReadRacingReconcileIsNotCached(t *testing.T) {
	f := newAttendanceFixture(t, 1)
	backend := newMemoryCache()
	f.svc.cache = NewCacheService(backend, nil, time.Minute, nil, true)
	store := &committingAttendanceStore{attendanceStore: f.store}
	f.svc.repo = store
	ctx := context.Background()
	key := AttendanceSheetKey("c1", "2025-03-10")

	store.duringRead = func() {
		_, err := f.svc.ReconcileAttendance(ctx, attendanceRequest("2025-03-10", entry("s1", models.AttendanceStatusPresent)))
		require.NoError(t, err)
	}
	stale, err := f.svc.ListAttendance(ctx, "c1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, stale.Counts.Total)
	assert.NotContains(t, backend.items, key)

	fresh, err := f.svc.ListAttendance(ctx, "c1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Counts.Present)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
