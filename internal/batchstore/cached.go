package batchstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/devarsh/jobfleet/internal/cache"
	"github.com/devarsh/jobfleet/pkg/models"
)

const defaultRecordTTL = 15 * time.Minute

// Cached is a read-through cache over a Store. Batch records are immutable
// once written, so serving them from cache never returns stale data. Only
// the membership record is cached; live job states never are.
type Cached struct {
	inner Store
	cache cache.Cache
	ttl   time.Duration
}

// NewCached wraps inner with a record cache.
func NewCached(inner Store, c cache.Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultRecordTTL
	}
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

func (s *Cached) Put(ctx context.Context, record *models.BatchRecord) error {
	if err := s.inner.Put(ctx, record); err != nil {
		return err
	}
	s.cacheRecord(ctx, record)
	return nil
}

func (s *Cached) Get(ctx context.Context, batchID string) (*models.BatchRecord, error) {
	data, found, err := s.cache.Get(ctx, cache.BatchRecordKey(batchID))
	if err == nil && found {
		var record models.BatchRecord
		if json.Unmarshal(data, &record) == nil {
			return &record, nil
		}
		// Corrupt entry; drop it and fall through to the store.
		_ = s.cache.Delete(ctx, cache.BatchRecordKey(batchID))
	}

	record, err := s.inner.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, record)
	return record, nil
}

func (s *Cached) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}

func (s *Cached) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// cacheRecord is best-effort: cache failures never fail the operation.
func (s *Cached) cacheRecord(ctx context.Context, record *models.BatchRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, cache.BatchRecordKey(record.BatchID), data, s.ttl)
}

// Compile-time check that Cached implements Store.
var _ Store = (*Cached)(nil)
