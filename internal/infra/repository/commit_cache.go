package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/metrics"
	"github.com/geneticconstructor/constructor-store/internal/usecase"
)

// revisionTTL is in seconds; revisions are immutable so this only bounds memory use.
const revisionTTL = 60 * 60 * 24

type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

type cachedRevision struct {
	Rollup   domain.Rollup   `json:"rollup"`
	Revision domain.Revision `json:"revision"`
}

// CachedCommitRepository serves reads of pinned versions from memcached.
// Reads of the latest version always go to the underlying store.
type CachedCommitRepository struct {
	usecase.ContentStore
	mc      memcacheClient
	metrics *metrics.Metrics
}

func NewCachedCommitRepository(store usecase.ContentStore, mc memcacheClient, m *metrics.Metrics) *CachedCommitRepository {
	return &CachedCommitRepository{ContentStore: store, mc: mc, metrics: m}
}

func (r *CachedCommitRepository) Read(ctx context.Context, projectID string, ref domain.VersionRef) (*domain.Rollup, domain.Revision, error) {
	if ref.IsLatest() {
		return r.ContentStore.Read(ctx, projectID, ref)
	}

	key := revisionKey(projectID, ref)
	item, err := r.mc.Get(key)
	if err == nil {
		var cached cachedRevision
		if err := json.Unmarshal(item.Value, &cached); err == nil {
			r.metrics.RevisionCache(true)
			return &cached.Rollup, cached.Revision, nil
		}
	} else if !errors.Is(err, memcache.ErrCacheMiss) {
		slog.WarnContext(
			ctx, "revision cache get failed",
			slog.String("error", err.Error()),
			slog.String("module", "repository"),
		)
	}
	r.metrics.RevisionCache(false)

	rollup, rev, err := r.ContentStore.Read(ctx, projectID, ref)
	if err != nil {
		return nil, domain.Revision{}, err
	}

	value, err := json.Marshal(cachedRevision{Rollup: *rollup, Revision: rev})
	if err == nil {
		err = r.mc.Set(&memcache.Item{Key: key, Value: value, Expiration: revisionTTL})
	}
	if err != nil {
		slog.WarnContext(
			ctx, "revision cache set failed",
			slog.String("error", err.Error()),
			slog.String("module", "repository"),
		)
	}

	return rollup, rev, nil
}

// revisionKey hashes the project and ref so keys stay within memcached limits.
func revisionKey(projectID string, ref domain.VersionRef) string {
	sum := xxh3.HashString128(projectID + "@" + ref.String()).Bytes()
	return "rev:" + hex.EncodeToString(sum[:])
}
