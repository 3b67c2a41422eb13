package repository

import (
	"context"
	"testing"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/metrics"
)

type mockMemcache struct {
	items map[string]*memcache.Item
	gets  int
}

func (m *mockMemcache) Get(key string) (*memcache.Item, error) {
	m.gets++
	item, ok := m.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return item, nil
}

func (m *mockMemcache) Set(item *memcache.Item) error {
	m.items[item.Key] = item
	return nil
}

func TestCachedCommitRepository(t *testing.T) {
	ctx := context.Background()
	mc := &mockMemcache{items: map[string]*memcache.Item{}}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	repo := NewCachedCommitRepository(NewCommitRepository(newTestDB(t)), mc, m)

	rev, err := repo.Write(ctx, "project-1", testRollup("project-1", "cached"), "alice")
	require.NoError(t, err)

	_, _, err = repo.Read(ctx, "project-1", domain.LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, 0, mc.gets, "latest reads bypass the cache")

	first, firstRev, err := repo.Read(ctx, "project-1", domain.AtVersion(0))
	require.NoError(t, err)
	assert.Len(t, mc.items, 1)

	second, secondRev, err := repo.Read(ctx, "project-1", domain.AtVersion(0))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, rev.SHA, firstRev.SHA)
	assert.Equal(t, firstRev.SHA, secondRev.SHA)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RevisionCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RevisionCacheTotal.WithLabelValues("miss")))
}

func TestRevisionKey(t *testing.T) {
	a := revisionKey("project-1", domain.AtVersion(1))
	b := revisionKey("project-1", domain.AtVersion(2))

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, revisionKey("project-1", domain.AtVersion(1)))
	assert.LessOrEqual(t, len(a), 250)
}
