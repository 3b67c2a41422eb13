package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/infra/database/models"
)

func testSnapshot(version int64, tags domain.Tags, keywords ...string) domain.Snapshot {
	return domain.Snapshot{
		Owner:          "alice",
		ProjectID:      "project-1",
		ProjectVersion: version,
		ProjectSHA:     "sha-" + string(rune('0'+version)),
		Message:        "test snapshot",
		Type:           domain.SnapshotTypeTest,
		Tags:           tags,
		Keywords:       keywords,
	}
}

func TestSnapshotRepositoryUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSnapshotRepository(db)

	a, err := repo.Upsert(ctx, testSnapshot(0, domain.Tags{"worldSeries": "cubs", "stuff": []any{"bing", "bang"}}, "fangle"))
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)

	b := testSnapshot(0, domain.Tags{"worldSeries": "sox"}, "dangle")
	b.Message = "B"
	stored, err := repo.Upsert(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, a.ID, stored.ID)
	assert.Equal(t, "B", stored.Message)
	assert.Equal(t, domain.Tags{"worldSeries": "sox"}, stored.Tags)
	assert.Equal(t, []string{"dangle"}, stored.Keywords)

	var count int64
	require.NoError(t, db.Model(&models.Snapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var tagRows []models.SnapshotTag
	require.NoError(t, db.Find(&tagRows).Error)
	require.Len(t, tagRows, 1)
	assert.Equal(t, `"sox"`, tagRows[0].TagValue)

	cubs, err := repo.Find(ctx, domain.SnapshotQuery{Tags: domain.Tags{"worldSeries": "cubs"}})
	require.NoError(t, err)
	assert.Empty(t, cubs)
}

func TestSnapshotRepositoryFind(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(newTestDB(t))

	_, err := repo.Upsert(ctx, testSnapshot(0, domain.Tags{"hello": "kitty", "test": true}, "dangle", "tangle"))
	require.NoError(t, err)
	v1 := testSnapshot(1, domain.Tags{"hello": "kitty", "count": 5}, "mangle")
	v1.Type = domain.SnapshotTypePublish
	_, err = repo.Upsert(ctx, v1)
	require.NoError(t, err)
	other := testSnapshot(0, domain.Tags{"hello": "kitty"})
	other.ProjectID = "project-2"
	_, err = repo.Upsert(ctx, other)
	require.NoError(t, err)

	all, err := repo.Find(ctx, domain.SnapshotQuery{Tags: domain.Tags{"hello": "kitty"}})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := repo.Find(ctx, domain.SnapshotQuery{ProjectID: "project-1"})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, int64(1), scoped[0].ProjectVersion, "newest first")

	version := int64(0)
	pinned, err := repo.Find(ctx, domain.SnapshotQuery{ProjectID: "project-1", Version: &version})
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, true, pinned[0].Tags["test"])

	numeric, err := repo.Find(ctx, domain.SnapshotQuery{Tags: domain.Tags{"count": 5}})
	require.NoError(t, err)
	require.Len(t, numeric, 1)
	assert.Equal(t, float64(5), numeric[0].Tags["count"])

	mismatched, err := repo.Find(ctx, domain.SnapshotQuery{Tags: domain.Tags{"count": "5"}})
	require.NoError(t, err)
	assert.Empty(t, mismatched)

	published, err := repo.Find(ctx, domain.SnapshotQuery{Type: domain.SnapshotTypePublish})
	require.NoError(t, err)
	require.Len(t, published, 1)

	byKeyword, err := repo.Find(ctx, domain.SnapshotQuery{Keywords: []string{"tangle", "mangle"}})
	require.NoError(t, err)
	assert.Len(t, byKeyword, 2)

	none, err := repo.Find(ctx, domain.SnapshotQuery{Owner: "bob"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSnapshotRepositoryFindByUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(newTestDB(t))

	first, err := repo.Upsert(ctx, testSnapshot(0, nil))
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, testSnapshot(1, nil, "fangle"))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, testSnapshot(0, nil, "dangle"))
	require.NoError(t, err)

	byUpdate, err := repo.FindByUpdate(ctx, domain.SnapshotQuery{})
	require.NoError(t, err)
	require.Len(t, byUpdate, 2)
	assert.Equal(t, second.ID, byUpdate[0].ID)
	assert.Equal(t, first.ID, byUpdate[1].ID)
}

func TestSnapshotRepositoryDeleteLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSnapshotRepository(db)

	created, err := repo.Upsert(ctx, testSnapshot(0, domain.Tags{"a": "b"}, "dangle"))
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.SnapshotActive, got.Status)

	n, err := repo.SoftDelete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	n, err = repo.SoftDelete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	var row models.Snapshot
	require.NoError(t, db.Where("id = ?", created.ID).Take(&row).Error)
	assert.Equal(t, int(domain.SnapshotDeleted), row.Status)

	deleted, err := repo.Lookup(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotDeleted, deleted.Status)
	assert.Equal(t, created.Owner, deleted.Owner)

	n, err = repo.Destroy(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Lookup(ctx, created.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	for _, model := range []any{&models.Snapshot{}, &models.SnapshotTag{}, &models.SnapshotKeyword{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}
}

func TestSnapshotRepositoryUpsertRevivesSoftDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(newTestDB(t))

	created, err := repo.Upsert(ctx, testSnapshot(0, nil))
	require.NoError(t, err)
	_, err = repo.SoftDelete(ctx, created.ID)
	require.NoError(t, err)

	revived, err := repo.Upsert(ctx, testSnapshot(0, domain.Tags{"back": true}))
	require.NoError(t, err)
	assert.Equal(t, created.ID, revived.ID)
	assert.Equal(t, domain.SnapshotActive, revived.Status)

	_, err = repo.Get(ctx, created.ID)
	assert.NoError(t, err)
}
