package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/infra/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func testRollup(projectID, name string) domain.Rollup {
	return domain.Rollup{
		Schema: domain.CurrentSchema,
		Project: domain.Project{
			ID:         projectID,
			Metadata:   map[string]any{"name": name},
			Components: []string{"block-a"},
		},
		Blocks: map[string]*domain.Block{
			"block-a": {ID: "block-a", ProjectID: projectID, Metadata: map[string]any{"name": "a"}},
		},
	}
}
