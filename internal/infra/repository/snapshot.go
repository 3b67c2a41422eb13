package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/infra/database/models"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert inserts the snapshot or, when a row for (owner, project, version)
// already exists, replaces its mutable fields and reactivates it.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot domain.Snapshot) (domain.Snapshot, error) {

	canonical, err := snapshot.Tags.Canonical()
	if err != nil {
		return domain.Snapshot{}, err
	}

	tags := snapshot.Tags
	if tags == nil {
		tags = domain.Tags{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return domain.Snapshot{}, err
	}

	keywords := snapshot.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return domain.Snapshot{}, err
	}

	now := time.Now().UTC()
	row := models.Snapshot{
		ID:             uuid.NewString(),
		Owner:          snapshot.Owner,
		ProjectID:      snapshot.ProjectID,
		ProjectVersion: snapshot.ProjectVersion,
		ProjectSHA:     snapshot.ProjectSHA,
		Message:        snapshot.Message,
		Type:           snapshot.Type,
		Tags:           string(tagsJSON),
		Keywords:       string(keywordsJSON),
		Status:         int(domain.SnapshotActive),
		CDate:          now,
		MDate:          now,
	}

	var stored models.Snapshot

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner"}, {Name: "project_id"}, {Name: "project_version"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"project_sha", "message", "type", "tags", "keywords", "status", "m_date",
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		// the conflicting row keeps its original id
		err = tx.Where("owner = ? AND project_id = ? AND project_version = ?",
			snapshot.Owner, snapshot.ProjectID, snapshot.ProjectVersion).
			Take(&stored).Error
		if err != nil {
			return err
		}

		if err := tx.Where("snapshot_id = ?", stored.ID).Delete(&models.SnapshotTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("snapshot_id = ?", stored.ID).Delete(&models.SnapshotKeyword{}).Error; err != nil {
			return err
		}

		if len(canonical) > 0 {
			tagRows := make([]models.SnapshotTag, 0, len(canonical))
			for key, value := range canonical {
				tagRows = append(tagRows, models.SnapshotTag{
					SnapshotID: stored.ID,
					TagKey:     key,
					TagValue:   value,
				})
			}
			if err := tx.Create(&tagRows).Error; err != nil {
				return err
			}
		}

		if len(keywords) > 0 {
			keywordRows := make([]models.SnapshotKeyword, 0, len(keywords))
			for i, kw := range keywords {
				keywordRows = append(keywordRows, models.SnapshotKeyword{
					SnapshotID: stored.ID,
					Keyword:    kw,
					Position:   i,
				})
			}
			if err := tx.Create(&keywordRows).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	return toSnapshot(stored)
}

// Get returns an active snapshot by id.
func (r *SnapshotRepository) Get(ctx context.Context, id string) (domain.Snapshot, error) {
	return r.take(r.db.WithContext(ctx).Where("id = ? AND status = ?", id, int(domain.SnapshotActive)), id)
}

// Lookup returns a snapshot by id, including soft-deleted ones.
func (r *SnapshotRepository) Lookup(ctx context.Context, id string) (domain.Snapshot, error) {
	return r.take(r.db.WithContext(ctx).Where("id = ?", id), id)
}

func (r *SnapshotRepository) take(query *gorm.DB, id string) (domain.Snapshot, error) {
	var row models.Snapshot
	err := query.Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Snapshot{}, domain.NotFoundError{Resource: "snapshot " + id}
		}
		return domain.Snapshot{}, err
	}
	return toSnapshot(row)
}

// Find returns active snapshots matching q, most recently created first.
func (r *SnapshotRepository) Find(ctx context.Context, q domain.SnapshotQuery) ([]domain.Snapshot, error) {
	return r.find(ctx, q, "c_date DESC, id ASC")
}

// FindByUpdate returns active snapshots matching q, least recently updated first.
func (r *SnapshotRepository) FindByUpdate(ctx context.Context, q domain.SnapshotQuery) ([]domain.Snapshot, error) {
	return r.find(ctx, q, "m_date ASC, c_date ASC, id ASC")
}

func (r *SnapshotRepository) find(ctx context.Context, q domain.SnapshotQuery, order string) ([]domain.Snapshot, error) {

	canonical, err := q.Tags.Canonical()
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("snapshots.status = ?", int(domain.SnapshotActive))

	if q.ProjectID != "" {
		query = query.Where("snapshots.project_id = ?", q.ProjectID)
	}
	if q.Version != nil {
		query = query.Where("snapshots.project_version = ?", *q.Version)
	}
	if q.Owner != "" {
		query = query.Where("snapshots.owner = ?", q.Owner)
	}
	if q.Type != "" {
		query = query.Where("snapshots.type = ?", q.Type)
	}
	for key, value := range canonical {
		query = query.Where(
			"EXISTS (SELECT 1 FROM snapshot_tags st WHERE st.snapshot_id = snapshots.id AND st.tag_key = ? AND st.tag_value = ?)",
			key, value,
		)
	}
	if len(q.Keywords) > 0 {
		query = query.Where(
			"EXISTS (SELECT 1 FROM snapshot_keywords sk WHERE sk.snapshot_id = snapshots.id AND sk.keyword IN ?)",
			q.Keywords,
		)
	}

	var rows []models.Snapshot
	if err := query.Order(order).Find(&rows).Error; err != nil {
		return nil, err
	}

	snapshots := make([]domain.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshot, err := toSnapshot(row)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// SoftDelete deactivates an active snapshot and reports how many rows changed.
func (r *SnapshotRepository) SoftDelete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("id = ? AND status = ?", id, int(domain.SnapshotActive)).
		Updates(map[string]any{
			"status": int(domain.SnapshotDeleted),
			"m_date": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// Destroy removes the snapshot and its index rows regardless of status.
func (r *SnapshotRepository) Destroy(ctx context.Context, id string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("snapshot_id = ?", id).Delete(&models.SnapshotTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("snapshot_id = ?", id).Delete(&models.SnapshotKeyword{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Snapshot{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

func toSnapshot(row models.Snapshot) (domain.Snapshot, error) {
	tags := domain.Tags{}
	if row.Tags != "" {
		if err := json.Unmarshal([]byte(row.Tags), &tags); err != nil {
			return domain.Snapshot{}, err
		}
	}

	keywords := []string{}
	if row.Keywords != "" {
		if err := json.Unmarshal([]byte(row.Keywords), &keywords); err != nil {
			return domain.Snapshot{}, err
		}
	}

	return domain.Snapshot{
		ID:             row.ID,
		Owner:          row.Owner,
		ProjectID:      row.ProjectID,
		ProjectVersion: row.ProjectVersion,
		ProjectSHA:     row.ProjectSHA,
		Message:        row.Message,
		Type:           row.Type,
		Tags:           tags,
		Keywords:       keywords,
		Status:         domain.SnapshotStatus(row.Status),
		CreatedAt:      row.CDate,
		UpdatedAt:      row.MDate,
	}, nil
}
