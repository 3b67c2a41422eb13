package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/infra/database/models"
)

var revisionColumns = []string{"sha", "project_id", "version", "parent_sha", "author", "c_date"}

// CommitRepository is the gorm-backed content store: one linear commit log per project.
type CommitRepository struct {
	db *gorm.DB
}

func NewCommitRepository(db *gorm.DB) *CommitRepository {
	return &CommitRepository{db: db}
}

// Write appends rollup as the next version of the project. The project row is
// locked for the duration of the write so versions never collide.
func (r *CommitRepository) Write(ctx context.Context, projectID string, rollup domain.Rollup, author string) (domain.Revision, error) {

	document, err := json.Marshal(rollup)
	if err != nil {
		return domain.Revision{}, err
	}

	var commit models.CommitLog

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var head models.Project
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", projectID).
			Take(&head).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}

		version := int64(0)
		var parent *string
		if !isNew {
			version = head.LatestVersion + 1
			parentSHA := head.HeadSHA
			parent = &parentSHA
		}

		commit = models.CommitLog{
			SHA:       commitSHA(parent, projectID, version, document),
			ProjectID: projectID,
			Version:   version,
			ParentSHA: parent,
			Author:    author,
			Document:  string(document),
			CDate:     time.Now().UTC(),
		}

		// the head row has to exist before the commit references it
		if isNew {
			head = models.Project{
				ID:            projectID,
				Owner:         author,
				LatestVersion: version,
				HeadSHA:       commit.SHA,
			}
			if err := tx.Create(&head).Error; err != nil {
				return err
			}
		} else {
			err := tx.Model(&models.Project{}).
				Where("id = ?", projectID).
				Updates(map[string]any{
					"latest_version": version,
					"head_sha":       commit.SHA,
					"m_date":         time.Now().UTC(),
				}).Error
			if err != nil {
				return err
			}
		}

		return tx.Omit(clause.Associations).Create(&commit).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Revision{}, domain.ConflictError{Resource: "project " + projectID}
		}
		return domain.Revision{}, err
	}

	return toRevision(commit), nil
}

// Read returns the rollup stored at ref together with its revision.
func (r *CommitRepository) Read(ctx context.Context, projectID string, ref domain.VersionRef) (*domain.Rollup, domain.Revision, error) {
	commit, err := r.take(ctx, projectID, ref, false)
	if err != nil {
		return nil, domain.Revision{}, err
	}

	var rollup domain.Rollup
	if err := json.Unmarshal([]byte(commit.Document), &rollup); err != nil {
		return nil, domain.Revision{}, fmt.Errorf("corrupt revision %s: %w", commit.SHA, err)
	}
	return &rollup, toRevision(*commit), nil
}

// Resolve pins ref to a revision without loading the document.
func (r *CommitRepository) Resolve(ctx context.Context, projectID string, ref domain.VersionRef) (domain.Revision, error) {
	commit, err := r.take(ctx, projectID, ref, true)
	if err != nil {
		return domain.Revision{}, err
	}
	return toRevision(*commit), nil
}

// History lists revisions newest first.
func (r *CommitRepository) History(ctx context.Context, projectID string) ([]domain.Revision, error) {
	var commits []models.CommitLog
	err := r.db.WithContext(ctx).
		Select(revisionColumns).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&commits).Error
	if err != nil {
		return nil, err
	}

	revs := make([]domain.Revision, 0, len(commits))
	for _, commit := range commits {
		revs = append(revs, toRevision(commit))
	}
	return revs, nil
}

// Owner returns the user who first wrote the project.
func (r *CommitRepository) Owner(ctx context.Context, projectID string) (string, error) {
	var head models.Project
	err := r.db.WithContext(ctx).
		Where("id = ?", projectID).
		Take(&head).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.NotFoundError{Resource: "project " + projectID}
		}
		return "", err
	}
	return head.Owner, nil
}

func (r *CommitRepository) take(ctx context.Context, projectID string, ref domain.VersionRef, light bool) (*models.CommitLog, error) {
	query := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if light {
		query = query.Select(revisionColumns)
	}

	switch ref.Kind {
	case domain.VersionNumber:
		query = query.Where("version = ?", ref.Number)
	case domain.VersionSHA:
		query = query.Where("sha = ?", ref.SHA)
	default:
		query = query.Order("version DESC")
	}

	var commit models.CommitLog
	err := query.Take(&commit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if ref.IsLatest() {
				return nil, domain.NotFoundError{Resource: "project " + projectID}
			}
			return nil, domain.NotFoundError{Resource: fmt.Sprintf("version %s of project %s", ref, projectID)}
		}
		return nil, err
	}
	return &commit, nil
}

// commitSHA addresses a revision by its parent, position and content.
func commitSHA(parent *string, projectID string, version int64, document []byte) string {
	h := sha3.New256()
	if parent != nil {
		h.Write([]byte(*parent))
	}
	h.Write([]byte{'\n'})
	h.Write([]byte(projectID))
	h.Write([]byte{'\n'})
	h.Write([]byte(strconv.FormatInt(version, 10)))
	h.Write([]byte{'\n'})
	h.Write(document)
	return hex.EncodeToString(h.Sum(nil))
}

func toRevision(commit models.CommitLog) domain.Revision {
	rev := domain.Revision{
		ProjectID: commit.ProjectID,
		Version:   commit.Version,
		SHA:       commit.SHA,
		Author:    commit.Author,
		Time:      commit.CDate,
	}
	if commit.ParentSHA != nil {
		rev.ParentSHA = *commit.ParentSHA
	}
	return rev
}
