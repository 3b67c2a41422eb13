package usecase

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/metrics"
	"github.com/geneticconstructor/constructor-store/internal/utils"
)

// SnapshotInput is the create-or-update request for a snapshot.
// A nil ProjectVersion snapshots the latest version.
type SnapshotInput struct {
	ProjectID      string      `json:"projectId" validate:"required"`
	Owner          string      `json:"owner" validate:"required"`
	ProjectVersion *int64      `json:"projectVersion" validate:"omitempty,gte=0"`
	Message        string      `json:"message"`
	Type           string      `json:"type"`
	Tags           domain.Tags `json:"tags"`
	Keywords       []string    `json:"keywords"`
}

type SnapshotUsecase struct {
	repo     SnapshotRepository
	versions *VersionUsecase
	perms    PermissionChecker
	metrics  *metrics.Metrics
}

func NewSnapshotUsecase(repo SnapshotRepository, versions *VersionUsecase, perms PermissionChecker, m *metrics.Metrics) *SnapshotUsecase {
	return &SnapshotUsecase{repo: repo, versions: versions, perms: perms, metrics: m}
}

// Create upserts the requester's snapshot for (owner, project, version).
// The requester must own the project and may only write snapshots under
// their own name. Publish snapshots are written by CommonsUsecase only.
func (uc *SnapshotUsecase) Create(ctx context.Context, requester string, input SnapshotInput) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.Create")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", input.ProjectID), attribute.String("requester", requester))

	if requester == "" {
		return domain.Snapshot{}, domain.ForbiddenError{Reason: "anonymous snapshot writes are not allowed"}
	}
	if input.Owner == "" {
		input.Owner = requester
	}
	if input.Owner != requester {
		return domain.Snapshot{}, domain.ForbiddenError{Reason: "snapshots can only be written for the requester"}
	}
	if input.Type == domain.SnapshotTypePublish {
		return domain.Snapshot{}, domain.ForbiddenError{Reason: "publish snapshots are managed by the commons"}
	}

	if err := requireOwner(ctx, uc.perms, requester, input.ProjectID); err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	return uc.upsert(ctx, input)
}

// upsert writes the snapshot without any ownership checks.
func (uc *SnapshotUsecase) upsert(ctx context.Context, input SnapshotInput) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.upsert")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", input.ProjectID), attribute.String("owner", input.Owner))

	if err := validate.Struct(input); err != nil {
		return domain.Snapshot{}, domain.InvalidInputError{Reason: err.Error()}
	}

	tags := input.Tags
	if tags == nil {
		tags = domain.Tags{}
	}
	if err := tags.Validate(); err != nil {
		return domain.Snapshot{}, err
	}

	snapshotType := input.Type
	if snapshotType == "" {
		snapshotType = domain.SnapshotTypePlain
	}

	ref := domain.LatestVersion
	if input.ProjectVersion != nil {
		ref = domain.AtVersion(*input.ProjectVersion)
	}
	rev, err := uc.versions.Resolve(ctx, input.ProjectID, ref)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	snapshot, err := uc.repo.Upsert(ctx, domain.Snapshot{
		Owner:          input.Owner,
		ProjectID:      input.ProjectID,
		ProjectVersion: rev.Version,
		ProjectSHA:     rev.SHA,
		Message:        input.Message,
		Type:           snapshotType,
		Tags:           tags,
		Keywords:       domain.NormalizeKeywords(input.Keywords),
		Status:         domain.SnapshotActive,
	})
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, errors.Wrap(err, "Snapshot.Usecase.upsert: upsert failed")
	}
	uc.metrics.SnapshotUpserted(snapshotType)
	return snapshot, nil
}

// GetByUUID returns an active snapshot.
func (uc *SnapshotUsecase) GetByUUID(ctx context.Context, id string) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.GetByUUID")
	defer span.End()

	return uc.repo.Get(ctx, id)
}

// GetByProject lists active snapshots of a project newest first, optionally for one version.
func (uc *SnapshotUsecase) GetByProject(ctx context.Context, projectID string, version *int64) ([]domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.GetByProject")
	defer span.End()

	return uc.repo.Find(ctx, domain.SnapshotQuery{ProjectID: projectID, Version: version})
}

// Latest returns the newest active snapshot of a project.
func (uc *SnapshotUsecase) Latest(ctx context.Context, projectID string) (domain.Snapshot, error) {
	snapshots, err := uc.GetByProject(ctx, projectID, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(snapshots) == 0 {
		return domain.Snapshot{}, domain.NotFoundError{Resource: "snapshot"}
	}
	return snapshots[0], nil
}

// Search runs an arbitrary filter over active snapshots, newest first.
func (uc *SnapshotUsecase) Search(ctx context.Context, q domain.SnapshotQuery) ([]domain.Snapshot, error) {
	if err := q.Tags.Validate(); err != nil {
		return nil, err
	}
	q.Keywords = domain.NormalizeKeywords(q.Keywords)
	return uc.repo.Find(ctx, q)
}

// QueryByTags returns snapshots whose tags contain every key/value pair of the filter.
func (uc *SnapshotUsecase) QueryByTags(ctx context.Context, tags domain.Tags, projectID string) ([]domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.QueryByTags")
	defer span.End()

	if err := tags.Validate(); err != nil {
		return nil, err
	}
	return uc.repo.Find(ctx, domain.SnapshotQuery{ProjectID: projectID, Tags: tags})
}

// QueryByKeywords returns snapshots holding any of the keywords, optionally
// narrowed by a tag filter and a project.
func (uc *SnapshotUsecase) QueryByKeywords(ctx context.Context, keywords []string, tags domain.Tags, projectID string) ([]domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.QueryByKeywords")
	defer span.End()

	if err := tags.Validate(); err != nil {
		return nil, err
	}
	return uc.repo.Find(ctx, domain.SnapshotQuery{
		ProjectID: projectID,
		Tags:      tags,
		Keywords:  domain.NormalizeKeywords(keywords),
	})
}

// KeywordMap counts every keyword across the matching snapshots. Keys keep
// the order in which they were first observed.
func (uc *SnapshotUsecase) KeywordMap(ctx context.Context, keywords []string, tags domain.Tags, projectID string) (*utils.Counter, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.KeywordMap")
	defer span.End()

	if err := tags.Validate(); err != nil {
		return nil, err
	}
	snapshots, err := uc.repo.FindByUpdate(ctx, domain.SnapshotQuery{
		ProjectID: projectID,
		Tags:      tags,
		Keywords:  domain.NormalizeKeywords(keywords),
	})
	if err != nil {
		return nil, err
	}

	counter := utils.NewCounter()
	for _, snapshot := range snapshots {
		for _, kw := range snapshot.Keywords {
			counter.Add(kw)
		}
	}
	return counter, nil
}

// SoftDelete deactivates one of the requester's snapshots. Deleting an
// inactive snapshot is NotFound.
func (uc *SnapshotUsecase) SoftDelete(ctx context.Context, requester, id string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.SoftDelete")
	defer span.End()

	if err := uc.ensureSnapshotOwner(ctx, requester, id); err != nil {
		span.RecordError(err)
		return 0, err
	}

	n, err := uc.repo.SoftDelete(ctx, id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.NotFoundError{Resource: "snapshot " + id}
	}
	uc.metrics.SnapshotDeleted("soft")
	return n, nil
}

// Destroy removes one of the requester's snapshot rows whatever its status.
func (uc *SnapshotUsecase) Destroy(ctx context.Context, requester, id string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Snapshot.Usecase.Destroy")
	defer span.End()

	if err := uc.ensureSnapshotOwner(ctx, requester, id); err != nil {
		span.RecordError(err)
		return 0, err
	}

	n, err := uc.repo.Destroy(ctx, id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.NotFoundError{Resource: "snapshot " + id}
	}
	uc.metrics.SnapshotDeleted("destroy")
	return n, nil
}

func (uc *SnapshotUsecase) ensureSnapshotOwner(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ForbiddenError{Reason: "anonymous snapshot deletes are not allowed"}
	}
	snapshot, err := uc.repo.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if snapshot.Owner != userID {
		return domain.ForbiddenError{Reason: "snapshot " + id + " belongs to another user"}
	}
	return nil
}
