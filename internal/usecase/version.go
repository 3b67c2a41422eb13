package usecase

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/metrics"
)

var tracer = otel.Tracer("usecase")

var validate = validator.New()

// VersionUsecase exposes project and block reads at any point of a project's history.
type VersionUsecase struct {
	store   ContentStore
	metrics *metrics.Metrics
}

func NewVersionUsecase(store ContentStore, m *metrics.Metrics) *VersionUsecase {
	return &VersionUsecase{store: store, metrics: m}
}

// Save commits the rollup as the next version of the project.
// The first writer of a project becomes its owner; later writers must match.
func (uc *VersionUsecase) Save(ctx context.Context, projectID string, rollup domain.Rollup, author string) (domain.Revision, error) {
	ctx, span := tracer.Start(ctx, "Version.Usecase.Save")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", projectID))

	if author == "" {
		return domain.Revision{}, domain.ForbiddenError{Reason: "anonymous writes are not allowed"}
	}
	if rollup.Project.ID == "" {
		rollup.Project.ID = projectID
	}
	if rollup.Project.ID != projectID {
		return domain.Revision{}, domain.InvalidInputError{Reason: "project id does not match path"}
	}
	if err := validate.Struct(rollup); err != nil {
		return domain.Revision{}, domain.InvalidInputError{Reason: err.Error()}
	}
	if rollup.Blocks == nil {
		rollup.Blocks = map[string]*domain.Block{}
	}
	if err := rollup.CheckReferences(); err != nil {
		return domain.Revision{}, err
	}

	owner, err := uc.store.Owner(ctx, projectID)
	switch {
	case err == nil && owner != author:
		return domain.Revision{}, domain.ForbiddenError{Reason: "project belongs to another user"}
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		span.RecordError(err)
		return domain.Revision{}, errors.Wrap(err, "Version.Usecase.Save: owner lookup failed")
	}

	rollup.Schema = domain.CurrentSchema
	rollup.Project.Owner = author
	rollup.AssignProject()

	rev, err := uc.store.Write(ctx, projectID, rollup, author)
	if err != nil {
		span.RecordError(err)
		return domain.Revision{}, errors.Wrap(err, "Version.Usecase.Save: write failed")
	}
	uc.metrics.RevisionWritten()
	return rev, nil
}

// Exists reports whether the project has any revision when ref is latest.
// A specific ref that is malformed or absent from the log fails with NotFound.
func (uc *VersionUsecase) Exists(ctx context.Context, projectID string, ref domain.VersionRef) (bool, error) {
	ctx, span := tracer.Start(ctx, "Version.Usecase.Exists")
	defer span.End()

	_, err := uc.store.Resolve(ctx, projectID, ref)
	if err == nil {
		return true, nil
	}
	if ref.IsLatest() && errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Resolve pins ref to a concrete revision.
func (uc *VersionUsecase) Resolve(ctx context.Context, projectID string, ref domain.VersionRef) (domain.Revision, error) {
	ctx, span := tracer.Start(ctx, "Version.Usecase.Resolve")
	defer span.End()

	return uc.store.Resolve(ctx, projectID, ref)
}

// Get returns the project manifest at ref.
func (uc *VersionUsecase) Get(ctx context.Context, projectID string, ref domain.VersionRef) (*domain.Project, error) {
	rollup, err := uc.GetRollup(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	return &rollup.Project, nil
}

// GetRollup returns the project and all of its blocks at ref.
func (uc *VersionUsecase) GetRollup(ctx context.Context, projectID string, ref domain.VersionRef) (*domain.Rollup, error) {
	ctx, span := tracer.Start(ctx, "Version.Usecase.GetRollup")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", projectID), attribute.String("version", ref.String()))

	rollup, rev, err := uc.store.Read(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}

	lastSaved := rev.Time
	rollup.Project.Version = rev.Version
	rollup.Project.LastSaved = &lastSaved
	return rollup, nil
}

// Log lists the project's revisions newest first.
func (uc *VersionUsecase) Log(ctx context.Context, projectID string) ([]domain.Revision, error) {
	ctx, span := tracer.Start(ctx, "Version.Usecase.Log")
	defer span.End()

	revs, err := uc.store.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, domain.NotFoundError{Resource: "project " + projectID}
	}
	return revs, nil
}

// BlocksExist reports whether every block id is present at ref.
func (uc *VersionUsecase) BlocksExist(ctx context.Context, projectID string, ref domain.VersionRef, blockIDs ...string) (bool, error) {
	rollup, err := uc.GetRollup(ctx, projectID, ref)
	if err != nil {
		return false, err
	}
	for _, id := range blockIDs {
		if _, ok := rollup.Blocks[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// BlocksGet returns the requested blocks at ref, or all blocks when none are named.
func (uc *VersionUsecase) BlocksGet(ctx context.Context, projectID string, ref domain.VersionRef, blockIDs ...string) (map[string]*domain.Block, error) {
	rollup, err := uc.GetRollup(ctx, projectID, ref)
	if err != nil {
		return nil, err
	}
	return rollup.PickBlocks(blockIDs...)
}
