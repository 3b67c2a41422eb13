package usecase

import (
	"context"
	"fmt"

	"github.com/geneticconstructor/constructor-store/internal/domain"
)

// ContentStore is the append-only commit log holding full rollups.
// Concurrent writes to one project must be serialized by the implementation.
type ContentStore interface {
	Write(ctx context.Context, projectID string, rollup domain.Rollup, author string) (domain.Revision, error)
	Read(ctx context.Context, projectID string, ref domain.VersionRef) (*domain.Rollup, domain.Revision, error)
	Resolve(ctx context.Context, projectID string, ref domain.VersionRef) (domain.Revision, error)
	History(ctx context.Context, projectID string) ([]domain.Revision, error)
	Owner(ctx context.Context, projectID string) (string, error)
}

// SnapshotRepository persists snapshot rows.
type SnapshotRepository interface {
	Upsert(ctx context.Context, snapshot domain.Snapshot) (domain.Snapshot, error)
	Get(ctx context.Context, id string) (domain.Snapshot, error)
	// Lookup returns the snapshot whatever its status.
	Lookup(ctx context.Context, id string) (domain.Snapshot, error)
	Find(ctx context.Context, q domain.SnapshotQuery) ([]domain.Snapshot, error)
	// FindByUpdate returns matches oldest-updated first.
	FindByUpdate(ctx context.Context, q domain.SnapshotQuery) ([]domain.Snapshot, error)
	SoftDelete(ctx context.Context, id string) (int64, error)
	Destroy(ctx context.Context, id string) (int64, error)
}

// PermissionChecker answers ownership questions for projects.
type PermissionChecker interface {
	UserOwnsProject(ctx context.Context, userID, projectID string) (bool, error)
}

func requireOwner(ctx context.Context, perms PermissionChecker, userID, projectID string) error {
	owns, err := perms.UserOwnsProject(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !owns {
		return domain.ForbiddenError{Reason: fmt.Sprintf("user does not own project %s", projectID)}
	}
	return nil
}

// EventPublisher broadcasts commons events. Implementations may be no-ops.
type EventPublisher interface {
	PublishCommonsEvent(ctx context.Context, event domain.CommonsEvent) error
}
