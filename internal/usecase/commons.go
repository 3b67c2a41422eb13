package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/metrics"
)

// PublishOptions are the caller-supplied parts of a publish snapshot.
type PublishOptions struct {
	Message  string      `json:"message"`
	Tags     domain.Tags `json:"tags"`
	Keywords []string    `json:"keywords"`
}

// CommonsQuery selects published projects by tags and keywords.
type CommonsQuery struct {
	Tags     domain.Tags `json:"tags"`
	Keywords []string    `json:"keywords"`
}

// PublishedVersion describes one public version of a project.
type PublishedVersion struct {
	ProjectID  string      `json:"projectId"`
	Version    int64       `json:"version"`
	SHA        string      `json:"sha"`
	SnapshotID string      `json:"snapshotUUID"`
	Owner      string      `json:"owner"`
	Message    string      `json:"message"`
	Tags       domain.Tags `json:"tags"`
	Keywords   []string    `json:"keywords"`
	Time       time.Time   `json:"time"`
}

// CommonsUsecase governs which project versions are publicly retrievable.
// It never writes project documents directly except through VersionUsecase.Save.
type CommonsUsecase struct {
	versions  *VersionUsecase
	snapshots *SnapshotUsecase
	perms     PermissionChecker
	events    EventPublisher
	metrics   *metrics.Metrics
}

func NewCommonsUsecase(
	versions *VersionUsecase,
	snapshots *SnapshotUsecase,
	perms PermissionChecker,
	events EventPublisher,
	m *metrics.Metrics,
) *CommonsUsecase {
	return &CommonsUsecase{
		versions:  versions,
		snapshots: snapshots,
		perms:     perms,
		events:    events,
		metrics:   m,
	}
}

// publicTags coerces caller tags to strings and marks them public.
func publicTags(tags domain.Tags) domain.Tags {
	out := tags.Stringify()
	out[domain.CommonsTag] = true
	return out
}

func publicQuery(projectID string) domain.SnapshotQuery {
	return domain.SnapshotQuery{
		ProjectID: projectID,
		Type:      domain.SnapshotTypePublish,
		Tags:      domain.Tags{domain.CommonsTag: true},
	}
}

// Publish writes rollup as a new version and tags that version public.
// If tagging fails the revision stays written and Publish may be re-run.
func (uc *CommonsUsecase) Publish(ctx context.Context, projectID, owner string, rollup domain.Rollup, opts PublishOptions) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Commons.Usecase.Publish")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", projectID))

	rev, err := uc.versions.Save(ctx, projectID, rollup, owner)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	snapshot, err := uc.tag(ctx, projectID, owner, rev.Version, opts)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, errors.Wrapf(err, "Commons.Usecase.Publish: version %d written but not published", rev.Version)
	}
	return snapshot, nil
}

// PublishVersion tags an existing version public. A nil version publishes the latest.
func (uc *CommonsUsecase) PublishVersion(ctx context.Context, projectID, owner string, version *int64, opts PublishOptions) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Commons.Usecase.PublishVersion")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", projectID))

	if err := uc.ensureOwner(ctx, owner, projectID); err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	ref := domain.LatestVersion
	if version != nil {
		ref = domain.AtVersion(*version)
	}
	rev, err := uc.versions.Resolve(ctx, projectID, ref)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	return uc.tag(ctx, projectID, owner, rev.Version, opts)
}

func (uc *CommonsUsecase) tag(ctx context.Context, projectID, owner string, version int64, opts PublishOptions) (domain.Snapshot, error) {
	snapshot, err := uc.snapshots.upsert(ctx, SnapshotInput{
		ProjectID:      projectID,
		Owner:          owner,
		ProjectVersion: &version,
		Message:        opts.Message,
		Type:           domain.SnapshotTypePublish,
		Tags:           publicTags(opts.Tags),
		Keywords:       opts.Keywords,
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	uc.metrics.CommonsOp("publish")
	uc.emit(ctx, domain.CommonsEventPublished, snapshot)
	return snapshot, nil
}

// Unpublish removes the commons tag from the owner's publish snapshots of the
// project, keeping the snapshots themselves. A nil version unpublishes every
// published version.
func (uc *CommonsUsecase) Unpublish(ctx context.Context, projectID, owner string, version *int64) ([]domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Commons.Usecase.Unpublish")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", projectID))

	if err := uc.ensureOwner(ctx, owner, projectID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	q := publicQuery(projectID)
	q.Owner = owner
	q.Version = version
	published, err := uc.snapshots.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(published) == 0 {
		return nil, domain.NotFoundError{Resource: "published version"}
	}

	updated := make([]domain.Snapshot, 0, len(published))
	for _, snapshot := range published {
		tags := snapshot.Tags.Clone()
		delete(tags, domain.CommonsTag)

		v := snapshot.ProjectVersion
		result, err := uc.snapshots.upsert(ctx, SnapshotInput{
			ProjectID:      snapshot.ProjectID,
			Owner:          snapshot.Owner,
			ProjectVersion: &v,
			Message:        snapshot.Message,
			Type:           snapshot.Type,
			Tags:           tags,
			Keywords:       snapshot.Keywords,
		})
		if err != nil {
			span.RecordError(err)
			return updated, errors.Wrapf(err, "Commons.Usecase.Unpublish: version %d", v)
		}

		uc.metrics.CommonsOp("unpublish")
		uc.emit(ctx, domain.CommonsEventUnpublished, result)
		updated = append(updated, result)
	}
	return updated, nil
}

// Retrieve returns the frozen rollup of a public version. A nil version
// resolves to the latest public version. Private and missing versions are
// indistinguishable to the caller.
func (uc *CommonsUsecase) Retrieve(ctx context.Context, projectID string, version *int64) (*domain.Rollup, error) {
	ctx, span := tracer.Start(ctx, "Commons.Usecase.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("projectId", projectID))

	notFound := domain.NotFoundError{Resource: "commons project " + projectID}

	target, err := uc.latestPublic(ctx, projectID, version)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, notFound
	}

	rollup, err := uc.versions.GetRollup(ctx, projectID, domain.AtVersion(target.ProjectVersion))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, notFound
		}
		return nil, err
	}

	rollup.Freeze()
	return rollup, nil
}

// RetrieveVersions lists the public versions of a project newest first.
func (uc *CommonsUsecase) RetrieveVersions(ctx context.Context, projectID string) ([]PublishedVersion, error) {
	ctx, span := tracer.Start(ctx, "Commons.Usecase.RetrieveVersions")
	defer span.End()

	published, err := uc.snapshots.Search(ctx, publicQuery(projectID))
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(published))
	versions := make([]PublishedVersion, 0, len(published))
	for _, snapshot := range published {
		honoured, err := uc.honoured(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		if !honoured {
			continue
		}
		if _, ok := seen[snapshot.ProjectVersion]; ok {
			continue
		}
		seen[snapshot.ProjectVersion] = struct{}{}
		versions = append(versions, PublishedVersion{
			ProjectID:  snapshot.ProjectID,
			Version:    snapshot.ProjectVersion,
			SHA:        snapshot.ProjectSHA,
			SnapshotID: snapshot.ID,
			Owner:      snapshot.Owner,
			Message:    snapshot.Message,
			Tags:       snapshot.Tags,
			Keywords:   snapshot.Keywords,
			Time:       snapshot.UpdatedAt,
		})
	}
	if len(versions) == 0 {
		return nil, domain.NotFoundError{Resource: "commons project " + projectID}
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Version > versions[j].Version
	})
	return versions, nil
}

// Query returns the latest public version of each project with a matching
// public version, frozen. Projects whose revision can no longer be read are
// skipped.
func (uc *CommonsUsecase) Query(ctx context.Context, query CommonsQuery) ([]*domain.Project, error) {
	ctx, span := tracer.Start(ctx, "Commons.Usecase.Query")
	defer span.End()

	q := publicQuery("")
	q.Tags = publicTags(query.Tags)
	q.Keywords = domain.NormalizeKeywords(query.Keywords)

	matched, err := uc.snapshots.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	order := []string{}
	seen := map[string]struct{}{}
	for _, snapshot := range matched {
		if _, ok := seen[snapshot.ProjectID]; ok {
			continue
		}
		honoured, err := uc.honoured(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		if !honoured {
			continue
		}
		seen[snapshot.ProjectID] = struct{}{}
		order = append(order, snapshot.ProjectID)
	}

	projects := make([]*domain.Project, 0, len(order))
	for _, projectID := range order {
		latest, err := uc.latestPublic(ctx, projectID, nil)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}

		rollup, err := uc.versions.GetRollup(ctx, projectID, domain.AtVersion(latest.ProjectVersion))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				slog.WarnContext(
					ctx, "published revision missing",
					slog.String("projectId", projectID),
					slog.Int64("version", latest.ProjectVersion),
					slog.String("module", "commons"),
				)
				continue
			}
			return nil, err
		}
		rollup.Freeze()
		projects = append(projects, &rollup.Project)
	}
	return projects, nil
}

// latestPublic returns the highest honoured public version of a project,
// restricted to version when it is set, or nil when there is none.
func (uc *CommonsUsecase) latestPublic(ctx context.Context, projectID string, version *int64) (*domain.Snapshot, error) {
	q := publicQuery(projectID)
	q.Version = version
	published, err := uc.snapshots.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	var target *domain.Snapshot
	for i := range published {
		honoured, err := uc.honoured(ctx, published[i])
		if err != nil {
			return nil, err
		}
		if !honoured {
			continue
		}
		if target == nil || published[i].ProjectVersion > target.ProjectVersion {
			target = &published[i]
		}
	}
	return target, nil
}

// honoured reports whether a publish snapshot makes its version public:
// it must carry the commons tag and belong to the project's owner.
func (uc *CommonsUsecase) honoured(ctx context.Context, snapshot domain.Snapshot) (bool, error) {
	if !snapshot.IsPublic() {
		return false, nil
	}
	owns, err := uc.perms.UserOwnsProject(ctx, snapshot.Owner, snapshot.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return owns, nil
}

func (uc *CommonsUsecase) ensureOwner(ctx context.Context, userID, projectID string) error {
	return requireOwner(ctx, uc.perms, userID, projectID)
}

func (uc *CommonsUsecase) emit(ctx context.Context, eventType string, snapshot domain.Snapshot) {
	if uc.events == nil {
		return
	}
	err := uc.events.PublishCommonsEvent(ctx, domain.CommonsEvent{
		Type:       eventType,
		ProjectID:  snapshot.ProjectID,
		Version:    snapshot.ProjectVersion,
		SnapshotID: snapshot.ID,
		Owner:      snapshot.Owner,
	})
	if err != nil {
		slog.ErrorContext(
			ctx, "failed to publish commons event",
			slog.String("error", err.Error()),
			slog.String("module", "commons"),
		)
	}
}
