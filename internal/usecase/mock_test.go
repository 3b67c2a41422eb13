package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/geneticconstructor/constructor-store/internal/domain"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type storedRevision struct {
	document []byte
	rev      domain.Revision
}

// mockStore is an in-memory ContentStore.
type mockStore struct {
	revs   map[string][]storedRevision
	writes int
}

func newMockStore() *mockStore {
	return &mockStore{revs: map[string][]storedRevision{}}
}

func (m *mockStore) Write(ctx context.Context, projectID string, rollup domain.Rollup, author string) (domain.Revision, error) {
	document, err := json.Marshal(rollup)
	if err != nil {
		return domain.Revision{}, err
	}
	log := m.revs[projectID]
	rev := domain.Revision{
		ProjectID: projectID,
		Version:   int64(len(log)),
		Author:    author,
		Time:      epoch.Add(time.Duration(m.writes) * time.Second),
	}
	if len(log) > 0 {
		rev.ParentSHA = log[len(log)-1].rev.SHA
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", rev.ParentSHA, projectID, rev.Version, document)))
	rev.SHA = hex.EncodeToString(sum[:])
	m.revs[projectID] = append(log, storedRevision{document: document, rev: rev})
	m.writes++
	return rev, nil
}

func (m *mockStore) find(projectID string, ref domain.VersionRef) (storedRevision, error) {
	log := m.revs[projectID]
	if len(log) == 0 {
		return storedRevision{}, domain.NotFoundError{Resource: "project " + projectID}
	}
	switch ref.Kind {
	case domain.VersionNumber:
		if ref.Number < int64(len(log)) {
			return log[ref.Number], nil
		}
	case domain.VersionSHA:
		for _, stored := range log {
			if stored.rev.SHA == ref.SHA {
				return stored, nil
			}
		}
	default:
		return log[len(log)-1], nil
	}
	return storedRevision{}, domain.NotFoundError{Resource: "version " + ref.String()}
}

func (m *mockStore) Read(ctx context.Context, projectID string, ref domain.VersionRef) (*domain.Rollup, domain.Revision, error) {
	stored, err := m.find(projectID, ref)
	if err != nil {
		return nil, domain.Revision{}, err
	}
	var rollup domain.Rollup
	if err := json.Unmarshal(stored.document, &rollup); err != nil {
		return nil, domain.Revision{}, err
	}
	return &rollup, stored.rev, nil
}

func (m *mockStore) Resolve(ctx context.Context, projectID string, ref domain.VersionRef) (domain.Revision, error) {
	stored, err := m.find(projectID, ref)
	return stored.rev, err
}

func (m *mockStore) History(ctx context.Context, projectID string) ([]domain.Revision, error) {
	log := m.revs[projectID]
	revs := make([]domain.Revision, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		revs = append(revs, log[i].rev)
	}
	return revs, nil
}

func (m *mockStore) Owner(ctx context.Context, projectID string) (string, error) {
	log := m.revs[projectID]
	if len(log) == 0 {
		return "", domain.NotFoundError{Resource: "project " + projectID}
	}
	return log[0].rev.Author, nil
}

// mockSnapshotRepo is an in-memory SnapshotRepository with a ticking clock.
type mockSnapshotRepo struct {
	rows  []*domain.Snapshot
	ticks int
}

func (m *mockSnapshotRepo) now() time.Time {
	m.ticks++
	return epoch.Add(time.Duration(m.ticks) * time.Minute)
}

func (m *mockSnapshotRepo) Upsert(ctx context.Context, snapshot domain.Snapshot) (domain.Snapshot, error) {
	now := m.now()
	for _, row := range m.rows {
		if row.Owner == snapshot.Owner && row.ProjectID == snapshot.ProjectID && row.ProjectVersion == snapshot.ProjectVersion {
			row.ProjectSHA = snapshot.ProjectSHA
			row.Message = snapshot.Message
			row.Type = snapshot.Type
			row.Tags = snapshot.Tags
			row.Keywords = snapshot.Keywords
			row.Status = domain.SnapshotActive
			row.UpdatedAt = now
			return *row, nil
		}
	}
	snapshot.ID = fmt.Sprintf("snapshot-%d", len(m.rows))
	snapshot.Status = domain.SnapshotActive
	snapshot.CreatedAt = now
	snapshot.UpdatedAt = now
	m.rows = append(m.rows, &snapshot)
	return snapshot, nil
}

func (m *mockSnapshotRepo) Get(ctx context.Context, id string) (domain.Snapshot, error) {
	for _, row := range m.rows {
		if row.ID == id && row.Status == domain.SnapshotActive {
			return *row, nil
		}
	}
	return domain.Snapshot{}, domain.NotFoundError{Resource: "snapshot " + id}
}

func (m *mockSnapshotRepo) Lookup(ctx context.Context, id string) (domain.Snapshot, error) {
	for _, row := range m.rows {
		if row.ID == id {
			return *row, nil
		}
	}
	return domain.Snapshot{}, domain.NotFoundError{Resource: "snapshot " + id}
}

func (m *mockSnapshotRepo) match(row *domain.Snapshot, q domain.SnapshotQuery) bool {
	if row.Status != domain.SnapshotActive {
		return false
	}
	if q.ProjectID != "" && row.ProjectID != q.ProjectID {
		return false
	}
	if q.Version != nil && row.ProjectVersion != *q.Version {
		return false
	}
	if q.Owner != "" && row.Owner != q.Owner {
		return false
	}
	if q.Type != "" && row.Type != q.Type {
		return false
	}
	want, _ := q.Tags.Canonical()
	have, _ := row.Tags.Canonical()
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	if len(q.Keywords) > 0 {
		for _, kw := range q.Keywords {
			for _, own := range row.Keywords {
				if kw == own {
					return true
				}
			}
		}
		return false
	}
	return true
}

func (m *mockSnapshotRepo) Find(ctx context.Context, q domain.SnapshotQuery) ([]domain.Snapshot, error) {
	out := m.filter(q)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockSnapshotRepo) FindByUpdate(ctx context.Context, q domain.SnapshotQuery) ([]domain.Snapshot, error) {
	out := m.filter(q)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (m *mockSnapshotRepo) filter(q domain.SnapshotQuery) []domain.Snapshot {
	out := []domain.Snapshot{}
	for _, row := range m.rows {
		if m.match(row, q) {
			out = append(out, *row)
		}
	}
	return out
}

func (m *mockSnapshotRepo) SoftDelete(ctx context.Context, id string) (int64, error) {
	for _, row := range m.rows {
		if row.ID == id && row.Status == domain.SnapshotActive {
			row.Status = domain.SnapshotDeleted
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockSnapshotRepo) Destroy(ctx context.Context, id string) (int64, error) {
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// mockPerms answers ownership from the store's first author.
type mockPerms struct {
	store *mockStore
}

func (m *mockPerms) UserOwnsProject(ctx context.Context, userID, projectID string) (bool, error) {
	owner, err := m.store.Owner(ctx, projectID)
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}

type mockEvents struct {
	events []domain.CommonsEvent
}

func (m *mockEvents) PublishCommonsEvent(ctx context.Context, event domain.CommonsEvent) error {
	m.events = append(m.events, event)
	return nil
}

func sampleRollup(projectID string, name string) domain.Rollup {
	return domain.Rollup{
		Project: domain.Project{
			ID:         projectID,
			Metadata:   map[string]any{"name": name},
			Components: []string{"block-a"},
		},
		Blocks: map[string]*domain.Block{
			"block-a": {ID: "block-a", Components: []string{"block-b"}, Metadata: map[string]any{"name": "a"}},
			"block-b": {ID: "block-b", Metadata: map[string]any{"name": "b"}},
		},
	}
}
