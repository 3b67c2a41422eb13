package gateway

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/geneticconstructor/constructor-store/internal/usecase"
)

// OwnerSource looks up the owner of a project.
type OwnerSource interface {
	Owner(ctx context.Context, projectID string) (string, error)
}

// PermissionGateway answers ownership questions. Owners never change once a
// project exists, so lookups are cached in process.
type PermissionGateway struct {
	source OwnerSource
	cache  *cache.Cache
}

func NewPermissionGateway(source OwnerSource, ttl time.Duration) *PermissionGateway {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PermissionGateway{
		source: source,
		cache:  cache.New(ttl, ttl+5*time.Minute),
	}
}

// UserOwnsProject fails with NotFound when the project has never been written.
func (g *PermissionGateway) UserOwnsProject(ctx context.Context, userID, projectID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	if cached, found := g.cache.Get(projectID); found {
		return cached.(string) == userID, nil
	}

	owner, err := g.source.Owner(ctx, projectID)
	if err != nil {
		return false, err
	}
	g.cache.Set(projectID, owner, cache.DefaultExpiration)

	return owner == userID, nil
}

var _ usecase.PermissionChecker = (*PermissionGateway)(nil)
