package rest

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/present/rest/middleware"
	"github.com/geneticconstructor/constructor-store/internal/present/rest/presenter"
	"github.com/geneticconstructor/constructor-store/internal/usecase"
)

type keywordQuery struct {
	Keywords  []string    `json:"keywords"`
	Tags      domain.Tags `json:"tags"`
	ProjectID string      `json:"projectId"`
}

type deleteResponse struct {
	NumDeleted int64 `json:"numDeleted"`
}

// projectFilter prefers the ?project= query parameter over the body field.
func projectFilter(c echo.Context, fromBody string) string {
	if project := c.QueryParam("project"); project != "" {
		return project
	}
	return fromBody
}

func (h *Handler) handleSnapshotCreate(c echo.Context) error {
	ctx := c.Request().Context()

	var input usecase.SnapshotInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}
	requester := middleware.Requester(ctx)
	if input.Owner == "" {
		input.Owner = requester
	}
	if err := c.Validate(&input); err != nil {
		return presenter.BadRequest(c, err)
	}

	snapshot, err := h.snapshots.Create(ctx, requester, input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, snapshot)
}

func (h *Handler) handleSnapshotGet(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, err := h.snapshots.GetByUUID(ctx, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, snapshot)
}

func (h *Handler) handleSnapshotList(c echo.Context) error {
	ctx := c.Request().Context()

	version, err := versionParam(c.QueryParam("version"))
	if err != nil {
		return presenter.Error(c, err)
	}

	snapshots, err := h.snapshots.GetByProject(ctx, c.Param("projectId"), version)
	if err != nil {
		return presenter.Error(c, err)
	}
	if len(snapshots) == 0 {
		return presenter.NotFound(c, "no snapshots for project "+c.Param("projectId"))
	}
	return presenter.OK(c, snapshots)
}

func (h *Handler) handleSnapshotLatest(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, err := h.snapshots.Latest(ctx, c.Param("projectId"))
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set(domain.LatestSnapshotHeader, snapshot.ID)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) handleSnapshotTags(c echo.Context) error {
	ctx := c.Request().Context()

	tags := domain.Tags{}
	if c.Request().ContentLength != 0 {
		if err := json.NewDecoder(c.Request().Body).Decode(&tags); err != nil {
			return presenter.BadRequest(c, err)
		}
	}

	snapshots, err := h.snapshots.QueryByTags(ctx, tags, projectFilter(c, ""))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, snapshots)
}

func (h *Handler) handleSnapshotKeywords(c echo.Context) error {
	ctx := c.Request().Context()

	var q keywordQuery
	if err := c.Bind(&q); err != nil {
		return presenter.BadRequest(c, err)
	}

	snapshots, err := h.snapshots.QueryByKeywords(ctx, q.Keywords, q.Tags, projectFilter(c, q.ProjectID))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, snapshots)
}

func (h *Handler) handleSnapshotKeywordMap(c echo.Context) error {
	ctx := c.Request().Context()

	var q keywordQuery
	if err := c.Bind(&q); err != nil {
		return presenter.BadRequest(c, err)
	}

	counts, err := h.snapshots.KeywordMap(ctx, q.Keywords, q.Tags, projectFilter(c, q.ProjectID))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, counts)
}

func (h *Handler) handleSnapshotDelete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	requester := middleware.Requester(ctx)

	var (
		n   int64
		err error
	)
	if c.QueryParam("destroy") == "true" {
		n, err = h.snapshots.Destroy(ctx, requester, id)
	} else {
		n, err = h.snapshots.SoftDelete(ctx, requester, id)
	}
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, deleteResponse{NumDeleted: n})
}
