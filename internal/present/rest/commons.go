package rest

import (
	"github.com/labstack/echo/v4"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/present/rest/middleware"
	"github.com/geneticconstructor/constructor-store/internal/present/rest/presenter"
	"github.com/geneticconstructor/constructor-store/internal/usecase"
)

// publishRequest publishes an existing version, or writes Rollup as a new
// version first when it is present.
type publishRequest struct {
	usecase.PublishOptions
	Rollup *domain.Rollup `json:"rollup"`
}

func (h *Handler) handleCommonsQuery(c echo.Context) error {
	ctx := c.Request().Context()

	var q usecase.CommonsQuery
	if err := c.Bind(&q); err != nil {
		return presenter.BadRequest(c, err)
	}

	projects, err := h.commons.Query(ctx, q)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, projects)
}

func (h *Handler) handleCommonsRetrieve(c echo.Context) error {
	ctx := c.Request().Context()

	version, err := versionParam(c.Param("version"))
	if err != nil {
		return presenter.Error(c, err)
	}

	rollup, err := h.commons.Retrieve(ctx, c.Param("projectId"), version)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, rollup)
}

func (h *Handler) handleCommonsVersions(c echo.Context) error {
	ctx := c.Request().Context()

	versions, err := h.commons.RetrieveVersions(ctx, c.Param("projectId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, versions)
}

func (h *Handler) handleCommonsPublish(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("projectId")
	owner := middleware.Requester(ctx)

	version, err := versionParam(c.Param("version"))
	if err != nil {
		return presenter.Error(c, err)
	}

	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	var snapshot domain.Snapshot
	if req.Rollup != nil {
		if version != nil {
			return presenter.BadRequestMessage(c, "a rollup cannot be published at an existing version")
		}
		snapshot, err = h.commons.Publish(ctx, projectID, owner, *req.Rollup, req.PublishOptions)
	} else {
		snapshot, err = h.commons.PublishVersion(ctx, projectID, owner, version, req.PublishOptions)
	}
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, snapshot)
}

func (h *Handler) handleCommonsUnpublish(c echo.Context) error {
	ctx := c.Request().Context()

	version, err := versionParam(c.Param("version"))
	if err != nil {
		return presenter.Error(c, err)
	}

	snapshots, err := h.commons.Unpublish(ctx, c.Param("projectId"), middleware.Requester(ctx), version)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, snapshots)
}
