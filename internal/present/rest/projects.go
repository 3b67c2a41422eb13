package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/present/rest/middleware"
	"github.com/geneticconstructor/constructor-store/internal/present/rest/presenter"
)

func (h *Handler) handleProjectWrite(c echo.Context) error {
	ctx := c.Request().Context()

	var rollup domain.Rollup
	if err := c.Bind(&rollup); err != nil {
		return presenter.BadRequest(c, err)
	}

	rev, err := h.versions.Save(ctx, c.Param("projectId"), rollup, middleware.Requester(ctx))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, rev)
}

func (h *Handler) handleProjectGet(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := domain.ParseVersionRef(c.QueryParam("version"))
	if err != nil {
		return presenter.Error(c, err)
	}

	rollup, err := h.versions.GetRollup(ctx, c.Param("projectId"), ref)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, rollup)
}

func (h *Handler) handleProjectExists(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := domain.ParseVersionRef(c.QueryParam("version"))
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}

	exists, err := h.versions.Exists(ctx, c.Param("projectId"), ref)
	if err != nil || !exists {
		return c.NoContent(http.StatusNotFound)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) handleProjectLog(c echo.Context) error {
	ctx := c.Request().Context()

	revs, err := h.versions.Log(ctx, c.Param("projectId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, revs)
}

func (h *Handler) handleBlocksGet(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := domain.ParseVersionRef(c.QueryParam("version"))
	if err != nil {
		return presenter.Error(c, err)
	}

	blocks, err := h.versions.BlocksGet(ctx, c.Param("projectId"), ref, splitList(c.QueryParam("ids"))...)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, blocks)
}

func (h *Handler) handleBlocksExist(c echo.Context) error {
	ctx := c.Request().Context()

	ref, err := domain.ParseVersionRef(c.QueryParam("version"))
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}

	exists, err := h.versions.BlocksExist(ctx, c.Param("projectId"), ref, splitList(c.QueryParam("ids"))...)
	if err != nil || !exists {
		return c.NoContent(http.StatusNotFound)
	}
	return c.NoContent(http.StatusOK)
}
