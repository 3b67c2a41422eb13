package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/present/rest/middleware"
	"github.com/geneticconstructor/constructor-store/internal/service"
	"github.com/geneticconstructor/constructor-store/internal/usecase"
)

type Handler struct {
	config    domain.Config
	versions  *usecase.VersionUsecase
	snapshots *usecase.SnapshotUsecase
	commons   *usecase.CommonsUsecase
	signal    *service.SignalService
}

func NewHandler(
	config domain.Config,
	versions *usecase.VersionUsecase,
	snapshots *usecase.SnapshotUsecase,
	commons *usecase.CommonsUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:    config,
		versions:  versions,
		snapshots: snapshots,
		commons:   commons,
		signal:    signal,
	}
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validator.Struct(i)
}

func NewValidator() echo.Validator {
	return &requestValidator{validator: validator.New()}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	if e.Validator == nil {
		e.Validator = NewValidator()
	}

	auth := middleware.NewAuthMiddleware()
	e.Use(auth.IdentifyIdentity)

	projects := e.Group("/projects")
	projects.POST("/:projectId", h.handleProjectWrite, middleware.RequireIdentity)
	projects.GET("/:projectId", h.handleProjectGet)
	projects.HEAD("/:projectId", h.handleProjectExists)
	projects.GET("/:projectId/log", h.handleProjectLog)
	projects.GET("/:projectId/blocks", h.handleBlocksGet)
	projects.HEAD("/:projectId/blocks", h.handleBlocksExist)

	snapshots := e.Group("/snapshots")
	snapshots.POST("", h.handleSnapshotCreate, middleware.RequireIdentity)
	snapshots.POST("/tags", h.handleSnapshotTags)
	snapshots.POST("/keywords", h.handleSnapshotKeywords)
	snapshots.POST("/kwm", h.handleSnapshotKeywordMap)
	snapshots.GET("/uuid/:id", h.handleSnapshotGet)
	snapshots.DELETE("/uuid/:id", h.handleSnapshotDelete, middleware.RequireIdentity)
	snapshots.GET("/:projectId", h.handleSnapshotList)
	snapshots.HEAD("/:projectId", h.handleSnapshotLatest)

	commons := e.Group("/commons")
	commons.POST("/query", h.handleCommonsQuery)
	commons.GET("/realtime", h.handleRealtime)
	commons.GET("/:projectId/versions", h.handleCommonsVersions)
	commons.GET("/:projectId", h.handleCommonsRetrieve)
	commons.GET("/:projectId/:version", h.handleCommonsRetrieve)
	commons.POST("/:projectId", h.handleCommonsPublish, middleware.RequireIdentity)
	commons.POST("/:projectId/:version", h.handleCommonsPublish, middleware.RequireIdentity)
	commons.DELETE("/:projectId", h.handleCommonsUnpublish, middleware.RequireIdentity)
	commons.DELETE("/:projectId/:version", h.handleCommonsUnpublish, middleware.RequireIdentity)
}

// versionParam parses an optional numeric version. Anything that is not a
// non-negative integer names no version and is reported as NotFound.
func versionParam(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil, domain.NotFoundError{Resource: fmt.Sprintf("version %q", raw)}
	}
	return &n, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type     string   `json:"type"`
	Projects []string `json:"projects"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if !h.signal.Enabled() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime feed is not configured"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan domain.CommonsEvent)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Projects:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Projects),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
