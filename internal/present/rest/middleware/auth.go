package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/geneticconstructor/constructor-store/internal/domain"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct{}

func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{}
}

// IdentifyIdentity copies the requester id resolved by the upstream
// authenticating proxy into the request context.
func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyIdentity")
		defer span.End()

		requester := c.Request().Header.Get(domain.RequesterIdHeader)
		if requester != "" {
			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, requester)
			span.SetAttributes(attribute.String("RequesterId", requester))
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Requester returns the identity set by IdentifyIdentity, or "".
func Requester(ctx context.Context) string {
	requester, _ := ctx.Value(domain.RequesterIdCtxKey).(string)
	return requester
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if Requester(c.Request().Context()) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "requester identity required")
		}
		return next(c)
	}
}
