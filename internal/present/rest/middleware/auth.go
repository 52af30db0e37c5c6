package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/neighbournet/neighbournet/internal/domain"
	"github.com/neighbournet/neighbournet/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyActor extracts a bearer token when present and attaches the
// verified actor identity to the request context. Requests without a valid
// token pass through unauthenticated; handlers that need an identity use
// Require.
func (s *AuthMiddleware) IdentifyActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyActor")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			{
				authType, token := split[0], split[1]
				if authType != "Bearer" {
					span.RecordError(fmt.Errorf("only Bearer is acceptable"))
					goto skipCheckAuthorization
				}

				result, err := s.auth.VerifyToken(ctx, token)
				if err != nil {
					span.RecordError(pkgerrors.Wrap(err, "AuthMiddleware.IdentifyActor: VerifyToken failed"))
					goto skipCheckAuthorization
				}

				ctx = context.WithValue(ctx, domain.ActorIdCtxKey, result.ActorID)
				ctx = context.WithValue(ctx, domain.ActorRoleCtxKey, result.Role)
				span.SetAttributes(attribute.String("ActorId", result.ActorID))
			}
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ActorID returns the verified actor identity from the request context, or
// "" when the request is unauthenticated.
func ActorID(c echo.Context) string {
	id, _ := c.Request().Context().Value(domain.ActorIdCtxKey).(string)
	return id
}
