package auth

import (
	"context"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/policy"
)

const (
	claimsContextKey    = "claims"
	principalContextKey = "principal"
	userContextKey      = "current_user"
	adminContextKey     = "current_admin"
)

// UserLoader resolves the user behind a login token, including managed workspaces.
type UserLoader interface {
	FindByIDWithManaged(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// AdminLoader resolves the master admin behind an admin token.
type AdminLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Admin, error)
}

// JWTMiddleware verifies the bearer token and stores its claims in the context.
func JWTMiddleware(jwtService *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return jwtService.ValidateToken(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.ErrUnauthorized
		},
	})
}

// LoadPrincipal runs after JWTMiddleware. It rejects revoked or non-login tokens and
// resolves the caller into a policy.Principal.
func LoadPrincipal(store TokenStoreInterface, users UserLoader, admins AdminLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return apperrors.ErrUnauthorized
			}
			ctx := c.Request().Context()

			if claims.ID != "" {
				revoked, _ := store.IsAccessTokenBlacklisted(ctx, claims.ID)
				if revoked {
					return apperrors.ErrUnauthorized
				}
			}

			if claims.IsAdmin() {
				id, err := uuid.Parse(claims.AdminID)
				if err != nil {
					return apperrors.ErrUnauthorized
				}
				admin, err := admins.FindByID(ctx, id)
				if err != nil {
					return apperrors.ErrUnauthorized
				}
				SetAdmin(c, admin)
				return next(c)
			}

			if claims.Purpose != PurposeLogin {
				return apperrors.ErrUnauthorized
			}
			id, err := uuid.Parse(claims.UserID)
			if err != nil {
				return apperrors.ErrUnauthorized
			}
			user, err := users.FindByIDWithManaged(ctx, id)
			if err != nil {
				return apperrors.ErrUnauthorized
			}
			SetUser(c, user)
			return next(c)
		}
	}
}

// RequireAdmin allows only master admin callers.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AdminFrom(c) == nil {
				return apperrors.ErrForbidden
			}
			return next(c)
		}
	}
}

// SetUser stores an authenticated user and its principal in the context.
func SetUser(c echo.Context, user *model.User) {
	c.Set(userContextKey, user)
	c.Set(principalContextKey, policy.UserPrincipal(user))
}

// SetAdmin stores the authenticated master admin and its principal in the context.
func SetAdmin(c echo.Context, admin *model.Admin) {
	c.Set(adminContextKey, admin)
	c.Set(principalContextKey, policy.AdminPrincipal(admin.ID))
}

// ClaimsFrom returns the verified token claims, or nil.
func ClaimsFrom(c echo.Context) *Claims {
	claims, _ := c.Get(claimsContextKey).(*Claims)
	return claims
}

// PrincipalFrom returns the authenticated principal.
func PrincipalFrom(c echo.Context) (policy.Principal, bool) {
	p, ok := c.Get(principalContextKey).(policy.Principal)
	return p, ok
}

// UserFrom returns the authenticated user, or nil for admin callers.
func UserFrom(c echo.Context) *model.User {
	u, _ := c.Get(userContextKey).(*model.User)
	return u
}

// AdminFrom returns the authenticated admin, or nil for user callers.
func AdminFrom(c echo.Context) *model.Admin {
	a, _ := c.Get(adminContextKey).(*model.Admin)
	return a
}
