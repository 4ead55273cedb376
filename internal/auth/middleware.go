package auth

import (
	"context"
	"fmt"
	"ms-booking/internal/apperr"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
	"net/http"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// Authenticator turns a bearer token into the caller's Identity. Admin rights
// come from matching the configured admin email.
type Authenticator struct {
	Verifier   Verifier
	Cache      IdentityCache
	AdminEmail string
	Logger     *logger.Logger
}

func (a *Authenticator) Resolve(ctx context.Context, rawToken string) (models.Identity, error) {
	claims, err := a.claims(ctx, rawToken)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{
		UserID:  claims.Subject,
		Email:   claims.Email,
		IsAdmin: a.isAdmin(claims.Email),
	}, nil
}

func (a *Authenticator) claims(ctx context.Context, rawToken string) (Claims, error) {
	if a.Cache != nil {
		cached, err := a.Cache.Get(ctx, rawToken)
		if err != nil {
			a.Logger.Warn("AUTH", fmt.Sprintf("identity cache unavailable: %v", err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	claims, err := a.Verifier.Verify(ctx, rawToken)
	if err != nil {
		return Claims{}, err
	}

	if a.Cache != nil {
		if err := a.Cache.Set(ctx, rawToken, claims); err != nil {
			a.Logger.Warn("AUTH", fmt.Sprintf("failed to cache identity: %v", err))
		}
	}
	return claims, nil
}

func (a *Authenticator) isAdmin(email string) bool {
	return a.AdminEmail != "" && email != "" && strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(a.AdminEmail))
}

// Middleware rejects requests without a valid token and stores the resolved
// Identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, err := ExtractTokenFromRequest(r)
		if err != nil {
			utils.WriteError(w, apperr.Unauthorized(err.Error()))
			return
		}

		identity, err := a.Resolve(r.Context(), rawToken)
		if err != nil {
			a.Logger.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			utils.WriteError(w, apperr.Unauthorized("invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// FromContext returns the caller's identity; ok is false for anonymous requests.
func FromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok && identity.UserID != ""
}

// UserID is a shorthand for FromContext(ctx).UserID.
func UserID(ctx context.Context) string {
	identity, _ := FromContext(ctx)
	return identity.UserID
}
