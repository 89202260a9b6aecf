package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"scolapay/internal/domain"
	"scolapay/internal/repository"
)

type ctxKey string

const actorKey ctxKey = "actor"

// Actor is the request-scoped identity every operation runs under: the
// authenticated user, the school (tenant) its queries are confined to and the
// role used for privilege checks.
type Actor struct {
	UserID   int64
	SchoolID string
	Role     string
}

func (a Actor) Privileged() bool {
	return a.Role == domain.RoleAdmin || a.Role == domain.RoleComptable
}

// TokenMiddleware authenticates via personal access tokens, either from the
// Authorization header or from a ?token= query parameter (the latter is what
// websocket clients use).
func TokenMiddleware(tokenRepo *repository.AccessTokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tok *domain.AccessToken

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				plain := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
				if plain != "" {
					if t, err := tokenRepo.FindByPlainToken(r.Context(), plain); err == nil {
						tok = t
					}
				}
			}

			if tok == nil {
				if plain := r.URL.Query().Get("token"); plain != "" {
					if t, err := tokenRepo.FindByPlainToken(r.Context(), plain); err == nil {
						tok = t
					}
				}
			}

			if tok == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if tok.ExpiresAt != nil && tok.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			actor := Actor{UserID: tok.UserID, SchoolID: tok.SchoolID, Role: tok.Role}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func GetActor(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok {
		return Actor{}, errors.New("actor not found in context")
	}
	return a, nil
}
