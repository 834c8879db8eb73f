package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/anshgupta/storekart-backend/api/responses"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
)

// Callers are identified by the X-User-Id header set by the edge proxy.
// Authentication itself happens upstream.
const userIDHeader = "X-User-Id"

type contextKey string

const ctxUserID contextKey = "user_id"

// RequireUser rejects requests without a well-formed caller id and injects
// it into the request context.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(userIDHeader)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed caller identity"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the caller id injected by RequireUser.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
