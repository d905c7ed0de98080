package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/token"
)

type ctxKey int

const (
	ctxCallerKey ctxKey = iota
	ctxRequestIDKey
)

const requestIDHeader = "X-Request-ID"

// requestID tags each request with an id, reusing a valid incoming one.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestIDKey, id)))
	})
}

// identify resolves the bearer token into a domain.Caller. Requests
// without a token continue anonymously; a bad token is rejected.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := domain.Caller{Contract: h.platform}

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "Bearer token required")
				return
			}
			claims, err := h.tokens.ValidateToken(strings.TrimSpace(authHeader[len("Bearer "):]))
			if err != nil {
				h.logger.Warn("token validation failed",
					slog.Any("error", err),
					slog.Any("request_id", r.Context().Value(ctxRequestIDKey)),
				)
				writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			caller.Principal = claims.Account()
			caller.Trusted = claims.Role == token.RoleSettler
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxCallerKey, caller)))
	})
}

// requireCaller rejects anonymous requests. It must run after identify.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r.Context()).Anonymous() {
			writeJSONError(w, http.StatusUnauthorized, "Access token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(ctx context.Context) domain.Caller {
	caller, _ := ctx.Value(ctxCallerKey).(domain.Caller)
	return caller
}
