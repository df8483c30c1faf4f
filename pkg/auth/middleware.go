package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/ghuser/lendingdesk/pkg/httpx"
	"github.com/ghuser/lendingdesk/pkg/logger"
)

const (
	sessionName        = "lendingdesk_session"
	sessionHolderIDKey = "holder_id"
	sessionRoleKey     = "role"
)

// RequireAuth is a chi middleware that resolves the caller's identity and
// injects it into the request context.
//
// A Bearer token in the Authorization header wins. Without one the session
// cookie is consulted. Either source may be nil to disable it. Returns 401
// when neither yields a valid holder.
//
// After this middleware, handlers can safely call auth.IdentityFromCtx(r.Context()).
func RequireAuth(tokens *TokenVerifier, store sessions.Store, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearerToken(r); ok {
				if tokens == nil {
					httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
					return
				}
				id, err := tokens.Verify(raw)
				if err != nil {
					log.WarnContext(r.Context(), "invalid bearer token", "error", err)
					httpx.JSONError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			if store == nil {
				httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			session, err := store.Get(r, sessionName)
			if err != nil {
				log.WarnContext(r.Context(), "invalid session cookie", "error", err)
				httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			holderStr, ok := session.Values[sessionHolderIDKey].(string)
			if !ok || holderStr == "" {
				log.WarnContext(r.Context(), "session missing holder_id")
				httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			holderID, err := uuid.Parse(holderStr)
			if err != nil {
				log.WarnContext(r.Context(), "invalid holder_id in session", "holder_id", holderStr, "error", err)
				httpx.JSONError(w, http.StatusUnauthorized, "invalid session data")
				return
			}

			role, _ := session.Values[sessionRoleKey].(string)
			ctx := WithIdentity(r.Context(), Identity{HolderID: holderID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrivileged rejects callers whose role does not match marker with 403.
// Must run after RequireAuth.
func RequirePrivileged(marker string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := IdentityFromCtx(r.Context())
			if err != nil {
				httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !id.HasRole(marker) {
				log.WarnContext(r.Context(), "privileged route denied", "holder_id", id.HolderID, "role", id.Role)
				httpx.JSONError(w, http.StatusForbidden, "privileged role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// SaveIdentity writes id into the caller's session. The identity service's
// login flow calls this against the shared store.
func SaveIdentity(w http.ResponseWriter, r *http.Request, store sessions.Store, id Identity) error {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return err
	}
	session.Values[sessionHolderIDKey] = id.HolderID.String()
	session.Values[sessionRoleKey] = id.Role
	return session.Save(r, w)
}
