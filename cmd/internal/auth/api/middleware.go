package authapi

import (
	"context"
	"net/http"
	"strings"

	"passage/cmd/identity"
	"passage/cmd/internal/auth/session"
)

type principalKey struct{}

// PrincipalFrom returns the authenticated principal stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(session.Principal)
	return p, ok
}

// RequireAuth verifies the bearer access token against the signed
// accessTokenFingerprint cookie.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp := h.cookies.value(r, CookieAccessFingerprint)
		p, err := h.sessions.Authenticate(h.now(), bearerToken(r), fp)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// RequireRole rejects principals below min. It must run after RequireAuth.
func RequireRole(min identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, session.KindAuthentication.String(), "authentication required")
				return
			}
			if !p.Role.AtLeast(min) {
				writeError(w, http.StatusForbidden, session.KindForbidden.String(), "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
