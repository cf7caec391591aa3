package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"passage/cmd/identity"
	"passage/cmd/internal/auth/session"
	"passage/cmd/internal/envconf"
)

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log *zap.Logger
	cfg Config

	sessions *session.Service
	cookies  *cookieJar
	limiter  Limiter
	validate *validator.Validate
	now      func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter overrides the default no-op login limiter.
func WithLimiter(l Limiter) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *zap.Logger, cfg Config, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if err := envconf.Validate(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		cookies:  newCookieJar(cfg, sessions.Config().RefreshTTL),
		limiter:  NoopLimiter{},
		validate: envconf.Validator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes returns the auth router, meant to be mounted under /auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/logout", h.handleLogout)
		r.Post("/logout-all", h.handleLogoutAll)
		r.Get("/me", h.handleMe)
		r.Get("/sessions", h.handleSessions)
		r.With(RequireRole(identity.RoleAdmin)).Delete("/tokens", h.handleRevokeBefore)
	})
	return r
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "username, password, and a valid device are required")
		return
	}

	ctx := r.Context()
	ip := ipString(clientIP(r, h.cfg.TrustProxy))
	username := identity.NormalizeUsername(req.Username)

	keys := h.loginKeys(ip, username)
	if !h.allowLogin(ctx, w, keys) {
		return
	}

	res, err := h.sessions.Login(ctx, h.now(), session.LoginInput{
		Username: username,
		Password: req.Password,
		Device:   req.Device,
		IP:       ip,
	})
	if err != nil {
		if e, ok := session.AsError(err); ok && e.Kind == session.KindAuthentication {
			h.recordLoginFailure(ctx, keys)
		}
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.limiter.Reset(ctx, keys.user.key); err != nil {
		h.log.Warn("auth.login.throttle.reset.fail", zap.Error(err))
	}

	if err := h.setSessionCookies(w, res); err != nil {
		h.log.Error("auth.login.cookie.fail", zap.Error(err))
		writeError(w, http.StatusInternalServerError, session.KindServer.String(), "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
		DeviceID:        res.DeviceID,
		User:            userResponse{ID: res.UserID, Role: res.Role.String()},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "invalid device")
		return
	}

	now := h.now()
	res, err := h.sessions.RefreshAccessToken(r.Context(), now, session.RefreshInput{
		Token:       h.cookies.value(r, CookieRefreshToken),
		Fingerprint: h.cookies.value(r, CookieRefreshFingerprint),
		Device:      req.Device,
		IP:          ipString(clientIP(r, h.cfg.TrustProxy)),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.cookies.set(w, CookieAccessFingerprint, res.AccessFingerprint, res.RefreshExpiresAt); err != nil {
		h.log.Error("auth.refresh.cookie.fail", zap.Error(err))
		writeError(w, http.StatusInternalServerError, session.KindServer.String(), "internal error")
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
		DeviceID:        res.DeviceID,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	var req logoutRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "device id is required")
		return
	}

	ip := ipString(clientIP(r, h.cfg.TrustProxy))
	if err := h.sessions.Logout(r.Context(), h.now(), p.UserID, req.Device.ID, ip); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.cookies.clearAuth(w)
	h.cookies.expire(w, cookieLegacyCSRF)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	if err := h.sessions.LogoutAllDevices(r.Context(), p.UserID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.cookies.clearAuth(w)
	h.cookies.expire(w, cookieLegacyCSRF)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		User:      userResponse{ID: p.UserID, Role: p.Role.String()},
		ExpiresAt: p.ExpiresAt,
	})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	rec, err := h.sessions.ActiveSession(r.Context(), h.now(), p.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionsResponse(rec))
}

func (h *Handler) handleRevokeBefore(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	raw := strings.TrimSpace(r.URL.Query().Get("before"))
	cutoff, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeValidationError(w, "before must be an RFC3339 timestamp")
		return
	}

	n, err := h.sessions.RevokeBefore(r.Context(), cutoff.UTC())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.log.Warn("auth.tokens.revoked", zap.String("admin_id", p.UserID), zap.Time("before", cutoff), zap.Int64("deleted", n))
	writeJSON(w, http.StatusOK, revokeResponse{Deleted: n})
}

// ---- helpers ----

type loginBudget struct {
	key string
	max int
}

type loginThrottle struct {
	ip   loginBudget
	user loginBudget
}

// loginKeys scopes the per-username budget to the client IP, so failures
// from one source cannot lock the account out for everyone else.
func (h *Handler) loginKeys(ip, username string) loginThrottle {
	if ip == "" {
		ip = "unknown"
	}
	return loginThrottle{
		ip:   loginBudget{key: "login:ip:" + ip, max: h.cfg.LoginIPMaxAttempts},
		user: loginBudget{key: "login:user:" + username + "|" + ip, max: h.cfg.LoginMaxAttempts},
	}
}

// allowLogin checks the failure budgets without spending them. It writes the
// response itself when the attempt is refused.
func (h *Handler) allowLogin(ctx context.Context, w http.ResponseWriter, keys loginThrottle) bool {
	for _, b := range []loginBudget{keys.ip, keys.user} {
		allowed, retryAfter, err := h.limiter.Check(ctx, b.key, b.max)
		if err != nil {
			h.log.Error("auth.login.throttle.fail", zap.String("key", b.key), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
			return false
		}
		if !allowed {
			h.log.Info("auth.login.rate_limited", zap.String("key", b.key), zap.Duration("retry_after", retryAfter))
			writeRateLimited(w, retryAfter)
			return false
		}
	}
	return true
}

// recordLoginFailure spends one attempt from each budget. Limiter errors are
// logged; the 401 already being written is the answer that matters.
func (h *Handler) recordLoginFailure(ctx context.Context, keys loginThrottle) {
	for _, b := range []loginBudget{keys.ip, keys.user} {
		if err := h.limiter.Fail(ctx, b.key); err != nil {
			h.log.Error("auth.login.throttle.record.fail", zap.String("key", b.key), zap.Error(err))
		}
	}
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, res session.LoginResult) error {
	exp := res.RefreshExpiresAt
	if err := h.cookies.set(w, CookieAccessFingerprint, res.AccessFingerprint, exp); err != nil {
		return err
	}
	if err := h.cookies.set(w, CookieRefreshToken, res.RefreshToken, exp); err != nil {
		return err
	}
	return h.cookies.set(w, CookieRefreshFingerprint, res.RefreshFingerprint, exp)
}
