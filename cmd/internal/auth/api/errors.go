package authapi

import (
	"net/http"

	"go.uber.org/zap"

	"passage/cmd/internal/auth/session"
)

// writeServiceError renders a session failure. Refresh-token failures also
// clear every auth cookie so the client starts over with a login.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := session.AsError(err)
	if !ok {
		h.log.Error("auth.unexpected_error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, session.KindServer.String(), "internal error")
		return
	}

	switch e.Kind {
	case session.KindAuthentication,
		session.KindTokenExpired,
		session.KindJSONWebToken,
		session.KindNotFound,
		session.KindConflict,
		session.KindValidation,
		session.KindForbidden:
		h.log.Debug("auth.request.rejected",
			zap.String("path", r.URL.Path),
			zap.String("kind", e.Kind.String()),
			zap.Uint8("token_type", uint8(e.TokenType)),
			zap.Error(e.Err),
		)
	case session.KindServer:
		h.log.Error("auth.request.failed", zap.String("path", r.URL.Path), zap.Error(e.Err))
	default:
		h.log.Error("auth.request.unknown_kind", zap.Stringer("kind", e.Kind), zap.Error(err))
	}

	if e.ClearsCookies() {
		h.cookies.clearAuth(w)
	}
	writeJSON(w, e.Status(), errorResponse{Error: apiError{
		Code:      e.Kind.String(),
		Message:   e.Msg,
		TokenType: uint8(e.TokenType),
	}})
}

func writeValidationError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, session.KindValidation.String(), msg)
}
