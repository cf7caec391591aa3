package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"passage/cmd/internal/auth/session"
)

// apiError is the body of every non-2xx response. TokenType tells the client
// which credential failed: 1 access, 2 refresh, 0 neither.
type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	TokenType uint8  `json:"token_type"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

var (
	errBodyTooLarge   = errors.New("request body too large")
	errNotJSON        = errors.New("content type must be application/json")
	errTrailingTokens = errors.New("unexpected data after JSON object")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// decodeBody decodes a single strict JSON object into dst, answering the
// request itself on failure. It reports whether the handler should go on.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeJSON(w, r, h.cfg.MaxBodyBytes, dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, session.KindValidation.String(), err.Error())
	case errors.Is(err, errNotJSON):
		writeError(w, http.StatusUnsupportedMediaType, session.KindValidation.String(), err.Error())
	default:
		writeValidationError(w, "invalid request body: "+err.Error())
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return errNotJSON
		}
	}
	if r.Body == nil || r.Body == http.NoBody {
		return io.ErrUnexpectedEOF
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return describeDecodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return errBodyTooLarge
		}
		return errTrailingTokens
	}
	return nil
}

func describeDecodeError(err error) error {
	var (
		mbe    *http.MaxBytesError
		syntax *json.SyntaxError
		typ    *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &mbe):
		return errBodyTooLarge
	case errors.As(err, &syntax):
		return fmt.Errorf("malformed JSON at offset %d", syntax.Offset)
	case errors.As(err, &typ):
		return fmt.Errorf("field %q has the wrong type", typ.Field)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return io.ErrUnexpectedEOF
	default:
		// Unknown fields surface here as plain errors from encoding/json.
		return err
	}
}
