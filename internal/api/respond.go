package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/silencie/silencie/internal/middleware"
	"github.com/silencie/silencie/internal/services"
	"github.com/silencie/silencie/internal/utils"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict, services.ErrorAlreadySubmitted:
		return http.StatusConflict
	case services.ErrorDeadlineExpired:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// writeError renders err as JSON. Service errors keep their code and, when
// they carry a key, a message in the request locale; anything else is
// logged and reported as an internal error.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		rt.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
		return
	}
	msg := err.Error()
	if se.Key != "" {
		msg = utils.T(middleware.LocaleFromContext(r.Context()), se.Key)
	}
	writeJSON(w, statusFor(se.Code), errorBody{Error: msg, Code: string(se.Code)})
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return services.NewInvalidError("invalid JSON body: " + err.Error())
	}
	return nil
}

func identity(r *http.Request) middleware.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}
