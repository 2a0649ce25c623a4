package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/silencie/silencie/internal/utils"
)

// writeError renders the same JSON error body as the API handlers, localized
// when key names a translation.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, key string) {
	msg := http.StatusText(status)
	if key != "" {
		msg = utils.T(LocaleFromContext(r.Context()), key)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
