package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/doorman-auth/doorman/pkg/logger"
)

// writeJSON encodes v as the response body. Content-Type defaults to
// application/json when ctype is empty.
func writeJSON(w http.ResponseWriter, status int, ctype string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorw("failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if ctype == "" {
		ctype = "application/json"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// fail sends a terse status-only response. Details stay in the server log.
func fail(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// unauthorized sends a 401 with the challenge header. Basic is offered only
// when the option is enabled.
func (h *Handler) unauthorized(w http.ResponseWriter) {
	if h.BasicAuth {
		w.Header().Set("WWW-Authenticate", `Bearer realm="doorman", Basic realm="doorman"`)
	} else {
		w.Header().Set("WWW-Authenticate", `Bearer realm="doorman"`)
	}
	w.WriteHeader(http.StatusUnauthorized)
}
