package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTPAPI] encoding response: %v", err)
	}
}

// writeError maps err to the status code spec.md §7 assigns its Kind and
// writes the {"detail": ...} error shape.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apierr.KindOf(err) {
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindBadRequest:
		status = http.StatusBadRequest
	case apierr.KindUnsupportedMedia:
		status = http.StatusUnsupportedMediaType
	case apierr.KindBackendTransient, apierr.KindBackendPermanent, apierr.KindInternal:
		status = http.StatusInternalServerError
	}
	log.Printf("[HTTPAPI] error: %v", err)
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeError(w, apierr.BadRequest(format, args...))
}
