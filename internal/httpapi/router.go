package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// maxChunkBodyBytes bounds the request body gorilla/mux will read for a
// chunk upload, derived from the configured client chunk size with 20%
// headroom, floored at 50MiB so a misconfigured small chunk size never
// rejects a legitimate request.
func maxChunkBodyBytes(clientChunkBytes int64) int64 {
	bound := int64(float64(clientChunkBytes) * 1.2)
	const floor = 50 * 1024 * 1024
	if bound < floor {
		return floor
	}
	return bound
}

// corsMiddleware reproduces original_source/main.rs's permissive
// tower_http CorsLayer::permissive() (Any origin/method/header) — no pack
// repo carries a Go CORS package, so this is a hand-rolled equivalent.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *State) chunkBodyLimit(next http.Handler) http.Handler {
	limit := maxChunkBodyBytes(s.Cfg.ClientChunkBytes)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the full HTTP route table, mirroring the layout
// original_source/main.rs's axum Router wires (folders, files, upload
// lifecycle, streamed download/preview/thumbnail, search/stats/settings).
func (s *State) NewRouter(staticDir string) http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/folders", s.handleListFolders).Methods(http.MethodGet)
	api.HandleFunc("/folders", s.handleCreateFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{id}", s.handleDeleteFolder).Methods(http.MethodDelete)

	api.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/files/{id}", s.handleDeleteFile).Methods(http.MethodDelete)
	api.HandleFunc("/files/{id}", s.handleRenameFile).Methods(http.MethodPatch)
	api.HandleFunc("/files/{id}/move", s.handleMoveFile).Methods(http.MethodPost)

	api.HandleFunc("/upload/init", s.handleInitUpload).Methods(http.MethodPost)
	api.Handle("/upload/chunk/{sid}/{idx}", s.chunkBodyLimit(http.HandlerFunc(s.handleUploadChunk))).Methods(http.MethodPost)
	api.HandleFunc("/upload/session/{sid}", s.handleGetUploadSession).Methods(http.MethodGet)
	api.HandleFunc("/upload/session/{sid}", s.handleCancelUpload).Methods(http.MethodDelete)
	api.HandleFunc("/upload/complete/{sid}", s.handleCompleteUpload).Methods(http.MethodPost)

	api.HandleFunc("/merge/{id}", s.handleMergeFile).Methods(http.MethodGet)
	api.HandleFunc("/preview/{id}", s.handlePreviewFile).Methods(http.MethodGet)
	api.HandleFunc("/thumbnail/{id}", s.handleThumbnail).Methods(http.MethodGet)

	api.HandleFunc("/search", s.handleSearchFiles).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleSaveSettings).Methods(http.MethodPost)

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}

	return r
}
