package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/reconquery/reconquery/internal/storage"
)

// handleArtifactDownload streams an exported file straight from the object
// store, for deployments where the bucket is not reachable by the user.
func handleArtifactDownload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if strings.TrimSpace(key) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "KEY_REQUIRED", "artifact key is required", false, nil)
		return
	}

	reader, err := deps.Artifacts.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "ARTIFACT_NOT_FOUND", "artifact was not found", false, map[string]any{"key": key})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "ARTIFACT_ERROR", "failed to load artifact", true, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.Header().Set("Content-Disposition", "attachment")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".csv"):
		return "text/csv"
	case strings.HasSuffix(key, ".parquet"):
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
