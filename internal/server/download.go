package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// downloadFileHandler handles GET /admin/file/{fileId}. It resolves
// the file id against submission metadata and streams the object
// straight from the bucket; the body is never buffered in full.
//
// The declared content type and original name come from the metadata
// row; when those are empty the object's own stat metadata is used,
// and application/octet-stream as the last resort.
func (cfg Config) downloadFileHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		idStr := strings.TrimPrefix(r.URL.Path, "/admin/file/")
		if idStr == "" || strings.Contains(idStr, "/") {
			http.Error(w, "bad file id", http.StatusBadRequest)
			return
		}

		fileID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "bad file id", http.StatusBadRequest)
			return
		}

		var (
			objectKey   string
			origName    string
			contentType string
		)
		err = cfg.DB.QueryRowContext(r.Context(), `
			SELECT object_key, orig_name, content_type
			FROM submission_files
			WHERE id = $1
		`, fileID).Scan(&objectKey, &origName, &contentType)
		if err != nil {
			if err == sql.ErrNoRows {
				http.Error(w, "file not found", http.StatusNotFound)
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=file_lookup err=%v", rid, err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		obj, err := cfg.Minio.GetObject(ctx, cfg.Bucket, objectKey, minio.GetObjectOptions{})
		if err != nil {
			http.Error(w, "storage error", http.StatusBadGateway)
			return
		}
		defer func() { _ = obj.Close() }()

		// Force an early error for a missing object; also yields the
		// stored fallback metadata.
		stat, statErr := obj.Stat()
		if statErr != nil {
			if minio.ToErrorResponse(statErr).Code == "NoSuchKey" {
				http.Error(w, "file not found", http.StatusNotFound)
				return
			}
			http.Error(w, "storage error", http.StatusBadGateway)
			return
		}

		if contentType == "" {
			contentType = stat.ContentType
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if origName == "" {
			origName = stat.UserMetadata["Original-Name"]
		}
		if origName == "" {
			origName = path.Base(objectKey)
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, origName))
		w.WriteHeader(http.StatusOK)

		_, _ = io.Copy(w, obj)
	})
}
