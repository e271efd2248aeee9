package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// submitResp is the JSON response returned after a successful
// submission. ID is the generated submission identifier.
type submitResp struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// fileRef records one stored attachment, in upload order.
type fileRef struct {
	FileID      string `json:"fileId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// requiredFields are the form fields a submission must carry, in the
// order they are reported when missing.
var requiredFields = [4]string{"fullName", "email", "paymentDate", "accountDetails"}

// maxFieldBytes caps a single plain form field. Fields hold short
// strings; anything bigger is rejected rather than truncated.
const maxFieldBytes = 1 << 20

// submitHandler handles POST /submit-poa multipart submissions.
//
// The four string fields are required and only checked for presence.
// Each part of the "documents" field is streamed straight into MinIO
// under a fresh UUID object key; the part is never buffered in full.
// Once every attachment is stored, the submission row and its file
// rows are inserted in one transaction. There is no compensation path:
// a failure after some uploads leaves orphaned blobs behind (see the
// orphan sweep in sweep.go).
func (cfg Config) submitHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if cfg.MaxUploadBytes > 0 {
			if r.ContentLength > cfg.MaxUploadBytes {
				http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		fields := map[string]string{}
		var refs []fileRef
		var keys []string // object keys, parallel to refs

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				var mbe *http.MaxBytesError
				if errors.As(err, &mbe) {
					http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "bad multipart", http.StatusBadRequest)
				return
			}

			name := part.FormName()
			if part.FileName() == "" {
				// Plain form field: small, read in full.
				b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
				_ = part.Close()
				if err != nil {
					http.Error(w, "bad multipart", http.StatusBadRequest)
					return
				}
				if len(b) > maxFieldBytes {
					http.Error(w, name+" is too long", http.StatusBadRequest)
					return
				}
				fields[name] = string(b)
				continue
			}

			if name != "documents" {
				_ = part.Close()
				continue
			}

			fileID := uuid.New()
			objectKey := "uploads/" + fileID.String()
			contentType := part.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			// Stream the part into the bucket; -1 size keeps the
			// client in chunked mode.
			_, err = cfg.Minio.PutObject(ctx, cfg.Bucket, objectKey, part, -1,
				minio.PutObjectOptions{
					ContentType: contentType,
					UserMetadata: map[string]string{
						"Original-Name": part.FileName(),
					},
				})
			_ = part.Close()
			if err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=putobject err=%v", rid, err)
				http.Error(w, "upload failed", http.StatusBadGateway)
				return
			}

			refs = append(refs, fileRef{
				FileID:      fileID.String(),
				Filename:    part.FileName(),
				ContentType: contentType,
			})
			keys = append(keys, objectKey)
		}

		for _, f := range requiredFields {
			if strings.TrimSpace(fields[f]) == "" {
				http.Error(w, f+" is required", http.StatusBadRequest)
				return
			}
		}

		if len(refs) == 0 {
			http.Error(w, "At least one document required", http.StatusBadRequest)
			return
		}

		id := uuid.New()
		createdAt := time.Now().UTC()

		tx, err := cfg.DB.BeginTx(ctx, nil)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO submissions (id, full_name, email, payment_date, account_details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, fields["fullName"], fields["email"], fields["paymentDate"], fields["accountDetails"], createdAt)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=insert_submission err=%v", rid, err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		for i, ref := range refs {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO submission_files (id, submission_id, position, orig_name, content_type, object_key)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, ref.FileID, id, i, ref.Filename, ref.ContentType, keys[i])
			if err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=insert_file err=%v", rid, err)
				http.Error(w, "db error", http.StatusInternalServerError)
				return
			}
		}

		if err := tx.Commit(); err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(submitResp{Success: true, ID: id.String()})
	})
}
