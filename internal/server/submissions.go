package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Submission is one POA record as returned to the admin dashboard.
// Files are in upload order; ids are rendered as strings.
type Submission struct {
	ID             string    `json:"id"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email"`
	PaymentDate    string    `json:"paymentDate"`
	AccountDetails string    `json:"accountDetails"`
	Files          []fileRef `json:"files"`
	CreatedAt      time.Time `json:"createdAt"`
}

// listSubmissionsHandler handles GET /admin/submissions. Returns every
// submission newest-first with its ordered file list. No pagination;
// the collection is expected to stay small.
func (cfg Config) listSubmissionsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		rows, err := cfg.DB.QueryContext(r.Context(), `
			SELECT s.id, s.full_name, s.email, s.payment_date, s.account_details, s.created_at,
			       f.id, f.orig_name, f.content_type
			FROM submissions s
			LEFT JOIN submission_files f ON f.submission_id = s.id
			ORDER BY s.created_at DESC, s.id, f.position
		`)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=list_submissions err=%v", rid, err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		subs := []Submission{}
		for rows.Next() {
			var (
				s           Submission
				fileID      *string
				origName    *string
				contentType *string
			)
			if err := rows.Scan(&s.ID, &s.FullName, &s.Email, &s.PaymentDate,
				&s.AccountDetails, &s.CreatedAt, &fileID, &origName, &contentType); err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=scan_submission err=%v", rid, err)
				http.Error(w, "db error", http.StatusInternalServerError)
				return
			}

			if len(subs) == 0 || subs[len(subs)-1].ID != s.ID {
				s.Files = []fileRef{}
				subs = append(subs, s)
			}
			if fileID != nil {
				last := &subs[len(subs)-1]
				last.Files = append(last.Files, fileRef{
					FileID:      *fileID,
					Filename:    deref(origName),
					ContentType: deref(contentType),
				})
			}
		}
		if err := rows.Err(); err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=list_submissions_rows err=%v", rid, err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(subs); err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=encode_submissions err=%v", rid, err)
		}
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
