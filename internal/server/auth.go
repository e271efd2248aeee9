// auth.go - Stateless admin session cookies.
//
// Implements HMAC-signed cookie sessions and the admin login/logout
// handlers. The session carries a single admin flag; there is no user
// database.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds session-related configuration used by the HTTP
// handlers. Unit tests can construct this directly.
//
// When neither AdminPass nor AdminPassHash is set, login grants the
// admin flag unconditionally. That mirrors the original deployment and
// is only acceptable for local development; main logs a warning when
// it detects this.
type AuthConfig struct {
	AdminPass     string // plain shared secret, optional
	AdminPassHash string // bcrypt hash, takes precedence over AdminPass
	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
}

type sessionPayload struct {
	Admin bool  `json:"admin"`
	Exp   int64 `json:"exp"`
}

func (a AuthConfig) cookieName() string {
	if a.CookieName == "" {
		return "poa_session"
	}
	return a.CookieName
}

func (a AuthConfig) ttl() time.Duration {
	if a.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return a.SessionTTL
}

func (a AuthConfig) secretBytes() []byte {
	return []byte(a.SessionSecret)
}

func signPayload(secret []byte, msg string) string {
	m := hmac.New(sha256.New, secret)
	_, _ = m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func encodeSession(p sessionPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeSession(token string) (sessionPayload, error) {
	var p sessionPayload
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// makeToken returns "payload.signature"
func (a AuthConfig) makeToken() (string, time.Time, error) {
	exp := time.Now().Add(a.ttl())
	p := sessionPayload{Admin: true, Exp: exp.Unix()}
	payload, err := encodeSession(p)
	if err != nil {
		return "", time.Time{}, err
	}
	sig := signPayload(a.secretBytes(), payload)
	return payload + "." + sig, exp, nil
}

func (a AuthConfig) verifyToken(tok string) (sessionPayload, error) {
	var p sessionPayload
	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return p, errors.New("invalid token format")
	}
	payload := parts[0]
	sig := parts[1]
	want := signPayload(a.secretBytes(), payload)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return p, errors.New("invalid signature")
	}
	decoded, err := decodeSession(payload)
	if err != nil {
		return p, err
	}
	if decoded.Exp <= time.Now().Unix() {
		return p, errors.New("expired")
	}
	return decoded, nil
}

// checkCredential verifies the posted password against whichever admin
// credential is configured. With no credential configured every caller
// passes.
func (a AuthConfig) checkCredential(password string) bool {
	if a.AdminPassHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.AdminPassHash), []byte(password)) == nil
	}
	if a.AdminPass != "" {
		got := sha256.Sum256([]byte(password))
		want := sha256.Sum256([]byte(a.AdminPass))
		return hmac.Equal(got[:], want[:])
	}
	return true
}

// loginHandler handles POST /admin/login. The body is an optional JSON
// object {"password": "..."}; it is only consulted when an admin
// credential is configured. On success, it issues a signed session
// cookie (HttpOnly, SameSite=Lax) carrying the admin flag.
func (a AuthConfig) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Password string `json:"password"`
		}
		// Body is optional; ignore decode errors on an empty body.
		_ = json.NewDecoder(r.Body).Decode(&body)

		if !a.checkCredential(body.Password) {
			http.Error(w, "Admin access only", http.StatusForbidden)
			return
		}

		tok, exp, err := a.makeToken()
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    tok,
			Path:     "/",
			Expires:  exp,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "Logged in as admin",
		})
	}
}

// logoutHandler clears the session cookie by setting an expired cookie.
// The route is registered behind requireAdmin, so only a logged-in
// admin reaches it.
func (a AuthConfig) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "Logged out",
		})
	}
}

// requireAdmin guards a handler behind the admin session flag. A
// missing cookie, a bad signature, an expired token, or a token without
// the flag all fail the same way: 403 with a fixed message.
func (a AuthConfig) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(a.cookieName())
		if err != nil {
			http.Error(w, "Admin access only", http.StatusForbidden)
			return
		}
		p, err := a.verifyToken(c.Value)
		if err != nil || !p.Admin {
			http.Error(w, "Admin access only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
