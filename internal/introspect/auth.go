package introspect

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// HashToken bcrypt-hashes an operator-chosen bearer token for storage in the
// run configuration, mirroring how the teacher's server never stores a raw
// user password.
func HashToken(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash introspection token: %w", err)
	}
	return string(hash), nil
}

type authCtxKey int

const ctxKeyAuthed authCtxKey = iota

// auth mints and validates short-lived JWTs scoped to this introspection
// server, gated by a single bcrypt-hashed operator token (no user database —
// the introspection server has exactly one principal).
type auth struct {
	tokenHash []byte
	jwtSecret []byte
}

func newAuth(tokenHash string, jwtSecret []byte) *auth {
	return &auth{tokenHash: []byte(tokenHash), jwtSecret: jwtSecret}
}

// login checks plain against the configured hash and, on success, returns a
// signed bearer JWT valid for an hour.
func (a *auth) login(plain string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.tokenHash, []byte(plain)); err != nil {
		return "", fmt.Errorf("invalid token")
	}

	claims := jwt.MapClaims{
		"iss": "unicornsh-introspect",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return tok.SignedString(a.jwtSecret)
}

// requireAuth wraps next with bearer-JWT validation, per spec'd ambient
// logging/error conventions rather than the teacher's per-user AuthHandler
// (there is no user to look up here — only "is this caller holding a
// validly-signed token").
func (a *auth) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tok, err := bearerToken(req)
		if err != nil {
			errResult(http.StatusUnauthorized, err.Error()).write(w)
			return
		}

		_, err = jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
			return a.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer("unicornsh-introspect"))
		if err != nil {
			errResult(http.StatusUnauthorized, "invalid or expired token").write(w)
			return
		}

		ctx := context.WithValue(req.Context(), ctxKeyAuthed, true)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func bearerToken(req *http.Request) (string, error) {
	h := strings.TrimSpace(req.Header.Get("Authorization"))
	if h == "" {
		return "", fmt.Errorf("no authorization header present")
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}
	return strings.TrimSpace(parts[1]), nil
}
