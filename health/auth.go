package health

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RequireBearer returns middleware that admits requests carrying an HS256
// JWT signed with secret. Expiry and not-before claims are enforced when present.
func RequireBearer(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}
			token, err := parser.Parse(raw, keyFunc)
			if err != nil || !token.Valid {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="health"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ErrUnauthorized.Error()})
}

// bearerToken extracts the token from a Bearer authorization header.
func bearerToken(header string) (string, bool) {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
