package authz

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/meganet/portal/internal/logging"
)

// Middleware verifies an optional "Authorization: Bearer" token and stores
// the resulting Caller in the request context. A present but invalid token
// is rejected with 401. Requests without a token pass through unless
// requireToken is set.
func Middleware(tokens *Tokens, requireToken bool, log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if requireToken {
					writeUnauthorized(w, "no token provided")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if tokens == nil {
				writeUnauthorized(w, "token verification is not configured")
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				log.Debug("rejected bearer token", "err", err, "path", r.URL.Path)
				writeUnauthorized(w, ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claims.Caller())))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
