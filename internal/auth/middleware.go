package auth

import (
	"encoding/json"
	"net/http"
)

// Authenticate rejects requests without a valid bearer token and stores the
// principal on the request context.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				deny(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			p, err := ParseToken(secret, raw)
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole allows the request through only when the principal holds one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized", ErrMissingToken.Error())
				return
			}
			if !allowed[p.Role] {
				deny(w, http.StatusForbidden, "forbidden", "role "+p.Role+" may not perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, code, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "details": details})
}

