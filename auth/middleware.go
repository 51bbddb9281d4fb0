package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// RequireRole returns middleware that admits requests bearing a valid token
// whose identity has role. An empty role admits any valid token. Failures get
// 401 (bad or missing token) or 403 (missing role) with a JSON body.
func RequireRole(v *JWTVerifier, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="contentd"`)
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			if role != "" && !id.HasRole(role) {
				writeError(w, http.StatusForbidden, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	msg := err.Error()
	if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrTokenExpired) && !errors.Is(err, ErrMissingCredentials) {
		msg = ErrInvalidCredentials.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
