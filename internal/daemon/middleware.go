package daemon

import (
	"net/http"
	"strings"
)

// authMiddleware rejects any request whose Authorization header does
// not carry the daemon's cookie as a bearer token. The cookie is only
// ever readable by the same user that started the daemon (the socket is
// created under umask 0077 and the cookie file is 0600), so this is
// local-only access control,
// not a defense against a hostile process already running as that user.
func authMiddleware(cookie string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token != cookie {
			writeError(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
