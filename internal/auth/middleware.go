package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/egfanboy/badge-builder/internal/metrics"
	"github.com/gorilla/mux"
)

// HeaderCmsUser carries the id of the CMS user the host is acting for.
const HeaderCmsUser = "X-Cms-User"

// UploadsPrefix serves sideloaded images of the filesystem storage driver, they are public like any CMS upload.
const UploadsPrefix = "/uploads/"

var unauthenticatedPaths = map[string]struct{}{
	"/api/v1/health": {},
	"/metrics":       {},
}

func isPublic(p string) bool {
	if _, ok := unauthenticatedPaths[p]; ok {
		return true
	}

	return strings.HasPrefix(p, UploadsPrefix)
}

// Middleware validates the bearer token shared with the CMS host.
func Middleware(enabled bool, bearerToken string, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(authHeader, "Bearer ") {
				m.ObserveAuthFailure()
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(bearerToken)) != 1 {
				m.ObserveAuthFailure()
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func UserId(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderCmsUser))
}
