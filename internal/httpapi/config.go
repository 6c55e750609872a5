package httpapi

import (
	"net/http"

	"github.com/go-chi/cors"
)

// maxBodyBytes controls the maximum allowed request body size.
// 32 MiB by default: enough for a large photo in either encoding.
var maxBodyBytes int64 = 32 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 32 << 20
		return
	}
	maxBodyBytes = n
}

// Origin policy for the /v1 RPC surface.
var (
	allowedOrigins []string
	allowAnyOrigin bool
)

// SetOriginPolicy installs the origin allow-list. allowAny bypasses the
// list and is meant for demo deployments only; production callers must
// enumerate their origins.
func SetOriginPolicy(origins []string, allowAny bool) {
	allowedOrigins = append([]string(nil), origins...)
	allowAnyOrigin = allowAny
}

func corsOptions() cors.Options {
	origins := allowedOrigins
	if allowAnyOrigin {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		MaxAge:           300,
		AllowCredentials: false,
	}
}

// requireAllowedOrigin refuses cross-origin callers that are not on the
// allow-list before any handler runs. Requests without an Origin header
// (same-origin, curl, tests) pass through: the security boundary is the
// remote browsing context.
func requireAllowedOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAnyOrigin {
			next.ServeHTTP(w, r)
			return
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				next.ServeHTTP(w, r)
				return
			}
		}
		IncrementOriginRejected()
		writeJSONError(w, http.StatusForbidden, "origin not allowed: "+origin)
	})
}
