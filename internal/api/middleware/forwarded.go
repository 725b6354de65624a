package middleware

import (
	"context"
	"net/http"
	"strings"
)

type baseURLKey struct{}

// BaseURL derives the public base URL of the API from the reverse-proxy
// headers X-Forwarded-Proto, X-Forwarded-Host and X-Forwarded-Prefix and
// stores it in the request context. Links in responses are built from it.
func BaseURL(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := firstValue(r.Header.Get("X-Forwarded-Host"))
		if host == "" {
			host = r.Host
		}
		prefix := strings.TrimRight(firstValue(r.Header.Get("X-Forwarded-Prefix")), "/")
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}

		base := firstValue(scheme(r)) + "://" + host + prefix
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), baseURLKey{}, base)))
	})
}

// GetBaseURL returns the base URL stored by BaseURL, without a trailing slash.
func GetBaseURL(ctx context.Context) string {
	if base, ok := ctx.Value(baseURLKey{}).(string); ok {
		return base
	}
	return ""
}

// firstValue keeps the client-most entry of a comma separated proxy chain.
func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
