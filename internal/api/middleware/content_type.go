package middleware

import (
	"mime"
	"net/http"

	"github.com/eurodeo/esoh/internal/api/models"
)

// RequireContentType answers 415 to requests whose body is not one of the
// given media types. Parameters such as charset or boundary are ignored.
func RequireContentType(mediaTypes ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(mediaTypes))
	for _, mt := range mediaTypes {
		allowed[mt] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if _, ok := allowed[mt]; err != nil || !ok {
				models.NewErrorDetail("unsupported Content-Type "+r.Header.Get("Content-Type")).
					Write(w, http.StatusUnsupportedMediaType, GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
