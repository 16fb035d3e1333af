package i18n

import "net/http"

// Middleware picks a localizer from the request's Accept-Language header and
// stores it in the request context. Unknown languages fall back to the one
// passed to Init.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := NewLocalizer(r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
	})
}
