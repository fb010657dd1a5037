package middleware

import (
	"net/http"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// TenantHeader attaches the tenant id found in header to the request context, for Guard and for
// handlers that issue tokens. Requests without the header pass through unchanged.
func TenantHeader(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultTenantHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				r = r.WithContext(goToken.WithTenantID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAccessToken guards with the default policy.
func RequireAccessToken(engine TokenValidator, opts ...Option) func(http.Handler) http.Handler {
	return Guard(engine, goToken.DefaultPolicyName, opts...)
}
