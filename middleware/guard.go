package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goToken "github.com/MrEthical07/goToken"
	"go.uber.org/zap"
)

// DefaultTenantHeader carries the tenant id when no tenant is already attached to the request
// context.
const DefaultTenantHeader = "X-Tenant-ID"

// TokenValidator is the part of *goToken.Engine the guard needs.
type TokenValidator interface {
	Validate(ctx context.Context, token, policyName, tenantID string) (*goToken.Principal, error)
}

type guardOptions struct {
	tenantHeader string
	logger       *zap.Logger
}

// Option configures Guard.
type Option func(*guardOptions)

// WithTenantHeader changes the header the tenant id is read from.
func WithTenantHeader(name string) Option {
	return func(o *guardOptions) {
		if name != "" {
			o.tenantHeader = name
		}
	}
}

// WithLogger logs rejected requests at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *guardOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Guard rejects requests without a bearer token accepted by engine under policyName. The
// tenant comes from the request context (see TenantHeader) or, failing that, from the tenant
// header. The accepted principal is attached with goToken.WithPrincipal.
func Guard(engine TokenValidator, policyName string, opts ...Option) func(http.Handler) http.Handler {
	o := guardOptions{
		tenantHeader: DefaultTenantHeader,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tenantID, ok := goToken.TenantIDFromContext(r.Context())
			if !ok {
				tenantID = strings.TrimSpace(r.Header.Get(o.tenantHeader))
			}

			p, err := engine.Validate(r.Context(), token, policyName, tenantID)
			if err != nil {
				o.logger.Debug("request rejected",
					zap.String("path", r.URL.Path),
					zap.String("tenant", tenantID),
					zap.Error(err),
				)
				status := statusFor(err)
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx := goToken.WithPrincipal(r.Context(), p)
			if p.TenantID != "" {
				ctx = goToken.WithTenantID(ctx, p.TenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goToken.ErrCancelled):
		return http.StatusServiceUnavailable
	case errors.Is(err, goToken.ErrPolicyNotAllowedForTenant):
		return http.StatusForbidden
	case errors.Is(err, goToken.ErrPolicyNotFound), errors.Is(err, goToken.ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
