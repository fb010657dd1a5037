// Package middleware adapts goToken validation to net/http.
//
// [Guard] reads the bearer token from the Authorization header, picks the tenant from the
// request context or the X-Tenant-ID header, calls Engine.Validate for the configured policy,
// and attaches the accepted [goToken.Principal] to the request context. [TenantHeader] puts the
// tenant id in the context ahead of the guard.
//
// Rejections map to 401, except a policy the tenant may not use (403), a cancelled request (503)
// and configuration faults (500). The package never parses tokens itself.
package middleware
