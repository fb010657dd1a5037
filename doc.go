// Package goToken issues and validates signed JWTs for multi-tenant services.
//
// Each tenant has an issuer, an ordered audience list and an allow-list of named token policies.
// A policy fixes the signing algorithm, the lifetime, the "typ" header and whether a jti is
// added. Signing keys come from a [keys.Provider], either engine-wide or per tenant, so keys can
// be rotated without touching configuration.
//
// # Usage
//
//	engine, err := goToken.New().
//		WithConfig(cfg).
//		WithKeyProvider(provider).
//		WithValidators(goToken.NewRevocationValidator(store)).
//		Build()
//
//	token, err := engine.NewToken("AccessToken", "acme").WithSubject("user-42").Sign(ctx)
//	principal, err := engine.Validate(ctx, token, "AccessToken", "acme")
//
// # Validation
//
// Validate resolves the policy and tenant, decodes the token, resolves the key named by its kid,
// verifies signature, algorithm, issuer, audience and lifetime (with [ClockSkew] in both
// directions), then runs the registered validators in order. Every failure is an [*Error]
// whose kind can be matched with errors.Is against the Err* sentinels.
//
// # Concurrency
//
// Engine, TokenIssuer, TokenValidator and PolicyStore are safe for concurrent use. A
// TokenBuilder belongs to one goroutine.
package goToken
