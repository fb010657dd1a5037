package goToken

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalCloneIsIndependent(t *testing.T) {
	env := newTestEnv(t, acmeConfig())
	token, err := env.engine.NewToken("", "acme").WithSubject("user-42").WithClaim("role", "admin").Sign(context.Background())
	require.NoError(t, err)

	p, err := env.engine.Validate(context.Background(), token, "", "acme")
	require.NoError(t, err)
	assert.True(t, p.IssuedAt.Equal(testNow))
	assert.True(t, p.NotBefore.Equal(testNow))

	c := p.Clone()
	c.Claims["role"] = "viewer"
	c.Audience[0] = "changed"
	c.Header["typ"] = "JWT"

	assert.Equal(t, "admin", p.StringClaim("role"))
	assert.Equal(t, acmeAudience, p.Audience[0])
	assert.Equal(t, "at+jwt", p.TokenType())
}

func TestPrincipalNilAccessors(t *testing.T) {
	var p *Principal
	_, ok := p.Claim("sub")
	assert.False(t, ok)
	assert.Empty(t, p.StringClaim("sub"))
	assert.Empty(t, p.TokenType())
	assert.Nil(t, p.Clone())
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := TenantIDFromContext(ctx)
	assert.False(t, ok)
	_, ok = PrincipalFromContext(ctx)
	assert.False(t, ok)

	ctx = WithTenantID(ctx, "acme")
	ctx = WithPrincipal(ctx, &Principal{Subject: "user-42"})

	tenant, ok := TenantIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "acme", tenant)

	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-42", p.Subject)

	_, ok = TenantIDFromContext(WithTenantID(context.Background(), ""))
	assert.False(t, ok)
}
