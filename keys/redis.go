package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis backend.
var ErrRedisUnavailable = errors.New("redis unavailable")

const globalScope = "_global"

// storedKey is the JSON form of a KeyMaterial held in a Redis hash field.
type storedKey struct {
	KeyID     string     `json:"kid"`
	Algorithm string     `json:"alg"`
	Format    string     `json:"format"`
	Key       []byte     `json:"key"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RedisProvider keeps key sets in Redis, one hash per scope keyed by key id. Scopes are shared
// across processes, so any instance may rotate keys for all of them.
type RedisProvider struct {
	redis        redis.UniversalClient
	prefix       string
	tenantScoped bool
	selector     Selector
	now          func() time.Time
}

// RedisOption configures a RedisProvider.
type RedisOption func(*RedisProvider)

// WithTenantScoped controls whether each tenant gets its own key set (the default). Requests
// without a tenant always use the global set.
func WithTenantScoped(scoped bool) RedisOption {
	return func(p *RedisProvider) { p.tenantScoped = scoped }
}

// WithRedisClock overrides the clock used to evaluate key expiry.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(p *RedisProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRedisSelector replaces the default newest-valid-key selection.
func WithRedisSelector(s Selector) RedisOption {
	return func(p *RedisProvider) {
		if s != nil {
			p.selector = s
		}
	}
}

// NewRedisProvider returns a provider over client. Keys live under "<prefix>:keys:<scope>";
// an empty prefix means "gotoken".
func NewRedisProvider(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisProvider {
	if prefix == "" {
		prefix = "gotoken"
	}
	p := &RedisProvider{
		redis:        client,
		prefix:       prefix,
		tenantScoped: true,
		selector:     DefaultSelector,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisProvider) key(tenantID string) string {
	scope := globalScope
	if p.tenantScoped {
		if t := normalizeTenantID(tenantID); t != "" {
			scope = t
		}
	}
	return p.prefix + ":keys:" + scope
}

func normalizeTenantID(tenantID string) string {
	return strings.ToLower(strings.TrimSpace(tenantID))
}

// Put publishes k in the scope of tenantID. An existing key id is never overwritten.
func (p *RedisProvider) Put(ctx context.Context, tenantID string, k *KeyMaterial) error {
	if k == nil {
		return ErrInvalidKeyMaterial
	}
	data, err := encodeStoredKey(k)
	if err != nil {
		return err
	}
	added, err := p.redis.HSetNX(ctx, p.key(tenantID), k.keyID, data).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	if !added {
		return ErrDuplicateKeyID
	}
	return nil
}

// Delete unpublishes a key id. It reports whether the key existed.
func (p *RedisProvider) Delete(ctx context.Context, tenantID, keyID string) (bool, error) {
	n, err := p.redis.HDel(ctx, p.key(tenantID), keyID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// List returns the key set of tenantID in selection order.
func (p *RedisProvider) List(ctx context.Context, tenantID string) ([]*KeyMaterial, error) {
	fields, err := p.redis.HGetAll(ctx, p.key(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}

	out := make([]*KeyMaterial, 0, len(fields))
	for id, raw := range fields {
		k, err := decodeStoredKey([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", id, err)
		}
		out = append(out, k)
	}
	SortForSelection(out)
	return out, nil
}

// CurrentSigningKey loads the tenant's key set and runs the selector over it. Every call works
// on a freshly decoded slice.
func (p *RedisProvider) CurrentSigningKey(ctx context.Context, policyName, tenantID string) (*KeyMaterial, error) {
	set, err := p.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return p.selector(set, policyName, tenantID, p.now())
}

// KeyByID returns the stored key with keyID, or (nil, nil) when the field is absent.
func (p *RedisProvider) KeyByID(ctx context.Context, keyID, tenantID string) (*KeyMaterial, error) {
	raw, err := p.redis.HGet(ctx, p.key(tenantID), keyID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return decodeStoredKey(raw)
}

func encodeStoredKey(k *KeyMaterial) ([]byte, error) {
	format, data, err := MarshalKey(k.key)
	if err != nil {
		return nil, err
	}
	rec := storedKey{
		KeyID:     k.keyID,
		Algorithm: k.algorithm,
		Format:    format,
		Key:       data,
		CreatedAt: k.createdAt,
	}
	if exp, ok := k.ExpiresAt(); ok {
		rec.ExpiresAt = &exp
	}
	return json.Marshal(rec)
}

func decodeStoredKey(raw []byte) (*KeyMaterial, error) {
	var rec storedKey
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	key, err := ParseKey(rec.Format, rec.Key)
	if err != nil {
		return nil, err
	}
	var exp time.Time
	if rec.ExpiresAt != nil {
		exp = *rec.ExpiresAt
	}
	return NewKeyMaterial(key, rec.KeyID, rec.Algorithm, rec.CreatedAt, exp)
}
