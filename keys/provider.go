package keys

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNoKeyAvailable is returned when a provider holds no key eligible for signing.
var ErrNoKeyAvailable = errors.New("no signing key available")

// Provider resolves key material for issuance and validation.
//
// Implementations may perform remote I/O and must honor ctx cancellation. KeyByID returns
// (nil, nil) when the identifier is unknown.
type Provider interface {
	CurrentSigningKey(ctx context.Context, policyName, tenantID string) (*KeyMaterial, error)
	KeyByID(ctx context.Context, keyID, tenantID string) (*KeyMaterial, error)
}

// Selector chooses the signing key from a key set. It receives keys in selection order
// (newest first, ties by key id) and returns ErrNoKeyAvailable when nothing fits.
type Selector func(set []*KeyMaterial, policyName, tenantID string, now time.Time) (*KeyMaterial, error)

// DefaultSelector picks the newest key valid at now.
func DefaultSelector(set []*KeyMaterial, _ string, _ string, now time.Time) (*KeyMaterial, error) {
	return SelectCurrent(set, now)
}

// SelectCurrent returns the most recently created key that is valid at now. Among keys with an
// identical creation instant the lexicographically smallest key id wins.
func SelectCurrent(set []*KeyMaterial, now time.Time) (*KeyMaterial, error) {
	var best *KeyMaterial
	for _, k := range set {
		if k == nil || !k.ValidAt(now) {
			continue
		}
		if best == nil || before(k, best) {
			best = k
		}
	}
	if best == nil {
		return nil, ErrNoKeyAvailable
	}
	return best, nil
}

// SortForSelection orders keys newest first, ties broken by ascending key id.
func SortForSelection(set []*KeyMaterial) {
	sort.SliceStable(set, func(i, j int) bool {
		return before(set[i], set[j])
	})
}

func before(a, b *KeyMaterial) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.After(b.createdAt)
	}
	return a.keyID < b.keyID
}
