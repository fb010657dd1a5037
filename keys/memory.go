package keys

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDuplicateKeyID is returned by MemoryProvider.Add when a key id is already present.
var ErrDuplicateKeyID = errors.New("duplicate key id")

type memorySnapshot struct {
	byID    map[string]*KeyMaterial
	ordered []*KeyMaterial
}

// MemoryProvider keeps keys in process memory. Reads load an immutable snapshot without
// locking; writes build a new snapshot and publish it atomically.
type MemoryProvider struct {
	mu       sync.Mutex
	snap     atomic.Pointer[memorySnapshot]
	selector Selector
	custom   bool
	now      func() time.Time
}

// MemoryOption configures a MemoryProvider.
type MemoryOption func(*MemoryProvider)

// WithClock overrides the clock used to evaluate key expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSelector replaces the default newest-valid-key selection.
func WithSelector(s Selector) MemoryOption {
	return func(p *MemoryProvider) {
		if s != nil {
			p.selector = s
			p.custom = true
		}
	}
}

// NewMemoryProvider returns a provider seeded with initial keys.
func NewMemoryProvider(initial []*KeyMaterial, opts ...MemoryOption) (*MemoryProvider, error) {
	p := &MemoryProvider{
		selector: DefaultSelector,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.snap.Store(&memorySnapshot{byID: map[string]*KeyMaterial{}})

	if err := p.Add(initial...); err != nil {
		return nil, err
	}
	return p, nil
}

// Add publishes keys. Either all keys are added or none.
func (p *MemoryProvider) Add(keys ...*KeyMaterial) error {
	if len(keys) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.snap.Load()
	next := &memorySnapshot{
		byID:    make(map[string]*KeyMaterial, len(cur.byID)+len(keys)),
		ordered: make([]*KeyMaterial, 0, len(cur.ordered)+len(keys)),
	}
	for id, k := range cur.byID {
		next.byID[id] = k
	}
	next.ordered = append(next.ordered, cur.ordered...)

	for _, k := range keys {
		if k == nil {
			return ErrInvalidKeyMaterial
		}
		if _, exists := next.byID[k.keyID]; exists {
			return ErrDuplicateKeyID
		}
		next.byID[k.keyID] = k
		next.ordered = append(next.ordered, k)
	}
	SortForSelection(next.ordered)

	p.snap.Store(next)
	return nil
}

// Remove unpublishes a key. It reports whether the key was present.
func (p *MemoryProvider) Remove(keyID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.snap.Load()
	if _, ok := cur.byID[keyID]; !ok {
		return false
	}

	next := &memorySnapshot{
		byID:    make(map[string]*KeyMaterial, len(cur.byID)-1),
		ordered: make([]*KeyMaterial, 0, len(cur.ordered)-1),
	}
	for _, k := range cur.ordered {
		if k.keyID == keyID {
			continue
		}
		next.byID[k.keyID] = k
		next.ordered = append(next.ordered, k)
	}

	p.snap.Store(next)
	return true
}

// Keys returns the published keys in selection order.
func (p *MemoryProvider) Keys() []*KeyMaterial {
	cur := p.snap.Load()
	out := make([]*KeyMaterial, len(cur.ordered))
	copy(out, cur.ordered)
	return out
}

// CurrentSigningKey runs the selector over the published snapshot. A custom selector gets its
// own copy of the key set.
func (p *MemoryProvider) CurrentSigningKey(ctx context.Context, policyName, tenantID string) (*KeyMaterial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set := p.snap.Load().ordered
	if p.custom {
		set = slices.Clone(set)
	}
	return p.selector(set, policyName, tenantID, p.now())
}

// KeyByID returns the key with keyID, expired or not, or (nil, nil) when it is not published.
func (p *MemoryProvider) KeyByID(ctx context.Context, keyID, _ string) (*KeyMaterial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.snap.Load().byID[keyID], nil
}
