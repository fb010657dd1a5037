package keys

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestMemoryProviderSelectsNewestValidKey(t *testing.T) {
	older := hmacKey(t, "k-old", t0.Add(-2*time.Hour), time.Time{})
	newer := hmacKey(t, "k-new", t0.Add(-time.Hour), time.Time{})
	future := hmacKey(t, "k-expired", t0.Add(-30*time.Minute), t0.Add(-time.Minute))

	p, err := NewMemoryProvider([]*KeyMaterial{older, newer, future}, WithClock(fixedClock(t0)))
	require.NoError(t, err)

	got, err := p.CurrentSigningKey(context.Background(), "AccessToken", "")
	require.NoError(t, err)
	assert.Equal(t, "k-new", got.KeyID())
}

func TestMemoryProviderTieBreakByKeyID(t *testing.T) {
	b := hmacKey(t, "b", t0, time.Time{})
	a := hmacKey(t, "a", t0, time.Time{})

	p, err := NewMemoryProvider([]*KeyMaterial{b, a}, WithClock(fixedClock(t0)))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := p.CurrentSigningKey(context.Background(), "", "")
		require.NoError(t, err)
		assert.Equal(t, "a", got.KeyID())
	}
}

func TestMemoryProviderNoValidKey(t *testing.T) {
	p, err := NewMemoryProvider(nil)
	require.NoError(t, err)
	_, err = p.CurrentSigningKey(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoKeyAvailable)

	expired := hmacKey(t, "k1", t0.Add(-time.Hour), t0.Add(-time.Second))
	p, err = NewMemoryProvider([]*KeyMaterial{expired}, WithClock(fixedClock(t0)))
	require.NoError(t, err)
	_, err = p.CurrentSigningKey(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoKeyAvailable)
}

func TestMemoryProviderKeyByIDReturnsExpiredKeys(t *testing.T) {
	expired := hmacKey(t, "k1", t0.Add(-time.Hour), t0.Add(-time.Second))
	p, err := NewMemoryProvider([]*KeyMaterial{expired}, WithClock(fixedClock(t0)))
	require.NoError(t, err)

	got, err := p.KeyByID(context.Background(), "k1", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "k1", got.KeyID())

	missing, err := p.KeyByID(context.Background(), "nope", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryProviderRotation(t *testing.T) {
	k1 := hmacKey(t, "k1", t0.Add(-time.Hour), time.Time{})
	p, err := NewMemoryProvider([]*KeyMaterial{k1}, WithClock(fixedClock(t0)))
	require.NoError(t, err)

	k2 := hmacKey(t, "k2", t0.Add(-time.Minute), time.Time{})
	require.NoError(t, p.Add(k2))

	got, err := p.CurrentSigningKey(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.KeyID())

	old, err := p.KeyByID(context.Background(), "k1", "")
	require.NoError(t, err)
	assert.NotNil(t, old, "rotated-out key must still resolve for verification")

	assert.True(t, p.Remove("k2"))
	assert.False(t, p.Remove("k2"))
	got, err = p.CurrentSigningKey(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "k1", got.KeyID())
}

func TestMemoryProviderAddIsAtomic(t *testing.T) {
	k1 := hmacKey(t, "k1", t0, time.Time{})
	p, err := NewMemoryProvider([]*KeyMaterial{k1})
	require.NoError(t, err)

	err = p.Add(hmacKey(t, "k2", t0, time.Time{}), hmacKey(t, "k1", t0, time.Time{}))
	assert.ErrorIs(t, err, ErrDuplicateKeyID)
	assert.Len(t, p.Keys(), 1)

	_, err = NewMemoryProvider([]*KeyMaterial{k1, k1})
	assert.ErrorIs(t, err, ErrDuplicateKeyID)
}

func TestMemoryProviderCustomSelector(t *testing.T) {
	k1 := hmacKey(t, "k1", t0.Add(-time.Hour), time.Time{})
	k2 := hmacKey(t, "k2", t0, time.Time{})

	var seenPolicy, seenTenant string
	sel := func(set []*KeyMaterial, policy, tenant string, _ time.Time) (*KeyMaterial, error) {
		seenPolicy, seenTenant = policy, tenant
		return set[len(set)-1], nil
	}
	p, err := NewMemoryProvider([]*KeyMaterial{k1, k2}, WithSelector(sel))
	require.NoError(t, err)

	got, err := p.CurrentSigningKey(context.Background(), "RefreshToken", "acme")
	require.NoError(t, err)
	assert.Equal(t, "k1", got.KeyID())
	assert.Equal(t, "RefreshToken", seenPolicy)
	assert.Equal(t, "acme", seenTenant)
}

func TestMemoryProviderReorderingSelectorLeavesSnapshotIntact(t *testing.T) {
	old := hmacKey(t, "old", t0.Add(-time.Hour), time.Time{})
	cur := hmacKey(t, "new", t0, time.Time{})

	oldestFirst := func(set []*KeyMaterial, _, _ string, _ time.Time) (*KeyMaterial, error) {
		slices.Reverse(set)
		set[len(set)-1] = nil
		return set[0], nil
	}
	p, err := NewMemoryProvider([]*KeyMaterial{old, cur}, WithSelector(oldestFirst), WithClock(fixedClock(t0)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := p.CurrentSigningKey(context.Background(), "", "")
		require.NoError(t, err)
		assert.Equal(t, "old", got.KeyID())
	}

	ids := make([]string, 0, 2)
	for _, k := range p.Keys() {
		require.NotNil(t, k)
		ids = append(ids, k.KeyID())
	}
	assert.Equal(t, []string{"new", "old"}, ids)
}

func TestMemoryProviderHonorsCancellation(t *testing.T) {
	p, err := NewMemoryProvider([]*KeyMaterial{hmacKey(t, "k1", t0, time.Time{})})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.CurrentSigningKey(ctx, "", "")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.KeyByID(ctx, "k1", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryProviderConcurrentRotation(t *testing.T) {
	p, err := NewMemoryProvider([]*KeyMaterial{hmacKey(t, "seed", t0.Add(-time.Hour), time.Time{})}, WithClock(fixedClock(t0)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				k, err := NewKeyMaterial([]byte("0123456789abcdef0123456789abcdef"), fmt.Sprintf("w%d-%d", w, i), "HS256", t0.Add(-time.Duration(i)*time.Second), time.Time{})
				if err != nil {
					t.Error(err)
					return
				}
				if err := p.Add(k); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k, err := p.CurrentSigningKey(context.Background(), "", "")
				if err != nil || k == nil {
					t.Errorf("selection failed during rotation: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, p.Keys(), 201)
	got, err := p.CurrentSigningKey(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "w0-0", got.KeyID())
}
