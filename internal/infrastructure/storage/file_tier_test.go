package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTier_SetGet(t *testing.T) {
	tier, err := NewFileTier(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tier.Set("storefront_stores", []byte(`[{"id":"store_1_a"}]`)))
	got, err := tier.Get("storefront_stores")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"store_1_a"}]`, string(got))
}

func TestFileTier_AbsentKeyIsNil(t *testing.T) {
	tier, err := NewFileTier(t.TempDir())
	require.NoError(t, err)

	got, err := tier.Get("storefront_orders")
	require.NoError(t, err, "missing keys are not errors")
	assert.Nil(t, got)
}

func TestFileTier_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	tier, err := NewFileTier(dir)
	require.NoError(t, err)
	require.NoError(t, tier.Set("storefront_products", []byte(`[]`)))

	reopened, err := NewFileTier(dir)
	require.NoError(t, err)
	got, err := reopened.Get("storefront_products")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got), "durable tier survives context close")
}

func TestFileTier_DeleteAndClear(t *testing.T) {
	tier, err := NewFileTier(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tier.Set("a", []byte("1")))
	require.NoError(t, tier.Set("b", []byte("2")))

	require.NoError(t, tier.Delete("a"))
	require.NoError(t, tier.Delete("a"), "deleting an absent key is fine")

	keys, err := tier.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)

	require.NoError(t, tier.Clear())
	keys, err = tier.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileTier_SanitizesHostileKeys(t *testing.T) {
	dir := t.TempDir()
	tier, err := NewFileTier(dir)
	require.NoError(t, err)

	require.NoError(t, tier.Set("../../etc/passwd", []byte("nope")))
	got, err := tier.Get("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "nope", string(got), "sanitized key still round-trips")
}

func TestMemoryTier_Isolation(t *testing.T) {
	tier := NewMemoryTier()
	require.NoError(t, tier.Set("k", []byte("value")))

	got, err := tier.Get("k")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := tier.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(again), "callers cannot mutate stored values")
}

func TestMemoryTier_Clear(t *testing.T) {
	tier := NewMemoryTier()
	require.NoError(t, tier.Set("k", []byte("v")))
	require.NoError(t, tier.Clear())
	got, err := tier.Get("k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
