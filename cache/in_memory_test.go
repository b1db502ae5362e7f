package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_SetGet(t *testing.T) {
	c := NewInMemory(0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestInMemory_GetMissing(t *testing.T) {
	c := NewInMemory(0)
	defer c.Close()

	got, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestInMemory_ValueIsCopied(t *testing.T) {
	c := NewInMemory(0)
	defer c.Close()
	ctx := context.Background()

	original := []byte("v")
	require.NoError(t, c.Set(ctx, "k", original, 0))
	original[0] = 'x'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// Mutating the returned copy leaves the stored value intact.
	got[0] = 'y'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again)
}

func TestInMemory_Expiration(t *testing.T) {
	c := NewInMemory(0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemory_SlidingExpiration(t *testing.T) {
	c := NewInMemory(0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 60*time.Millisecond))

	// Keep touching the entry past its original expiry.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		_, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok, "entry expired despite being touched")
	}
}

func TestInMemory_Delete(t *testing.T) {
	c := NewInMemory(0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent key is not an error.
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestInMemory_JanitorSweepsExpired(t *testing.T) {
	c := NewInMemory(10 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 5*time.Millisecond))
	require.NoError(t, c.Set(ctx, "keep", []byte("v"), 0))

	assert.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 10*time.Millisecond)
}
