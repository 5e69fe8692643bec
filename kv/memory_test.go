package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zxcv8096-dotcom/line-tool/fault"
)

func TestMemStoreBasic(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, fault.ErrNotFound)

	assert.NoError(t, s.Put(ctx, "a", "1", 0))
	v, err := s.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, "1", v)

	assert.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestMemStoreExpiry(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	now := time.Unix(1000, 0)
	s.SetClock(func() time.Time { return now })

	assert.NoError(t, s.Put(ctx, "session", "data", time.Hour))
	v, err := s.Get(ctx, "session")
	assert.NoError(t, err)
	assert.Equal(t, "data", v)

	now = now.Add(2 * time.Hour)
	_, err = s.Get(ctx, "session")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestMemStoreList(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	now := time.Unix(1000, 0)
	s.SetClock(func() time.Time { return now })

	assert.NoError(t, s.Put(ctx, "b", "2", 0))
	assert.NoError(t, s.Put(ctx, "a", "1", 0))
	assert.NoError(t, s.Put(ctx, "c", "3", time.Minute))

	keys, err := s.List(ctx, "", 100)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	// Expired keys drop out of the listing.
	now = now.Add(time.Hour)
	keys, err = s.List(ctx, "", 100)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	keys, err = s.List(ctx, "", 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)

	keys, err = s.List(ctx, "b", 100)
	assert.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}
