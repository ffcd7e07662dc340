package json

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/acipull/lock/flock"
)

type testData struct {
	Entries map[string]int `json:"entries"`
}

func (d *testData) Init() {
	if d.Entries == nil {
		d.Entries = make(map[string]int)
	}
}

func newTestStore(t *testing.T) *Store[testData] {
	t.Helper()
	dir := t.TempDir()
	return New[testData](
		filepath.Join(dir, "data.json"),
		flock.New(filepath.Join(dir, "data.lock")),
	)
}

func TestMissingFileBehavesEmpty(t *testing.T) {
	store := newTestStore(t)
	err := store.With(context.Background(), func(d *testData) error {
		assert.NotNil(t, d.Entries)
		assert.Empty(t, d.Entries)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdatePersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(d *testData) error {
		d.Entries["a"] = 1
		return nil
	}))
	require.NoError(t, store.Update(ctx, func(d *testData) error {
		d.Entries["b"] = 2
		return nil
	}))

	require.NoError(t, store.With(ctx, func(d *testData) error {
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, d.Entries)
		return nil
	}))
}

func TestUpdateErrorDiscardsChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(d *testData) error {
		d.Entries["a"] = 1
		return nil
	}))
	err := store.Update(ctx, func(d *testData) error {
		d.Entries["a"] = 99
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	require.NoError(t, store.With(ctx, func(d *testData) error {
		assert.Equal(t, 1, d.Entries["a"])
		return nil
	}))
}

func TestCorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := New[testData](path, flock.New(filepath.Join(dir, "data.lock")))
	err := store.With(context.Background(), func(*testData) error { return nil })
	require.Error(t, err)
}

func TestTryLockExcludes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	again, err := store.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, store.Unlock(ctx))
	ok, err = store.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, store.Unlock(ctx))
}
