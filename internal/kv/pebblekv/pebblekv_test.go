package pebblekv

import (
	"context"
	"testing"

	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPebbleReadWrite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Read(ctx, []byte("missing"))
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)

	require.NoError(t, db.Write(ctx, []byte("k"), []byte("v")))
	got, err := db.Read(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, db.Delete(ctx, []byte("k")))
	_, err = db.Read(ctx, []byte("k"))
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
}

func TestPebbleBatchAndIterator(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.Batch(ctx, []kv.BatchOperation{
		{Type: kv.BatchPut, Key: []byte("a1"), Value: []byte("1")},
		{Type: kv.BatchPut, Key: []byte("a3"), Value: []byte("3")},
		{Type: kv.BatchPut, Key: []byte("a2"), Value: []byte("2")},
		{Type: kv.BatchPut, Key: []byte("b1"), Value: []byte("x")},
		{Type: kv.BatchDelete, Key: []byte("a3")},
	}))

	it, err := db.Iterator(ctx, []byte("a"), kv.PrefixEnd([]byte("a")))
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"a1", "a2"}, keys)
}

func TestPebbleClosed(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Read(context.Background(), []byte("k"))
	assert.ErrorIs(t, err, kv.ErrDBClosed)
}
