package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedDB puts an LRU read-through cache in front of point reads. Writes go
// to the underlying DB first and update the cache only after they succeed.
// Iterators bypass the cache.
type CachedDB struct {
	DB
	cache *lru.Cache[string, []byte]
}

// NewCachedDB wraps db with a cache holding up to size entries.
func NewCachedDB(db DB, size int) (*CachedDB, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("kv: create cache: %w", err)
	}
	return &CachedDB{DB: db, cache: cache}, nil
}

func (c *CachedDB) Read(ctx context.Context, key []byte) ([]byte, error) {
	if v, ok := c.cache.Get(string(key)); ok {
		return bytes.Clone(v), nil
	}
	v, err := c.DB.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(string(key), bytes.Clone(v))
	return v, nil
}

func (c *CachedDB) Write(ctx context.Context, key, value []byte) error {
	if err := c.DB.Write(ctx, key, value); err != nil {
		return err
	}
	c.cache.Add(string(key), bytes.Clone(value))
	return nil
}

func (c *CachedDB) Delete(ctx context.Context, key []byte) error {
	if err := c.DB.Delete(ctx, key); err != nil {
		return err
	}
	c.cache.Remove(string(key))
	return nil
}

func (c *CachedDB) Batch(ctx context.Context, ops []BatchOperation) error {
	if err := c.DB.Batch(ctx, ops); err != nil {
		// The batch may or may not have landed; drop every touched key.
		for _, op := range ops {
			c.cache.Remove(string(op.Key))
		}
		return err
	}
	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			c.cache.Add(string(op.Key), bytes.Clone(op.Value))
		case BatchDelete:
			c.cache.Remove(string(op.Key))
		}
	}
	return nil
}

// Close purges the cache and closes the underlying DB.
func (c *CachedDB) Close() error {
	c.cache.Purge()
	if err := c.DB.Close(); err != nil && !errors.Is(err, ErrDBClosed) {
		return err
	}
	return nil
}

var _ DB = (*CachedDB)(nil)
