// Package kv defines the ordered key-value storage the auction ledger is
// persisted in, together with in-memory and caching implementations.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned when a key doesn't exist in the database.
	ErrKeyNotFound = errors.New("kv: key not found")
	// ErrDBClosed is returned when operating on a closed database.
	ErrDBClosed = errors.New("kv: database is closed")
)

// DB is an ordered byte-keyed store. Batch applies all operations atomically.
type DB interface {
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Batch(ctx context.Context, ops []BatchOperation) error
	// Iterator walks keys in [start, end) in ascending byte order. A nil end
	// means no upper bound.
	Iterator(ctx context.Context, start, end []byte) (Iterator, error)
	Close() error
}

// Iterator traverses database entries. Key and Value are only valid until
// the next call to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// BatchOpType selects the kind of a batch operation.
type BatchOpType int

const (
	BatchPut BatchOpType = iota
	BatchDelete
)

// BatchOperation is a single write inside a Batch.
type BatchOperation struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

// PrefixEnd returns the smallest key strictly greater than every key that
// starts with prefix, or nil if no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
