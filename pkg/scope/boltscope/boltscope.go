// Package boltscope is the domain-stack wiring of pkg/scope against an
// embedded bbolt database, the Go analogue of the original's
// sqlite.py: "the SQL-engine-like backing store" collaborator contract
// made concrete against a real engine.
package boltscope

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/overlaydb/pkg/scope"
	"github.com/cuemby/overlaydb/pkg/storage"
	bolt "go.etcd.io/bbolt"
)

// Transaction wraps a read-write *bbolt.Tx, satisfying scope.Transaction.
type Transaction struct {
	tx *bolt.Tx
}

// DoCommit commits the underlying bbolt transaction.
func (t *Transaction) DoCommit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("boltscope: commit: %w", err)
	}
	return nil
}

// DoRollback rolls back the underlying bbolt transaction.
func (t *Transaction) DoRollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("boltscope: rollback: %w", err)
	}
	return nil
}

// NewTransactionFactory builds a scope.Scope.CreateTransaction that opens
// a fresh read-write transaction against db for every pool entry.
func NewTransactionFactory(db *bolt.DB) func(ctx context.Context) (scope.Transaction, error) {
	return func(ctx context.Context) (scope.Transaction, error) {
		tx, err := db.Begin(true)
		if err != nil {
			return nil, fmt.Errorf("boltscope: begin: %w", err)
		}
		return &Transaction{tx: tx}, nil
	}
}

// Source is a scope.DataSource backed by one named bucket within a
// boltscope.Transaction, JSON-encoding entities the same way the
// teacher's BoltStore does for its cluster-state buckets.
type Source[E any] struct {
	tx     *bolt.Tx
	bucket []byte
	codec  storage.KeyCodec[E]
}

// NewSourceFactory builds a scope.Scope.CreateSource over bucketName,
// creating the bucket on first use if it doesn't already exist.
func NewSourceFactory[E any](bucketName string, codec storage.KeyCodec[E]) func(ctx context.Context, txn scope.Transaction) (scope.DataSource[E], error) {
	bucket := []byte(bucketName)
	return func(ctx context.Context, txn scope.Transaction) (scope.DataSource[E], error) {
		bt, ok := txn.(*Transaction)
		if !ok {
			return nil, fmt.Errorf("boltscope: source requires a boltscope.Transaction, got %T", txn)
		}
		if _, err := bt.tx.CreateBucketIfNotExists(bucket); err != nil {
			return nil, fmt.Errorf("boltscope: open bucket %s: %w", bucketName, err)
		}
		return &Source[E]{tx: bt.tx, bucket: bucket, codec: codec}, nil
	}
}

func (s *Source[E]) Identify(ctx context.Context, key storage.Key) (bool, error) {
	b := s.tx.Bucket(s.bucket)
	return b.Get(s.codec.EncodeKey(key)) != nil, nil
}

func (s *Source[E]) Restore(ctx context.Context, key storage.Key, value *E) error {
	b := s.tx.Bucket(s.bucket)
	data := b.Get(s.codec.EncodeKey(key))
	if data == nil {
		return fmt.Errorf("boltscope: %v not found in bucket %s", key, s.bucket)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("boltscope: decode %s: %w", s.bucket, err)
	}
	return nil
}

// Writable is a no-op: a bbolt read-write transaction already serializes
// every writer, so there is no finer-grained lock to acquire per entity.
func (s *Source[E]) Writable(ctx context.Context, key storage.Key, value *E) error {
	return nil
}

func (s *Source[E]) Flush(ctx context.Context, key storage.Key, value *E) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("boltscope: encode %s: %w", s.bucket, err)
	}
	b := s.tx.Bucket(s.bucket)
	if err := b.Put(s.codec.EncodeKey(key), data); err != nil {
		return fmt.Errorf("boltscope: put %s: %w", s.bucket, err)
	}
	return nil
}

// Release is a no-op for the same reason Writable is.
func (s *Source[E]) Release(ctx context.Context, key storage.Key) error {
	return nil
}
