package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/overlaydb/pkg/log"
	bolt "go.etcd.io/bbolt"
)

// KeyCodec converts a mapping's Key to and from the byte slices bbolt
// buckets key on. Entities keep opaque, application-chosen keys (spec
// §3), so BoltStorage cannot assume anything about Key's concrete type
// beyond what the codec tells it.
type KeyCodec[E any] interface {
	EncodeKey(key Key) []byte
	DecodeKey(raw []byte) Key
}

// StringKeyCodec is the common case: Key is (or stringifies cleanly to) a
// plain identifier, mirroring the original BoltDB store's use of each
// entity's ID field as its bucket key.
type StringKeyCodec[E any] struct{}

func (StringKeyCodec[E]) EncodeKey(key Key) []byte {
	return []byte(fmt.Sprintf("%v", key))
}

func (StringKeyCodec[E]) DecodeKey(raw []byte) Key {
	return string(raw)
}

// BoltStorage is a Storage[E] whose cache is a read-through view over a
// bbolt bucket: Get falls through to the bucket on a cache miss. Cache and
// Uncache act on the in-memory maps only; the bucket is written only by
// Persist and Purge.
// It generalizes the original BoltStore's per-entity-type bucket methods
// (CreateNode/GetNode/..., CreateService/GetService/...) into one generic
// type parameterized over the entity and its codec, since every one of
// those methods differed only in bucket name and struct type.
type BoltStorage[E any] struct {
	*Storage[E]
	db     *bolt.DB
	bucket []byte
	codec  KeyCodec[E]
}

// OpenBoltStorage opens (creating if absent) the named bucket in db and
// wraps it around a fresh in-memory Storage.
func OpenBoltStorage[E any](db *bolt.DB, bucketName string, policy UncachePolicy, hash HashFunc[E], codec KeyCodec[E]) (*BoltStorage[E], error) {
	bucket := []byte(bucketName)
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open bucket %s: %w", bucketName, err)
	}
	return &BoltStorage[E]{
		Storage: NewStorage[E](bucketName, policy, hash),
		db:      db,
		bucket:  bucket,
		codec:   codec,
	}, nil
}

// Get returns the value at key, checking the in-memory cache first and
// falling back to the bucket on a miss. A value loaded from disk is
// cached under CacheDefault and CacheVoid, but never under CacheWeak,
// caching a freshly-decoded value with no outstanding take would be
// immediately evicted anyway.
func (s *BoltStorage[E]) Get(key Key) (*E, bool) {
	if v, ok := s.Storage.Get(key); ok {
		return v, true
	}
	v, err := s.load(key)
	if err != nil {
		log.WithComponent("boltstorage").Warn().Err(err).Str("bucket", string(s.bucket)).Msg("load failed")
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	if s.policy != CacheWeak {
		s.Storage.Cache(key, v)
	}
	return v, true
}

func (s *BoltStorage[E]) load(key Key) (*E, error) {
	raw := s.codec.EncodeKey(key)
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if v := b.Get(raw); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, err
	}
	var value E
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", s.bucket, err)
	}
	return &value, nil
}

// Persist writes value's current encoding to the bucket under key,
// without touching the in-memory cache. Callers typically call this from
// a DataSource's Flush, after the in-memory Cache call has already been
// made.
func (s *BoltStorage[E]) Persist(key Key, value *E) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", s.bucket, err)
	}
	raw := s.codec.EncodeKey(key)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(raw, data)
	})
}

// Purge deletes key from both the bucket and the in-memory cache.
func (s *BoltStorage[E]) Purge(key Key) error {
	s.Storage.Uncache(key)
	raw := s.codec.EncodeKey(key)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(raw)
	})
}

// LoadAll decodes every entry currently in the bucket, without caching
// any of them, used to warm a mapping's secondary indices at startup.
func (s *BoltStorage[E]) LoadAll() ([]*E, error) {
	var values []*E
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		return b.ForEach(func(k, v []byte) error {
			var value E
			if err := json.Unmarshal(v, &value); err != nil {
				return fmt.Errorf("storage: decode %s: %w", s.bucket, err)
			}
			values = append(values, &value)
			return nil
		})
	})
	return values, err
}
