/*
Package boltscope wires pkg/scope against go.etcd.io/bbolt, demoted from
"the whole store" to one interchangeable backing-store collaborator
behind the scope.Transaction/DataSource contracts.

A Transaction wraps one read-write *bbolt.Tx; a Source reads and writes
one named bucket within it, JSON-encoding entities the same way
pkg/storage's BoltStorage does. Restore decodes, Flush encodes and puts,
Writable and Release are no-ops because a bbolt read-write transaction
already serializes every writer for the lifetime of the pool entry that
opened it.
*/
package boltscope
