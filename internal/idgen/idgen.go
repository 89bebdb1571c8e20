// Package idgen generates entity identifiers for example and test
// entities, collecting the usual inline uuid.New().String() call into
// one helper so this module's tests don't each repeat it.
package idgen

import "github.com/google/uuid"

// New returns a fresh random identifier with no prefix.
func New() string {
	return uuid.New().String()
}

// WithPrefix returns a fresh identifier of the form "prefix-<uuid>", for
// entities that want their kind visible in logs and keys at a glance.
func WithPrefix(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
