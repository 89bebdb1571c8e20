package txpool

import (
	"context"

	"github.com/cuemby/overlaydb/pkg/scope"
)

// SessionHandle is scope.Session[E] stripped of its type parameter: every
// one of its operations a Pool needs to drive already has a signature
// that doesn't mention E, so Session[E] satisfies this interface for any
// E without an adapter.
type SessionHandle interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Finish()
	Reload(ctx context.Context) error
}

// ScopeBinding is a scope.Scope[E] stripped of its type parameter, so a
// Pool can hold scopes for unrelated entity types in one slice.
type ScopeBinding interface {
	Name() string
	Deps() []string
	Begin(ctx context.Context) (SessionHandle, error)
}

type scopeBinding[E any] struct {
	scope *scope.Scope[E]
}

// Bind erases sc's entity type, for registering it with a Pool.
func Bind[E any](sc *scope.Scope[E]) ScopeBinding {
	return scopeBinding[E]{scope: sc}
}

func (b scopeBinding[E]) Name() string   { return b.scope.Name }
func (b scopeBinding[E]) Deps() []string { return b.scope.Deps }

func (b scopeBinding[E]) Begin(ctx context.Context) (SessionHandle, error) {
	return scope.Begin(ctx, b.scope)
}
