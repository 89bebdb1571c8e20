// Package remotescope is the domain-stack wiring of pkg/scope against a
// remote gRPC service, the "remote service" backing-store collaborator
// contract made concrete without inventing a project-specific
// protobuf schema: it borrows the health-checking protocol that ships
// pre-compiled inside google.golang.org/grpc itself, since the core is
// schema-agnostic and has no entity definitions of its own to transmit.
package remotescope

import (
	"context"
	"fmt"

	"github.com/cuemby/overlaydb/pkg/scope"
	"github.com/cuemby/overlaydb/pkg/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// CommitFunc performs the actual domain RPC a commit represents, once the
// collaborator has been confirmed reachable.
type CommitFunc func(ctx context.Context) error

// RollbackFunc performs the domain RPC (if any) a rollback represents.
type RollbackFunc func(ctx context.Context) error

// Transaction confirms its remote collaborator is still serving before
// running a caller-supplied commit RPC, and satisfies scope.Transaction.
type Transaction struct {
	health   grpc_health_v1.HealthClient
	service  string
	commit   CommitFunc
	rollback RollbackFunc
}

// NewTransactionFactory builds a scope.Scope.CreateTransaction against
// conn. service is the gRPC health-checking service name to verify before
// commit (empty checks the server's overall health).
func NewTransactionFactory(conn *grpc.ClientConn, service string, commit CommitFunc, rollback RollbackFunc) func(ctx context.Context) (scope.Transaction, error) {
	health := grpc_health_v1.NewHealthClient(conn)
	return func(ctx context.Context) (scope.Transaction, error) {
		return &Transaction{health: health, service: service, commit: commit, rollback: rollback}, nil
	}
}

// DoCommit checks the collaborator's health, then runs the caller's
// commit RPC if one was supplied.
func (t *Transaction) DoCommit(ctx context.Context) error {
	resp, err := t.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: t.service})
	if err != nil {
		return fmt.Errorf("remotescope: health check: %w", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("remotescope: collaborator not serving: %s", resp.Status)
	}
	if t.commit == nil {
		return nil
	}
	if err := t.commit(ctx); err != nil {
		return fmt.Errorf("remotescope: commit: %w", err)
	}
	return nil
}

// DoRollback runs the caller's rollback RPC, if one was supplied. Unlike
// DoCommit it does not require the collaborator to answer a health check
// first, a rollback should still be attempted even against a
// degraded-but-reachable remote.
func (t *Transaction) DoRollback(ctx context.Context) error {
	if t.rollback == nil {
		return nil
	}
	if err := t.rollback(ctx); err != nil {
		return fmt.Errorf("remotescope: rollback: %w", err)
	}
	return nil
}

// Source is a scope.DataSource whose five operations are each an
// independently caller-supplied RPC, letting an application wire this
// scope to whatever service-specific client stubs it has without
// remotescope knowing anything about their schema.
type Source[E any] struct {
	IdentifyFunc func(ctx context.Context, key storage.Key) (bool, error)
	RestoreFunc  func(ctx context.Context, key storage.Key, value *E) error
	WritableFunc func(ctx context.Context, key storage.Key, value *E) error
	FlushFunc    func(ctx context.Context, key storage.Key, value *E) error
	ReleaseFunc  func(ctx context.Context, key storage.Key) error
}

// NewSourceFactory wraps src in the scope.Scope.CreateSource shape.
func NewSourceFactory[E any](src *Source[E]) func(ctx context.Context, txn scope.Transaction) (scope.DataSource[E], error) {
	return func(ctx context.Context, txn scope.Transaction) (scope.DataSource[E], error) {
		return src, nil
	}
}

func (s *Source[E]) Identify(ctx context.Context, key storage.Key) (bool, error) {
	if s.IdentifyFunc == nil {
		return false, nil
	}
	return s.IdentifyFunc(ctx, key)
}

func (s *Source[E]) Restore(ctx context.Context, key storage.Key, value *E) error {
	if s.RestoreFunc == nil {
		return nil
	}
	return s.RestoreFunc(ctx, key, value)
}

func (s *Source[E]) Writable(ctx context.Context, key storage.Key, value *E) error {
	if s.WritableFunc == nil {
		return nil
	}
	return s.WritableFunc(ctx, key, value)
}

func (s *Source[E]) Flush(ctx context.Context, key storage.Key, value *E) error {
	if s.FlushFunc == nil {
		return nil
	}
	return s.FlushFunc(ctx, key, value)
}

func (s *Source[E]) Release(ctx context.Context, key storage.Key) error {
	if s.ReleaseFunc == nil {
		return nil
	}
	return s.ReleaseFunc(ctx, key)
}
