package remotescope

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, healthSrv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestTransactionCommitRunsCommitFuncAfterHealthCheck(t *testing.T) {
	conn := startHealthServer(t)

	var committed bool
	createTxn := NewTransactionFactory(conn, "", func(ctx context.Context) error {
		committed = true
		return nil
	}, nil)

	txn, err := createTxn(context.Background())
	require.NoError(t, err)
	require.NoError(t, txn.DoCommit(context.Background()))
	assert.True(t, committed)
}

func TestTransactionRollbackRunsRollbackFunc(t *testing.T) {
	conn := startHealthServer(t)

	var rolledBack bool
	createTxn := NewTransactionFactory(conn, "", nil, func(ctx context.Context) error {
		rolledBack = true
		return nil
	})

	txn, err := createTxn(context.Background())
	require.NoError(t, err)
	require.NoError(t, txn.DoRollback(context.Background()))
	assert.True(t, rolledBack)
}
