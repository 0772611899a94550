package handler

import (
	"context"
	"net"
	"testing"

	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func dialAdmin(t *testing.T, syncer Syncer) (*SyncAdminClient, *grpc.ClientConn) {
	t.Helper()
	ob, _ := newOutbox(t)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSyncAdminServer(srv, NewSyncAdminHandler(syncer, ob, logger.NewNop()))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSyncAdminClient(conn), conn
}

func TestGRPC_GetStats(t *testing.T) {
	client, _ := dialAdmin(t, &fakeSyncer{status: worker.Status{State: worker.StatePulling, Online: true}})

	out, err := client.GetStats(context.Background())
	require.NoError(t, err)

	ob := out.GetFields()["outbox"].GetStructValue()
	require.NotNil(t, ob)
	assert.Equal(t, 1.0, ob.GetFields()["errors"].GetNumberValue())

	w := out.GetFields()["worker"].GetStructValue()
	require.NotNil(t, w)
	assert.Equal(t, "pulling", w.GetFields()["state"].GetStringValue())
}

func TestGRPC_Trigger(t *testing.T) {
	syncer := &fakeSyncer{}
	client, _ := dialAdmin(t, syncer)

	out, err := client.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "triggered", out.GetFields()["status"].GetStringValue())
	assert.Equal(t, 1, syncer.triggered)

	syncer.triggerErr = worker.ErrCycleInFlight
	_, err = client.Trigger(context.Background())
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGRPC_RetryErrors(t *testing.T) {
	client, _ := dialAdmin(t, &fakeSyncer{})

	out, err := client.RetryErrors(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.GetFields()["retried"].GetNumberValue())
}

func TestGRPC_Health(t *testing.T) {
	_, conn := dialAdmin(t, &fakeSyncer{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
