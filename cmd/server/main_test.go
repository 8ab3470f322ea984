package main

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"dental-storefront/internal/api"
	"dental-storefront/internal/domain"
)

type panickingStore struct{}

func (panickingStore) CreateProduct(context.Context, *domain.Product) (*domain.Product, error) {
	panic("create exploded")
}

func (panickingStore) ListProducts(context.Context) ([]domain.Product, error) {
	panic("list exploded")
}

func TestSetupGRPCServer_RecoversFromPanics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	lis := bufconn.Listen(1 << 20)
	srv := setupGRPCServer(api.NewGRPCHandler(panickingStore{}, logger), logger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err = conn.Invoke(ctx, "/"+api.CatalogServiceName+"/ListProducts", &emptypb.Empty{}, new(structpb.Struct))
		assert.Equal(t, codes.Internal, status.Code(err))
		assert.NotContains(t, status.Convert(err).Message(), "exploded")
	}

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err, "server must keep serving after a panic")
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())

	assert.Equal(t, 2, logs.FilterMessage("grpc handler panicked").Len())
}
