package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"dental-storefront/internal/domain"
)

// catalogClient calls the catalog service methods over a client connection.
type catalogClient struct {
	cc grpc.ClientConnInterface
}

func (c *catalogClient) ListProducts(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listProductsFullMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *catalogClient) BrowseCatalog(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, browseCatalogFullMethod, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func setupTestGRPC(t *testing.T, ps *MockProductStorer) *catalogClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewGRPCHandler(ps, zap.NewNop()).Register(srv)
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
	return &catalogClient{cc: conn}
}

func sampleCatalog(n int) []domain.Product {
	out := make([]domain.Product, 0, n)
	for i := 1; i <= n; i++ {
		category, tags := "Mirrors", []string{"Reusable"}
		if i%2 == 0 {
			category, tags = "Forceps", []string{"German Steel"}
		}
		out = append(out, domain.Product{
			ID: fmt.Sprintf("p-%d", i), Name: fmt.Sprintf("%s %d", category, i),
			Description: "d", Price: 100, Category: category, Tags: tags,
		})
	}
	return out
}

func TestGRPCHandler_ListProducts(t *testing.T) {
	ps := new(MockProductStorer)
	ps.On("ListProducts", mock.Anything).Return(sampleCatalog(3), nil).Once()
	client := setupTestGRPC(t, ps)

	resp, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	products := resp.Fields["products"].GetListValue().GetValues()
	require.Len(t, products, 3)
	first := products[0].GetStructValue().GetFields()
	assert.Equal(t, "p-1", first["_id"].GetStringValue())
	assert.Equal(t, 100.0, first["price"].GetNumberValue())
	ps.AssertExpectations(t)
}

func TestGRPCHandler_BrowseCatalog(t *testing.T) {
	ps := new(MockProductStorer)
	ps.On("ListProducts", mock.Anything).Return(sampleCatalog(50), nil)
	client := setupTestGRPC(t, ps)

	req, err := structpb.NewStruct(map[string]interface{}{
		"category": "Forceps",
		"tags":     []interface{}{"German Steel"},
		"page":     2,
	})
	require.NoError(t, err)

	resp, err := client.BrowseCatalog(context.Background(), req)
	require.NoError(t, err)
	f := resp.GetFields()
	assert.Equal(t, 25.0, f["total"].GetNumberValue())
	assert.Equal(t, 2.0, f["page"].GetNumberValue())
	assert.Equal(t, 2.0, f["totalPages"].GetNumberValue())
	assert.False(t, f["empty"].GetBoolValue())
	page := f["products"].GetListValue().GetValues()
	require.Len(t, page, 5)
	assert.Equal(t, "p-42", page[0].GetStructValue().GetFields()["_id"].GetStringValue())
	assert.Len(t, f["categories"].GetListValue().GetValues(), 2)

	empty, err := structpb.NewStruct(map[string]interface{}{"search": "implant"})
	require.NoError(t, err)
	resp, err = client.BrowseCatalog(context.Background(), empty)
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["empty"].GetBoolValue())
	assert.Equal(t, 1.0, resp.GetFields()["totalPages"].GetNumberValue())
}

func TestGRPCHandler_BrowseCatalog_PagePastEnd(t *testing.T) {
	ps := new(MockProductStorer)
	ps.On("ListProducts", mock.Anything).Return(sampleCatalog(50), nil).Once()
	client := setupTestGRPC(t, ps)

	req, err := structpb.NewStruct(map[string]interface{}{"page": maxBrowsePage})
	require.NoError(t, err)
	resp, err := client.BrowseCatalog(context.Background(), req)
	require.NoError(t, err)
	f := resp.GetFields()
	assert.Empty(t, f["products"].GetListValue().GetValues())
	assert.Equal(t, 50.0, f["total"].GetNumberValue())
	assert.Equal(t, 3.0, f["totalPages"].GetNumberValue())
	ps.AssertExpectations(t)
}

func TestGRPCHandler_BrowseCatalog_InvalidArgument(t *testing.T) {
	ps := new(MockProductStorer)
	client := setupTestGRPC(t, ps)

	for _, fields := range []map[string]interface{}{
		{"page": 0},
		{"page": 1.5},
		{"tags": "Steel"},
		{"tags": []interface{}{1}},
		{"page": 5e17},
		{"page": 1e300},
	} {
		req, err := structpb.NewStruct(fields)
		require.NoError(t, err)
		_, err = client.BrowseCatalog(context.Background(), req)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "%v", fields)
	}
	ps.AssertNotCalled(t, "ListProducts", mock.Anything)
}

func TestGRPCHandler_StoreError(t *testing.T) {
	ps := new(MockProductStorer)
	ps.On("ListProducts", mock.Anything).Return(nil, errors.New("connection reset")).Once()
	client := setupTestGRPC(t, ps)

	_, err := client.ListProducts(context.Background())
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.NotContains(t, st.Message(), "connection reset")
}
