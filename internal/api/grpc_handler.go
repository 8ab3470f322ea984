package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"dental-storefront/internal/catalog"
	"dental-storefront/internal/domain"
	"dental-storefront/internal/store"
)

const (
	CatalogServiceName      = "storefront.v1.CatalogService"
	listProductsFullMethod  = "/" + CatalogServiceName + "/ListProducts"
	browseCatalogFullMethod = "/" + CatalogServiceName + "/BrowseCatalog"

	// maxBrowsePage bounds the requested page before it is converted to int.
	maxBrowsePage = 1_000_000
)

// CatalogServiceServer is the server API for the catalog service. Requests
// and responses use the protobuf Struct well-known type so no generated code
// is needed; product objects have the same shape as the HTTP JSON.
type CatalogServiceServer interface {
	ListProducts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	BrowseCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// GRPCHandler implements CatalogServiceServer on top of the product store.
type GRPCHandler struct {
	productStore store.ProductStorer
	logger       *zap.Logger
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(ps store.ProductStorer, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{productStore: ps, logger: logger}
}

// Register attaches the service to s.
func (h *GRPCHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&catalogServiceDesc, h)
}

// --- Helper: Error Mapping ---
func (h *GRPCHandler) mapStoreErrorToGrpcStatus(err error, op string) error {
	if err == nil {
		return nil
	}
	h.logger.Error("store operation failed", zap.String("op", op), zap.Error(err))

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Errorf(codes.Internal, "failed to %s", op)
	}
}

// ListProducts returns {"products": [...]} in store order.
func (h *GRPCHandler) ListProducts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	products, err := h.productStore.ListProducts(ctx)
	if err != nil {
		return nil, h.mapStoreErrorToGrpcStatus(err, "list products")
	}
	list, err := productsToValue(products)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode products: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"products": list}}, nil
}

// BrowseCatalog runs the catalog filter over the stored products. Request
// fields: search, category, tags (list of strings), page.
func (h *GRPCHandler) BrowseCatalog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	criteria, err := criteriaFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	products, err := h.productStore.ListProducts(ctx)
	if err != nil {
		return nil, h.mapStoreErrorToGrpcStatus(err, "browse catalog")
	}
	res := catalog.Filter(products, criteria)

	page, err := productsToValue(res.Products)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode products: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"products":   page,
		"total":      structpb.NewNumberValue(float64(res.Total())),
		"page":       structpb.NewNumberValue(float64(res.Page)),
		"totalPages": structpb.NewNumberValue(float64(res.TotalPages)),
		"empty":      structpb.NewBoolValue(res.Empty()),
		"categories": stringList(catalog.Categories(products)),
		"tags":       stringList(catalog.Tags(products)),
	}}, nil
}

func criteriaFromStruct(req *structpb.Struct) (catalog.Criteria, error) {
	c := catalog.DefaultCriteria()
	fields := req.GetFields()

	if v, ok := fields["search"]; ok {
		c = c.WithSearch(v.GetStringValue())
	}
	if v, ok := fields["category"]; ok {
		c = c.WithCategory(v.GetStringValue())
	}
	if v, ok := fields["tags"]; ok {
		list := v.GetListValue()
		if list == nil {
			return c, errors.New("tags must be a list of strings")
		}
		tags := make([]string, 0, len(list.GetValues()))
		for _, t := range list.GetValues() {
			s, ok := t.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return c, errors.New("tags must be a list of strings")
			}
			tags = append(tags, s.StringValue)
		}
		c = c.WithTags(tags...)
	}
	if v, ok := fields["page"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue < 1 {
			return c, errors.New("page must be a positive integer")
		}
		if n.NumberValue > maxBrowsePage {
			return c, fmt.Errorf("page must not exceed %d", maxBrowsePage)
		}
		c = c.WithPage(int(n.NumberValue))
	}
	return c, nil
}

// productsToValue encodes products through their JSON form so gRPC and HTTP
// clients see the same field names.
func productsToValue(products []domain.Product) (*structpb.Value, error) {
	if products == nil {
		products = []domain.Product{}
	}
	data, err := json.Marshal(products)
	if err != nil {
		return nil, err
	}
	var generic []interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	list, err := structpb.NewList(generic)
	if err != nil {
		return nil, fmt.Errorf("convert products: %w", err)
	}
	return structpb.NewListValue(list), nil
}

func stringList(values []string) *structpb.Value {
	out := make([]*structpb.Value, 0, len(values))
	for _, v := range values {
		out = append(out, structpb.NewStringValue(v))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: out})
}

// --- Service descriptor ---

func listProductsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).ListProducts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listProductsFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CatalogServiceServer).ListProducts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func browseCatalogHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).BrowseCatalog(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: browseCatalogFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CatalogServiceServer).BrowseCatalog(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProducts", Handler: listProductsHandler},
		{MethodName: "BrowseCatalog", Handler: browseCatalogHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/catalog.proto",
}
