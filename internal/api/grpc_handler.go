package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/domain"
)

// CatalogServiceName is the fully qualified gRPC service name.
const CatalogServiceName = "storefront.v1.Catalog"

// CatalogServer is the read-only catalog API exposed over gRPC. Requests and
// responses are generic structs carrying the same fields as the HTTP API.
type CatalogServer interface {
	ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListCategories(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + CatalogServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CatalogServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CatalogServiceDesc describes CatalogServer for grpc.Server.RegisterService.
var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", CatalogServer.ListProducts)},
		{MethodName: "GetProduct", Handler: unaryHandler("GetProduct", CatalogServer.GetProduct)},
		{MethodName: "ListCategories", Handler: unaryHandler("ListCategories", CatalogServer.ListCategories)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/catalog",
}

// RegisterCatalogServer registers srv on s.
func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

// GRPCHandler implements CatalogServer on top of the in-memory catalog.
type GRPCHandler struct {
	catalog       *catalog.Service
	tr            catalog.Translator
	contact       ContactInfo
	defaultLocale domain.Locale
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(svc *catalog.Service, tr catalog.Translator, contact ContactInfo, defaultLocale domain.Locale) *GRPCHandler {
	if defaultLocale == "" {
		defaultLocale = domain.DefaultLocale
	}
	return &GRPCHandler{catalog: svc, tr: tr, contact: contact, defaultLocale: defaultLocale}
}

// --- Helper: Error Mapping ---
func mapCatalogErrorToGrpcStatus(err error, resourceName string, resourceID interface{}) error {
	if err == nil {
		return nil
	}
	zap.L().Warn("Catalog gRPC request failed",
		zap.String("resource", resourceName), zap.Any("resourceID", resourceID), zap.Error(err))

	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		return status.Errorf(codes.InvalidArgument, "Invalid request for %s: %v", resourceName, err)
	case errors.Is(err, catalog.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s with ID %v not found", resourceName, resourceID)
	case errors.Is(err, catalog.ErrGatewayFailure), errors.Is(err, catalog.ErrUploadFailure):
		return status.Errorf(codes.Unavailable, "Store unavailable while processing %s", resourceName)
	default:
		return status.Errorf(codes.Internal, "Failed to process request for %s ID %v: %v", resourceName, resourceID, err)
	}
}

func (s *GRPCHandler) locale(req *structpb.Struct) domain.Locale {
	if v := req.GetFields()["locale"].GetStringValue(); v != "" {
		return domain.ParseLocale(v)
	}
	return s.defaultLocale
}

// toStruct converts a JSON-tagged value into a structpb.Struct under key.
func toStruct(key string, v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "Failed to encode response: %v", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, status.Errorf(codes.Internal, "Failed to encode response: %v", err)
	}
	out, err := structpb.NewStruct(map[string]any{key: decoded})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "Failed to encode response: %v", err)
	}
	return out, nil
}

// --- Catalog gRPC Methods Implementation ---

// ListProducts accepts q, category, price, locale and featured.
func (s *GRPCHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	price, err := catalog.ParsePriceRange(fields["price"].GetStringValue())
	if err != nil {
		return nil, mapCatalogErrorToGrpcStatus(err, "Product", "-")
	}
	query := catalog.Query{
		Search:   fields["q"].GetStringValue(),
		Category: fields["category"].GetStringValue(),
		Price:    price,
	}

	all := s.catalog.Snapshot()
	filtered := query.Apply(all)
	if fields["featured"].GetBoolValue() {
		filtered = catalog.Featured(filtered)
	}
	views := toProductViews(filtered, s.locale(req), s.catalog.Categories())

	out, err := toStruct("data", views)
	if err != nil {
		return nil, err
	}
	summary, err := toStruct("summary", catalog.Summarize(all, filtered))
	if err != nil {
		return nil, err
	}
	out.Fields["summary"] = summary.Fields["summary"]
	return out, nil
}

// GetProduct accepts id and locale.
func (s *GRPCHandler) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID := req.GetFields()["id"].GetStringValue()
	if productID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "Product ID is required")
	}
	p, ok := s.catalog.Products().Get(productID)
	if !ok {
		return nil, mapCatalogErrorToGrpcStatus(catalog.ErrNotFound, "Product", productID)
	}
	locale := s.locale(req)
	view := toProductView(p, locale, s.catalog.Categories())
	view.OrderLink = s.contact.OrderLink(s.tr, locale, p)
	return toStruct("product", view)
}

// ListCategories accepts locale.
func (s *GRPCHandler) ListCategories(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	options := catalog.CategoryOptions(s.locale(req), s.catalog.Categories(), s.catalog.Snapshot())
	return toStruct("data", options)
}

// LoggingUnaryInterceptor logs each unary call with its status code and latency.
func LoggingUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", code.String()),
		zap.Duration("latency", time.Since(start)),
	}
	switch code {
	case codes.OK:
		zap.L().Info("gRPC request", fields...)
	case codes.Internal, codes.Unavailable, codes.Unknown:
		zap.L().Error("gRPC request", append(fields, zap.Error(err))...)
	default:
		zap.L().Warn("gRPC request", append(fields, zap.Error(err))...)
	}
	return resp, err
}

// RecoveryUnaryInterceptor turns a panic in a handler into codes.Internal.
func RecoveryUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("gRPC handler panicked", zap.String("method", info.FullMethod), zap.Any("panic", rec))
			err = status.Errorf(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
