package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "lobalpha.v1.AlphaService"

const (
	AlphaService_GenerateSignals_FullMethodName = "/" + ServiceName + "/GenerateSignals"
	AlphaService_RunBacktest_FullMethodName     = "/" + ServiceName + "/RunBacktest"
	AlphaService_GetResult_FullMethodName       = "/" + ServiceName + "/GetResult"
)

type AlphaServiceServer interface {
	GenerateSignals(context.Context, *GenerateSignalsRequest) (*GenerateSignalsResponse, error)
	RunBacktest(context.Context, *BacktestRequest) (*BacktestResponse, error)
	GetResult(context.Context, *GetResultRequest) (*SymbolResult, error)
}

// UnimplementedAlphaServiceServer can be embedded for forward compatibility.
type UnimplementedAlphaServiceServer struct{}

func (UnimplementedAlphaServiceServer) GenerateSignals(context.Context, *GenerateSignalsRequest) (*GenerateSignalsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GenerateSignals not implemented")
}

func (UnimplementedAlphaServiceServer) RunBacktest(context.Context, *BacktestRequest) (*BacktestResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RunBacktest not implemented")
}

func (UnimplementedAlphaServiceServer) GetResult(context.Context, *GetResultRequest) (*SymbolResult, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetResult not implemented")
}

func RegisterAlphaServiceServer(s grpc.ServiceRegistrar, srv AlphaServiceServer) {
	s.RegisterService(&AlphaService_ServiceDesc, srv)
}

func _AlphaService_GenerateSignals_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GenerateSignalsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AlphaServiceServer).GenerateSignals(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AlphaService_GenerateSignals_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlphaServiceServer).GenerateSignals(ctx, req.(*GenerateSignalsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AlphaService_RunBacktest_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BacktestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AlphaServiceServer).RunBacktest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AlphaService_RunBacktest_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlphaServiceServer).RunBacktest(ctx, req.(*BacktestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AlphaService_GetResult_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetResultRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AlphaServiceServer).GetResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AlphaService_GetResult_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlphaServiceServer).GetResult(ctx, req.(*GetResultRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var AlphaService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlphaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateSignals", Handler: _AlphaService_GenerateSignals_Handler},
		{MethodName: "RunBacktest", Handler: _AlphaService_RunBacktest_Handler},
		{MethodName: "GetResult", Handler: _AlphaService_GetResult_Handler},
	},
	Streams: []grpc.StreamDesc{},
}

type AlphaServiceClient interface {
	GenerateSignals(ctx context.Context, in *GenerateSignalsRequest, opts ...grpc.CallOption) (*GenerateSignalsResponse, error)
	RunBacktest(ctx context.Context, in *BacktestRequest, opts ...grpc.CallOption) (*BacktestResponse, error)
	GetResult(ctx context.Context, in *GetResultRequest, opts ...grpc.CallOption) (*SymbolResult, error)
}

type alphaServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAlphaServiceClient returns a client that always speaks the JSON codec.
func NewAlphaServiceClient(cc grpc.ClientConnInterface) AlphaServiceClient {
	return &alphaServiceClient{cc}
}

func (c *alphaServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *alphaServiceClient) GenerateSignals(ctx context.Context, in *GenerateSignalsRequest, opts ...grpc.CallOption) (*GenerateSignalsResponse, error) {
	out := new(GenerateSignalsResponse)
	if err := c.invoke(ctx, AlphaService_GenerateSignals_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *alphaServiceClient) RunBacktest(ctx context.Context, in *BacktestRequest, opts ...grpc.CallOption) (*BacktestResponse, error) {
	out := new(BacktestResponse)
	if err := c.invoke(ctx, AlphaService_RunBacktest_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *alphaServiceClient) GetResult(ctx context.Context, in *GetResultRequest, opts ...grpc.CallOption) (*SymbolResult, error) {
	out := new(SymbolResult)
	if err := c.invoke(ctx, AlphaService_GetResult_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
