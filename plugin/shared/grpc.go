package shared

import (
	"context"

	"google.golang.org/grpc"
)

const (
	predictorServiceName = "toden.Predictor"
	predictMethod        = "/toden.Predictor/Predict"
	summarizeMethod      = "/toden.Predictor/Summarize"
)

// GRPCClient is an implementation of Predictor that talks over grpc using the
// json codec.
type GRPCClient struct{ conn *grpc.ClientConn }

func (m *GRPCClient) Predict(req *PredictRequest) (*Response, error) {
	resp := new(Response)
	if err := m.conn.Invoke(context.Background(), predictMethod, req, resp, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *GRPCClient) Summarize(req *SummarizeRequest) (*Response, error) {
	resp := new(Response)
	if err := m.conn.Invoke(context.Background(), summarizeMethod, req, resp, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return resp, nil
}

// Here is the gRPC server that GRPCClient talks to.
type GRPCServer struct {
	Impl Predictor
}

func (m *GRPCServer) Predict(ctx context.Context, req *PredictRequest) (*Response, error) {
	return m.Impl.Predict(req)
}

func (m *GRPCServer) Summarize(ctx context.Context, req *SummarizeRequest) (*Response, error) {
	return m.Impl.Summarize(req)
}

type predictorServer interface {
	Predict(context.Context, *PredictRequest) (*Response, error)
	Summarize(context.Context, *SummarizeRequest) (*Response, error)
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PredictRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(predictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: predictMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(predictorServer).Predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func summarizeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SummarizeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(predictorServer).Summarize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: summarizeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(predictorServer).Summarize(ctx, req.(*SummarizeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var predictorServiceDesc = grpc.ServiceDesc{
	ServiceName: predictorServiceName,
	HandlerType: (*predictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "Summarize", Handler: summarizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "predictor.json",
}
