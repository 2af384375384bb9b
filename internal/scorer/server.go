package scorer

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type scoreHandler interface {
	score(ctx context.Context, in *structpb.ListValue) (*structpb.ListValue, error)
}

var scorerServiceDesc = grpc.ServiceDesc{
	ServiceName: "skinscan.v1.Scorer",
	HandlerType: (*scoreHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreUnaryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "skinscan/v1/scorer",
}

// RegisterScorerServer exposes sc on registrar. Calls are serialized since
// local backends are not safe for concurrent use.
func RegisterScorerServer(registrar grpc.ServiceRegistrar, sc Scorer) {
	registrar.RegisterService(&scorerServiceDesc, &scoreService{scorer: sc})
}

type scoreService struct {
	mu     sync.Mutex
	scorer Scorer
}

func (s *scoreService) score(ctx context.Context, in *structpb.ListValue) (*structpb.ListValue, error) {
	tensor, err := decodeFloats(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.mu.Lock()
	out, err := s.scorer.Score(ctx, tensor)
	s.mu.Unlock()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return encodeFloats(out), nil
}

func scoreUnaryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(scoreHandler).score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scoreMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(scoreHandler).score(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}
