package scorer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/skinscan/internal/logging"
)

const scoreMethod = "/skinscan.v1.Scorer/Score"

// RemotePrefix marks a model path that names a gRPC scoring service.
const RemotePrefix = "grpc://"

// DialRemote connects to a scoring service exposed with RegisterScorerServer.
func DialRemote(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (Scorer, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("scorer.dial_remote", "", err)
		logger.Error("failed to dial remote scorer", zap.Error(wrapped), zap.String("addr", addr))
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, wrapped)
	}
	return NewRemote(conn, logger), nil
}

// NewRemote wraps an established connection. Close closes conn.
func NewRemote(conn *grpc.ClientConn, logger *zap.Logger) Scorer {
	return &remoteScorer{conn: conn, logger: logger.Named("remote_scorer")}
}

type remoteScorer struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

func (r *remoteScorer) Score(ctx context.Context, tensor []float32) ([]float32, error) {
	resp := new(structpb.ListValue)
	if err := r.conn.Invoke(ctx, scoreMethod, encodeFloats(tensor), resp); err != nil {
		wrapped := logging.NewOperationError("scorer.remote_score", "", err)
		r.logger.Warn("remote scoring failed", zap.Error(wrapped))
		return nil, fmt.Errorf("%w: %w", ErrInference, wrapped)
	}

	out, err := decodeFloats(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if err := CheckOutput(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *remoteScorer) Close() error {
	return r.conn.Close()
}

func encodeFloats(values []float32) *structpb.ListValue {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(values))}
	for i, v := range values {
		list.Values[i] = structpb.NewNumberValue(float64(v))
	}
	return list
}

func decodeFloats(list *structpb.ListValue) ([]float32, error) {
	out := make([]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = float32(n.NumberValue)
	}
	return out, nil
}
