package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cwbudde/facefit/internal/fit"
)

const (
	// ServiceName is the fully qualified gRPC service name
	ServiceName = "facefit.render.v1.Renderer"

	renderMethod = "/" + ServiceName + "/Render"
)

// RenderServer is the server API of the render service.
// The request is the flat parameter vector; the reply is an encoded observation.
type RenderServer interface {
	Render(ctx context.Context, in *structpb.ListValue) (*wrapperspb.BytesValue, error)
}

func renderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RenderServer).Render(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: renderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RenderServer).Render(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

var renderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RenderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Render", Handler: renderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "facefit/render/v1/render.proto",
}

// RegisterRenderServer registers srv on s
func RegisterRenderServer(s grpc.ServiceRegistrar, srv RenderServer) {
	s.RegisterService(&renderServiceDesc, srv)
}

// Service exposes a Backend over gRPC
type Service struct {
	backend Backend
	logger  *slog.Logger
}

// NewService creates a render service backed by backend
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger}
}

func (s *Service) Render(ctx context.Context, in *structpb.ListValue) (*wrapperspb.BytesValue, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "parameter list is required")
	}
	values := make([]float64, len(in.GetValues()))
	for i, v := range in.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "parameter %d is not a number", i)
		}
		values[i] = n.NumberValue
	}
	params, err := fit.ParamVectorFromArray(values)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	obs, err := s.backend.Render(ctx, params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		s.logger.Error("Render failed", "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(EncodeObservation(obs)), nil
}

// Serve runs a gRPC render server on lis until ctx is done
func Serve(ctx context.Context, lis net.Listener, backend Backend, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	RegisterRenderServer(srv, NewService(backend, logger))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Render server listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down render server")
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// RemoteBackend renders through a remote render service
type RemoteBackend struct {
	conn *grpc.ClientConn
}

// DialRemote connects to a render service at addr. The connection is
// plaintext; extra options are appended after the transport credentials.
func DialRemote(addr string, opts ...grpc.DialOption) (*RemoteBackend, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to render service %s: %w", addr, err)
	}
	return &RemoteBackend{conn: conn}, nil
}

func (r *RemoteBackend) Render(ctx context.Context, params fit.ParamVector) (*fit.Observation, error) {
	arr := params.Array()
	in := &structpb.ListValue{Values: make([]*structpb.Value, len(arr))}
	for i, v := range arr {
		in.Values[i] = structpb.NewNumberValue(v)
	}

	out := new(wrapperspb.BytesValue)
	if err := r.conn.Invoke(ctx, renderMethod, in, out); err != nil {
		return nil, fmt.Errorf("remote render: %w", err)
	}
	return DecodeObservation(out.GetValue())
}

// Close releases the connection
func (r *RemoteBackend) Close() error {
	return r.conn.Close()
}
