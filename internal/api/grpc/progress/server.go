package progress

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "debian11to12.v1.ProgressService"

	getProgressMethod = "/" + ServiceName + "/GetProgress"
)

// ProgressServer is the server API of the progress service.
type ProgressServer interface {
	GetProgress(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the progress service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level in grpc-go.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProgressServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetProgress",
			Handler:    getProgressHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "debian11to12/v1/progress.proto",
}

// RegisterProgressServer registers the implementation on a gRPC server.
func RegisterProgressServer(registrar grpc.ServiceRegistrar, srv ProgressServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func getProgressHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ProgressServer).GetProgress(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getProgressMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProgressServer).GetProgress(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// Service abstracts the live state the transport layer reads.
type Service interface {
	Snapshot(ctx context.Context) Snapshot
}

// Server implements the ProgressService gRPC API.
type Server struct {
	// service provides the current upgrade state.
	service Service
}

var _ ProgressServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetProgress returns the current upgrade state.
func (s *Server) GetProgress(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	message, err := ToStruct(s.service.Snapshot(ctx))
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode progress")
	}

	return message, nil
}
