package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "workorders.v1.IntakeService"

// IntakeServer is the intake API. Requests and responses are google.protobuf.Struct
// documents; field names are listed on each handler.
type IntakeServer interface {
	MatchIssuer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MapRegion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Decide(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ingest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reprocess(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListReviewItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportReviewQueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(IntakeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IntakeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(IntakeServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// IntakeServiceDesc describes the service for grpc.Server.RegisterService.
var IntakeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntakeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("MatchIssuer", IntakeServer.MatchIssuer),
		unary("MapRegion", IntakeServer.MapRegion),
		unary("Decide", IntakeServer.Decide),
		unary("Ingest", IntakeServer.Ingest),
		unary("Reprocess", IntakeServer.Reprocess),
		unary("ListReviewItems", IntakeServer.ListReviewItems),
		unary("ExportReviewQueue", IntakeServer.ExportReviewQueue),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workorders/v1/intake.proto",
}

func RegisterIntakeServer(s grpc.ServiceRegistrar, srv IntakeServer) {
	s.RegisterService(&IntakeServiceDesc, srv)
}

// IntakeClient calls IntakeService over a client connection.
type IntakeClient struct {
	cc grpc.ClientConnInterface
}

func NewIntakeClient(cc grpc.ClientConnInterface) *IntakeClient {
	return &IntakeClient{cc: cc}
}

// Call invokes method with in and returns the response document.
func (c *IntakeClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
