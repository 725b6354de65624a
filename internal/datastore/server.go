package datastore

import (
	"context"

	"google.golang.org/grpc"
)

// Server is the store side of the Datastore service. The gateway never
// implements it; it exists so in-process stores can be registered on a
// grpc.Server, which must be created with grpc.ForceServerCodec(Codec{}).
type Server interface {
	PutObservations(context.Context, *PutObsRequest) (*PutObsResponse, error)
	GetObservations(context.Context, *GetObsRequest) (*GetObsResponse, error)
	GetTSAttrGroups(context.Context, *GetTSAGRequest) (*GetTSAGResponse, error)
	GetExtents(context.Context, *GetExtentsRequest) (*GetExtentsResponse, error)
}

// RegisterServer registers srv on s.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(Server, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(Server), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(Server), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PutObservations",
			Handler:    unaryHandler(methodPutObservations, Server.PutObservations),
		},
		{
			MethodName: "GetObservations",
			Handler:    unaryHandler(methodGetObservations, Server.GetObservations),
		},
		{
			MethodName: "GetTSAttrGroups",
			Handler:    unaryHandler(methodGetTSAttrGroups, Server.GetTSAttrGroups),
		},
		{
			MethodName: "GetExtents",
			Handler:    unaryHandler(methodGetExtents, Server.GetExtents),
		},
	},
	Metadata: "datastore.proto",
}
