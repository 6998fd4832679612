package grpc

import (
	"context"

	"github.com/dmitrijs2005/linkvault/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type unaryMethod func(s *GRPCServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

var methods = map[string]unaryMethod{
	api.MethodPing:         (*GRPCServer).Ping,
	api.MethodRegister:     (*GRPCServer).Register,
	api.MethodLogin:        (*GRPCServer).Login,
	api.MethodRefreshToken: (*GRPCServer).RefreshToken,
	api.MethodListObjects:  (*GRPCServer).ListObjects,
	api.MethodDeleteObject: (*GRPCServer).DeleteObject,
	api.MethodIssueLink:    (*GRPCServer).IssueLink,
	api.MethodRevokeLink:   (*GRPCServer).RevokeLink,
	api.MethodListLinks:    (*GRPCServer).ListLinks,
	api.MethodIngest:       (*GRPCServer).Ingest,
	api.MethodGetQuota:     (*GRPCServer).GetQuota,
	api.MethodListPlans:    (*GRPCServer).ListPlans,
	api.MethodOpenOrder:    (*GRPCServer).OpenOrder,
	api.MethodSettleOrder:  (*GRPCServer).SettleOrder,
	api.MethodListPayments: (*GRPCServer).ListPayments,
}

// handlerFor adapts a method to grpc.MethodHandler the way generated code
// does: decode, then run through the interceptor chain.
func handlerFor(name string, m unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*GRPCServer)
		if interceptor == nil {
			return m(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = buildServiceDesc()

func buildServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: api.ServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "linkvault.proto",
	}
	for name, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{MethodName: name, Handler: handlerFor(name, m)})
	}
	return desc
}
