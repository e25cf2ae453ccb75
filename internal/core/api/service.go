// Package api provides the gRPC enforcement service for Commissar.
//
// The service is commissar.v1.Enforcer with two unary methods, Evaluate and
// Save. Requests and responses are google.protobuf.Struct messages, so no
// generated code is needed on either side:
//
//	Evaluate {"event": "Save", "record": {"type": "Widget", "fields": {...}}}
//	Save     {"record": {"type": "Widget", "id": "...", "fields": {...}}}
//
// Both answer with the result card; Save also returns the record as stored.
// A Save refused by an abort-on-fail rule is a normal response with
// "stored": false, not an RPC error.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/commissar/internal/enforce"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "commissar.v1.Enforcer"

const (
	evaluateMethod = "/" + ServiceName + "/Evaluate"
	saveMethod     = "/" + ServiceName + "/Save"
)

// EnforcerServer is the server API for the Enforcer service.
type EnforcerServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Save(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Enforcer service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnforcerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unary(evaluateMethod, EnforcerServer.Evaluate)},
		{MethodName: "Save", Handler: unary(saveMethod, EnforcerServer.Save)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "commissar/v1/enforcer.proto",
}

type method func(EnforcerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, call method) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EnforcerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EnforcerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Register adds svc to s.
func Register(s grpc.ServiceRegistrar, svc EnforcerServer) {
	s.RegisterService(&ServiceDesc, svc)
}

// EnforcerService implements EnforcerServer on top of an Enforcer.
// Thin orchestration layer delegating to the enforce package.
type EnforcerService struct {
	enforcer *enforce.Enforcer
	logger   *slog.Logger
}

// NewEnforcerService creates service instance with dependencies.
func NewEnforcerService(enforcer *enforce.Enforcer, logger *slog.Logger) (*EnforcerService, error) {
	if enforcer == nil {
		return nil, fmt.Errorf("enforcer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EnforcerService{enforcer: enforcer, logger: logger}, nil
}

// Client calls the Enforcer service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Evaluate calls Enforcer/Evaluate.
func (c *Client) Evaluate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, evaluateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Save calls Enforcer/Save.
func (c *Client) Save(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, saveMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
