// Package sink carries track events from a tracker to a remote collector
// over gRPC. Messages are google.protobuf.Struct values, so the service
// needs no generated code.
package sink

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName   = "camshift.TrackSink"
	PublishMethod = "/camshift.TrackSink/Publish"
)

// TrackSinkServer receives one encoded event per call and returns an ack.
type TrackSinkServer interface {
	Publish(ctx context.Context, event *structpb.Struct) (*structpb.Struct, error)
}

func RegisterTrackSinkServer(s grpc.ServiceRegistrar, srv TrackSinkServer) {
	s.RegisterService(&TrackSinkServiceDesc, srv)
}

func publishHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrackSinkServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PublishMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrackSinkServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var TrackSinkServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackSinkServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Publish",
			Handler:    publishHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "camshift/sink.proto",
}

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Publish(ctx context.Context, event *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PublishMethod, event, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
