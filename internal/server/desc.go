package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "grading.v1.GradingService"

// Method names of the grading service. Every method takes and returns a
// google.protobuf.Struct.
const (
	MethodSubmitFile      = "SubmitFile"
	MethodIngestPath      = "IngestPath"
	MethodIngestDirectory = "IngestDirectory"
	MethodGetJob          = "GetJob"
	MethodListJobs        = "ListJobs"
	MethodCancelJob       = "CancelJob"
	MethodResumeSession   = "ResumeSession"
	MethodGetResult       = "GetResult"
	MethodGetConfig       = "GetConfig"
)

// GradingServer is the server API of the grading service.
type GradingServer interface {
	SubmitFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestPath(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResumeSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetResult(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(GradingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GradingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GradingServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns the wire name of a method, e.g. /grading.v1.GradingService/GetJob.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// GradingServiceDesc describes the grading service for grpc.Server.RegisterService.
var GradingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GradingServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodSubmitFile, GradingServer.SubmitFile),
		method(MethodIngestPath, GradingServer.IngestPath),
		method(MethodIngestDirectory, GradingServer.IngestDirectory),
		method(MethodGetJob, GradingServer.GetJob),
		method(MethodListJobs, GradingServer.ListJobs),
		method(MethodCancelJob, GradingServer.CancelJob),
		method(MethodResumeSession, GradingServer.ResumeSession),
		method(MethodGetResult, GradingServer.GetResult),
		method(MethodGetConfig, GradingServer.GetConfig),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grading/v1/grading.proto",
}

// RegisterGradingServiceServer registers srv with s.
func RegisterGradingServiceServer(s grpc.ServiceRegistrar, srv GradingServer) {
	s.RegisterService(&GradingServiceDesc, srv)
}
