package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "reflekt.v1.Journal"

// Method names of the Journal service.
const (
	MethodRegister      = "Register"
	MethodLogin         = "Login"
	MethodSaveEntry     = "SaveEntry"
	MethodDeleteEntry   = "DeleteEntry"
	MethodGetEntry      = "GetEntry"
	MethodTodayEntry    = "TodayEntry"
	MethodListEntries   = "ListEntries"
	MethodRecentEntries = "RecentEntries"
	MethodImportEntries = "ImportEntries"
)

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(m string) string { return "/" + ServiceName + "/" + m }

// JournalServer is the server API of the Journal service. Requests and
// responses are structpb.Struct documents.
type JournalServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TodayEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEntries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentEntries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImportEntries(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type journalMethod func(JournalServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call journalMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JournalServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(JournalServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// JournalServiceDesc describes the Journal service for grpc.Server.RegisterService.
var JournalServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JournalServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodRegister, JournalServer.Register),
		unaryHandler(MethodLogin, JournalServer.Login),
		unaryHandler(MethodSaveEntry, JournalServer.SaveEntry),
		unaryHandler(MethodDeleteEntry, JournalServer.DeleteEntry),
		unaryHandler(MethodGetEntry, JournalServer.GetEntry),
		unaryHandler(MethodTodayEntry, JournalServer.TodayEntry),
		unaryHandler(MethodListEntries, JournalServer.ListEntries),
		unaryHandler(MethodRecentEntries, JournalServer.RecentEntries),
		unaryHandler(MethodImportEntries, JournalServer.ImportEntries),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reflekt/v1/journal.proto",
}

// RegisterJournalServer registers srv on s.
func RegisterJournalServer(s grpc.ServiceRegistrar, srv JournalServer) {
	s.RegisterService(&JournalServiceDesc, srv)
}
