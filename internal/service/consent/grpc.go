package consent

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	svcErr "github.com/oggyb/muzz-consent/internal/errors"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "muzz.consent.v1.ConsentService"

// ConsentServer is the server API of ConsentService.
type ConsentServer interface {
	ExpressInterest(context.Context, *ExpressInterestRequest) (*ExpressInterestResponse, error)
	RecordSignal(context.Context, *RecordSignalRequest) (*RecordSignalResponse, error)
	Authorize(context.Context, *AuthorizeRequest) (*AuthorizeResponse, error)
	CheckMutual(context.Context, *CheckMutualRequest) (*CheckMutualResponse, error)
	Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error)
	Decide(context.Context, *DecideRequest) (*DecideResponse, error)
	Materialize(context.Context, *MaterializeRequest) (*MaterializeResponse, error)
	GetQuota(context.Context, *GetQuotaRequest) (*GetQuotaResponse, error)
	ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error)
	ListIntroductions(context.Context, *ListIntroductionsRequest) (*ListIntroductionsResponse, error)
	EnqueueNotification(context.Context, *EnqueueNotificationRequest) (*EnqueueNotificationResponse, error)
}

// ServiceDesc describes ConsentService for grpc.Server.RegisterService.
// Every method takes and returns a google.protobuf.Struct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConsentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExpressInterest", Handler: unary("ExpressInterest", ConsentServer.ExpressInterest)},
		{MethodName: "RecordSignal", Handler: unary("RecordSignal", ConsentServer.RecordSignal)},
		{MethodName: "Authorize", Handler: unary("Authorize", ConsentServer.Authorize)},
		{MethodName: "CheckMutual", Handler: unary("CheckMutual", ConsentServer.CheckMutual)},
		{MethodName: "Resolve", Handler: unary("Resolve", ConsentServer.Resolve)},
		{MethodName: "Decide", Handler: unary("Decide", ConsentServer.Decide)},
		{MethodName: "Materialize", Handler: unary("Materialize", ConsentServer.Materialize)},
		{MethodName: "GetQuota", Handler: unary("GetQuota", ConsentServer.GetQuota)},
		{MethodName: "ListMatches", Handler: unary("ListMatches", ConsentServer.ListMatches)},
		{MethodName: "ListIntroductions", Handler: unary("ListIntroductions", ConsentServer.ListIntroductions)},
		{MethodName: "EnqueueNotification", Handler: unary("EnqueueNotification", ConsentServer.EnqueueNotification)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "muzz/consent/v1/consent.proto",
}

// RegisterConsentServer attaches srv to s.
func RegisterConsentServer(s grpc.ServiceRegistrar, srv ConsentServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary adapts a typed method to a grpc.MethodHandler that decodes the
// Struct body into Req and encodes Resp back into a Struct.
func unary[Req, Resp any](method string, call func(ConsentServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			var r Req
			if err := fromStruct(req.(*structpb.Struct), &r); err != nil {
				return nil, svcErr.InvalidArgument(err.Error())
			}
			resp, err := call(srv.(ConsentServer), ctx, &r)
			if err != nil {
				return nil, err
			}
			return toStruct(resp)
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, handler)
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
