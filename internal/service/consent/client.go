package consent

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed ConsentService client.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req *Req, opts ...grpc.CallOption) (*Resp, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := fromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ExpressInterest(ctx context.Context, req *ExpressInterestRequest, opts ...grpc.CallOption) (*ExpressInterestResponse, error) {
	return invoke[ExpressInterestRequest, ExpressInterestResponse](ctx, c.cc, "ExpressInterest", req, opts...)
}

func (c *Client) RecordSignal(ctx context.Context, req *RecordSignalRequest, opts ...grpc.CallOption) (*RecordSignalResponse, error) {
	return invoke[RecordSignalRequest, RecordSignalResponse](ctx, c.cc, "RecordSignal", req, opts...)
}

func (c *Client) Authorize(ctx context.Context, req *AuthorizeRequest, opts ...grpc.CallOption) (*AuthorizeResponse, error) {
	return invoke[AuthorizeRequest, AuthorizeResponse](ctx, c.cc, "Authorize", req, opts...)
}

func (c *Client) CheckMutual(ctx context.Context, req *CheckMutualRequest, opts ...grpc.CallOption) (*CheckMutualResponse, error) {
	return invoke[CheckMutualRequest, CheckMutualResponse](ctx, c.cc, "CheckMutual", req, opts...)
}

func (c *Client) Resolve(ctx context.Context, req *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	return invoke[ResolveRequest, ResolveResponse](ctx, c.cc, "Resolve", req, opts...)
}

func (c *Client) Decide(ctx context.Context, req *DecideRequest, opts ...grpc.CallOption) (*DecideResponse, error) {
	return invoke[DecideRequest, DecideResponse](ctx, c.cc, "Decide", req, opts...)
}

func (c *Client) Materialize(ctx context.Context, req *MaterializeRequest, opts ...grpc.CallOption) (*MaterializeResponse, error) {
	return invoke[MaterializeRequest, MaterializeResponse](ctx, c.cc, "Materialize", req, opts...)
}

func (c *Client) GetQuota(ctx context.Context, req *GetQuotaRequest, opts ...grpc.CallOption) (*GetQuotaResponse, error) {
	return invoke[GetQuotaRequest, GetQuotaResponse](ctx, c.cc, "GetQuota", req, opts...)
}

func (c *Client) ListMatches(ctx context.Context, req *ListMatchesRequest, opts ...grpc.CallOption) (*ListMatchesResponse, error) {
	return invoke[ListMatchesRequest, ListMatchesResponse](ctx, c.cc, "ListMatches", req, opts...)
}

func (c *Client) ListIntroductions(ctx context.Context, req *ListIntroductionsRequest, opts ...grpc.CallOption) (*ListIntroductionsResponse, error) {
	return invoke[ListIntroductionsRequest, ListIntroductionsResponse](ctx, c.cc, "ListIntroductions", req, opts...)
}

func (c *Client) EnqueueNotification(ctx context.Context, req *EnqueueNotificationRequest, opts ...grpc.CallOption) (*EnqueueNotificationResponse, error) {
	return invoke[EnqueueNotificationRequest, EnqueueNotificationResponse](ctx, c.cc, "EnqueueNotification", req, opts...)
}
