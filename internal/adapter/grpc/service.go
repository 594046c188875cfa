package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "wealthflow.planner.v1.PlannerService"

// PlannerServer is the server API for PlannerService
type PlannerServer interface {
	GetOrCreatePlans(context.Context, *MonthRequest) (*GetOrCreatePlansResponse, error)
	ListPlans(context.Context, *MonthRequest) (*ListPlansResponse, error)
	SetOverride(context.Context, *SetOverrideRequest) (*PlanResponse, error)
	ToggleProtected(context.Context, *PlanIDRequest) (*PlanResponse, error)
	ToggleSkipped(context.Context, *PlanIDRequest) (*PlanResponse, error)
	PreviewFlex(context.Context, *FlexRequest) (*FlexResponse, error)
	ApplyFlex(context.Context, *FlexRequest) (*FlexResponse, error)
	StartTracking(context.Context, *MonthRequest) (*ExecutionResponse, error)
	UndoStart(context.Context, *MonthRequest) (*ExecutionResponse, error)
	MarkComplete(context.Context, *MonthRequest) (*ExecutionResponse, error)
	UndoComplete(context.Context, *MonthRequest) (*ExecutionResponse, error)
	GetExecution(context.Context, *MonthRequest) (*ExecutionResponse, error)
	GetProgress(context.Context, *MonthRequest) (*ProgressResponse, error)
	ListSnapshots(context.Context, *MonthRequest) (*ListSnapshotsResponse, error)
}

// unary builds the method descriptor of one RPC
func unary[Req, Resp any](name string, call func(PlannerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PlannerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PlannerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes PlannerService for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlannerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetOrCreatePlans", PlannerServer.GetOrCreatePlans),
		unary("ListPlans", PlannerServer.ListPlans),
		unary("SetOverride", PlannerServer.SetOverride),
		unary("ToggleProtected", PlannerServer.ToggleProtected),
		unary("ToggleSkipped", PlannerServer.ToggleSkipped),
		unary("PreviewFlex", PlannerServer.PreviewFlex),
		unary("ApplyFlex", PlannerServer.ApplyFlex),
		unary("StartTracking", PlannerServer.StartTracking),
		unary("UndoStart", PlannerServer.UndoStart),
		unary("MarkComplete", PlannerServer.MarkComplete),
		unary("UndoComplete", PlannerServer.UndoComplete),
		unary("GetExecution", PlannerServer.GetExecution),
		unary("GetProgress", PlannerServer.GetProgress),
		unary("ListSnapshots", PlannerServer.ListSnapshots),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wealthflow/planner/v1/planner.json",
}

// RegisterPlannerServer registers srv on s
func RegisterPlannerServer(s grpc.ServiceRegistrar, srv PlannerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client is a typed client for PlannerService. Calls use the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new PlannerService client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrCreatePlans(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*GetOrCreatePlansResponse, error) {
	return invoke[GetOrCreatePlansResponse](ctx, c, "GetOrCreatePlans", in, opts)
}

func (c *Client) ListPlans(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ListPlansResponse, error) {
	return invoke[ListPlansResponse](ctx, c, "ListPlans", in, opts)
}

func (c *Client) SetOverride(ctx context.Context, in *SetOverrideRequest, opts ...grpc.CallOption) (*PlanResponse, error) {
	return invoke[PlanResponse](ctx, c, "SetOverride", in, opts)
}

func (c *Client) ToggleProtected(ctx context.Context, in *PlanIDRequest, opts ...grpc.CallOption) (*PlanResponse, error) {
	return invoke[PlanResponse](ctx, c, "ToggleProtected", in, opts)
}

func (c *Client) ToggleSkipped(ctx context.Context, in *PlanIDRequest, opts ...grpc.CallOption) (*PlanResponse, error) {
	return invoke[PlanResponse](ctx, c, "ToggleSkipped", in, opts)
}

func (c *Client) PreviewFlex(ctx context.Context, in *FlexRequest, opts ...grpc.CallOption) (*FlexResponse, error) {
	return invoke[FlexResponse](ctx, c, "PreviewFlex", in, opts)
}

func (c *Client) ApplyFlex(ctx context.Context, in *FlexRequest, opts ...grpc.CallOption) (*FlexResponse, error) {
	return invoke[FlexResponse](ctx, c, "ApplyFlex", in, opts)
}

func (c *Client) StartTracking(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ExecutionResponse, error) {
	return invoke[ExecutionResponse](ctx, c, "StartTracking", in, opts)
}

func (c *Client) UndoStart(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ExecutionResponse, error) {
	return invoke[ExecutionResponse](ctx, c, "UndoStart", in, opts)
}

func (c *Client) MarkComplete(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ExecutionResponse, error) {
	return invoke[ExecutionResponse](ctx, c, "MarkComplete", in, opts)
}

func (c *Client) UndoComplete(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ExecutionResponse, error) {
	return invoke[ExecutionResponse](ctx, c, "UndoComplete", in, opts)
}

func (c *Client) GetExecution(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ExecutionResponse, error) {
	return invoke[ExecutionResponse](ctx, c, "GetExecution", in, opts)
}

func (c *Client) GetProgress(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ProgressResponse, error) {
	return invoke[ProgressResponse](ctx, c, "GetProgress", in, opts)
}

func (c *Client) ListSnapshots(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*ListSnapshotsResponse, error) {
	return invoke[ListSnapshotsResponse](ctx, c, "ListSnapshots", in, opts)
}
