// Package grpcserver implements the AutomationService gRPC server.
//
// It delegates all business logic to the automation orchestrator and handles
// only the gRPC transport concerns: metadata extraction, error mapping,
// and conversion of domain values into structpb messages.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/proposal-service/internal/automation"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "proposal.v1.AutomationService"

// Engine is the orchestrator surface exposed over gRPC.
type Engine interface {
	GetStatus(ctx context.Context, userID string) (automation.Status, error)
	Start(ctx context.Context, userID string) (automation.Status, error)
	Stop(ctx context.Context, userID string) (automation.Status, error)
	RunManual(ctx context.Context, userID string) (*automation.CycleReport, error)
}

// Server implements AutomationService.
type Server struct {
	engine Engine
}

// NewServer constructs a gRPC Server backed by the given engine.
func NewServer(engine Engine) *Server {
	return &Server{engine: engine}
}

// Register mounts the AutomationService and the standard health service on s.
func Register(s *grpc.Server, srv *Server) *health.Server {
	s.RegisterService(&serviceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// GetStatus returns the caller's automation status.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	userID, err := userIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.engine.GetStatus(ctx, userID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(st)
}

// Start schedules recurring cycles for the caller.
func (s *Server) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	userID, err := userIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.engine.Start(ctx, userID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(st)
}

// Stop cancels the caller's recurring cycles.
func (s *Server) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	userID, err := userIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.engine.Stop(ctx, userID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(st)
}

// RunNow executes one cycle for the caller and returns its report.
func (s *Server) RunNow(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	userID, err := userIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.RunManual(ctx, userID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(report)
}

// ─── Service descriptor ──────────────────────────────────────────────────────

// AutomationServer is the server API for AutomationService.
type AutomationServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RunNow(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var _ AutomationServer = (*Server)(nil)

type rpc func(*Server, context.Context, *emptypb.Empty) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AutomationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", (*Server).GetStatus),
		unary("Start", (*Server).Start),
		unary("Stop", (*Server).Stop),
		unary("RunNow", (*Server).RunNow),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proposal/v1/automation.proto",
}

func unary(name string, call rpc) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(*Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(*Server), ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// userIDFromCtx extracts the x-user-id value forwarded by the Gateway
// via gRPC metadata.
func userIDFromCtx(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("x-user-id")
	if len(vals) == 0 || vals[0] == "" {
		return "", status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	return vals[0], nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	switch {
	case errors.Is(err, automation.ErrNotFound),
		errors.Is(err, automation.ErrPolicyNotFound),
		errors.Is(err, automation.ErrProfileNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, automation.ErrCycleInProgress):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	var ve *automation.ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, ve.Msg)
	}
	return status.Error(codes.Internal, "internal server error")
}

// toStruct converts a JSON-tagged value to a structpb.Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return s, nil
}
