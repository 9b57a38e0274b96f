package server

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"glucosim/internal/dailysim"
)

const ServiceName = "glucosim.v1.Environment"

// EnvironmentServer is the server API of the environment service. Messages
// are google.protobuf.Struct values.
type EnvironmentServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Render(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Close(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var environmentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvironmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: unaryHandler("CreateSession", EnvironmentServer.CreateSession)},
		{MethodName: "Reset", Handler: unaryHandler("Reset", EnvironmentServer.Reset)},
		{MethodName: "Step", Handler: unaryHandler("Step", EnvironmentServer.Step)},
		{MethodName: "Render", Handler: unaryHandler("Render", EnvironmentServer.Render)},
		{MethodName: "Close", Handler: unaryHandler("Close", EnvironmentServer.Close)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "glucosim/v1/environment.proto",
}

func unaryHandler(method string, call func(EnvironmentServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EnvironmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EnvironmentServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterEnvironmentServer attaches srv to a gRPC server.
func RegisterEnvironmentServer(s grpc.ServiceRegistrar, srv EnvironmentServer) {
	s.RegisterService(&environmentServiceDesc, srv)
}

// GRPCHandler adapts a Service to EnvironmentServer.
type GRPCHandler struct {
	svc *Service
}

func NewGRPCHandler(svc *Service) *GRPCHandler {
	return &GRPCHandler{svc: svc}
}

func (h *GRPCHandler) CreateSession(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var overrides *structpb.Struct
	if hasField(in, fieldConfig) {
		overrides = in.GetFields()[fieldConfig].GetStructValue()
		if overrides == nil {
			return nil, status.Error(codes.InvalidArgument, "config must be an object")
		}
	}
	cfg, err := configFromStruct(h.svc.Defaults(), overrides)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := h.svc.CreateSession(cfg)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(id),
	}}, nil
}

func (h *GRPCHandler) Reset(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var opts []dailysim.ResetOption
	if hasField(in, fieldSeed) {
		seed, err := intField(in, fieldSeed)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		opts = append(opts, dailysim.WithSeed(seed))
	}
	if hasField(in, fieldOptions) {
		opts = append(opts, dailysim.WithOptions(in.GetFields()[fieldOptions].GetStructValue().AsMap()))
	}

	obs, info, err := h.svc.Reset(stringField(in, fieldSessionID), opts...)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldObservation: observationValue(obs),
		fieldInfo: structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"glucose_target": structpb.NewNumberValue(info.GlucoseTarget),
			"step_target":    structpb.NewNumberValue(info.StepTarget),
		}}),
	}}, nil
}

func (h *GRPCHandler) Step(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	action, err := actionFromValue(in.GetFields()[fieldAction])
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := h.svc.Step(stringField(in, fieldSessionID), action)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldObservation: observationValue(res.Observation),
		fieldReward:      structpb.NewNumberValue(res.Reward),
		fieldTerminated:  structpb.NewBoolValue(res.Terminated),
		fieldTruncated:   structpb.NewBoolValue(res.Truncated),
		fieldInfo: structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"step":               structpb.NewNumberValue(float64(res.Info.Step)),
			"action_name":        structpb.NewStringValue(res.Info.ActionName),
			"metrics":            structpb.NewStructValue(stateStruct(res.Info.Metrics)),
			"termination_reason": structpb.NewStringValue(string(res.Info.TerminationReason)),
		}}),
	}}, nil
}

func (h *GRPCHandler) Render(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	text, err := h.svc.Render(stringField(in, fieldSessionID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldText: structpb.NewStringValue(text),
	}}, nil
}

func (h *GRPCHandler) Close(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	h.svc.Close(stringField(in, fieldSessionID))
	return &structpb.Struct{}, nil
}

// toStatus maps engine and service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dailysim.ErrInvalidConfig), errors.Is(err, dailysim.ErrInvalidAction):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, dailysim.ErrNotReset):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrTooManySessions):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Serve runs the environment service on lis until ctx is done, then stops
// gracefully and releases every session.
func Serve(ctx context.Context, lis net.Listener, svc *Service, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	RegisterEnvironmentServer(gs, NewGRPCHandler(svc))

	janitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go svc.RunJanitor(janitorCtx, janitorInterval(svc.idleTimeout))

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			gs.GracefulStop()
		case <-done:
		}
	}()

	svc.logger.Info("environment service listening", "addr", lis.Addr().String())
	err := gs.Serve(lis)
	close(done)
	svc.CloseAll()
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
