package server

import (
	"context"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"glucosim/internal/dailysim"
)

func startBufconnServer(t *testing.T, opts Options) (*Client, *Service) {
	t.Helper()
	svc := newTestService(t, opts)
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- Serve(ctx, lis, svc)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		cancel()
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-serveErr:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return NewClient(conn), svc
}

func TestGRPCEpisodeEndToEnd(t *testing.T) {
	client, svc := startBufconnServer(t, Options{})
	ctx := context.Background()

	id, err := client.CreateSession(ctx, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if id == "" {
		t.Fatal("expected session id")
	}

	seed := int64(9)
	obs, info, err := client.Reset(ctx, id, &seed)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if info.GlucoseTarget != 110 || info.StepTarget != 10000 {
		t.Fatalf("unexpected reset info: %+v", info)
	}

	local, err := dailysim.NewEngine(dailysim.DefaultConfig())
	if err != nil {
		t.Fatalf("local engine: %v", err)
	}
	localObs, _ := local.Reset(dailysim.WithSeed(seed))
	if obs != localObs {
		t.Fatalf("remote reset diverged from local: %v vs %v", obs, localObs)
	}

	actions := []dailysim.Action{
		dailysim.ActionLightWalk,
		dailysim.ActionModerateJog,
		dailysim.ActionRest,
		dailysim.ActionHighIntensity,
	}
	for i, action := range actions {
		remote, err := client.Step(ctx, id, action)
		if err != nil {
			t.Fatalf("remote step %d: %v", i, err)
		}
		want, err := local.Step(action)
		if err != nil {
			t.Fatalf("local step %d: %v", i, err)
		}
		if remote.Observation != want.Observation || remote.Reward != want.Reward {
			t.Fatalf("step %d diverged: remote=%+v local=%+v", i, remote, want)
		}
		if remote.Info.ActionName != action.String() || remote.Info.Step != i+1 {
			t.Fatalf("unexpected info at step %d: %+v", i, remote.Info)
		}
		if remote.Info.Metrics != want.Info.Metrics {
			t.Fatalf("metrics diverged at step %d: %+v vs %+v", i, remote.Info.Metrics, want.Info.Metrics)
		}
	}

	text, err := client.Render(ctx, id)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(text, "high_intensity") {
		t.Fatalf("expected last action in render, got %q", text)
	}

	if err := client.CloseSession(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.CloseSession(ctx, id); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
	if svc.Sessions() != 0 {
		t.Fatalf("expected no sessions, got %d", svc.Sessions())
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	client, _ := startBufconnServer(t, Options{MaxSessions: 1})
	ctx := context.Background()

	badCfg := dailysim.DefaultConfig()
	badCfg.MaxDailySteps = 10
	if _, err := client.CreateSession(ctx, &badCfg); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad config, got %v", err)
	}

	id, err := client.CreateSession(ctx, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := client.CreateSession(ctx, nil); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
	if _, err := client.Step(ctx, id, dailysim.ActionRest); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition before reset, got %v", err)
	}
	if _, _, err := client.Reset(ctx, id, nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := client.Step(ctx, id, dailysim.Action(7)); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad action, got %v", err)
	}
	if _, err := client.Step(ctx, "missing", dailysim.ActionRest); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for unknown session, got %v", err)
	}
}

func TestGRPCSessionConfigOverride(t *testing.T) {
	client, _ := startBufconnServer(t, Options{})
	ctx := context.Background()

	cfg := dailysim.DefaultConfig()
	cfg.DayLength = 4
	cfg.MealSchedule = dailysim.MealSchedule{}
	id, err := client.CreateSession(ctx, &cfg)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	seed := int64(3)
	if _, _, err := client.Reset(ctx, id, &seed); err != nil {
		t.Fatalf("reset: %v", err)
	}

	var last dailysim.StepResult
	for i := 0; i < 4; i++ {
		last, err = client.Step(ctx, id, dailysim.ActionLightWalk)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if !last.Truncated {
		t.Fatalf("expected truncation after %d steps with day length 4: %+v", 4, last)
	}
}

func TestGRPCResetWithLargeSeedMatchesLocal(t *testing.T) {
	client, _ := startBufconnServer(t, Options{})
	ctx := context.Background()

	id, err := client.CreateSession(ctx, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	local, err := dailysim.NewEngine(dailysim.DefaultConfig())
	if err != nil {
		t.Fatalf("local engine: %v", err)
	}

	for _, seed := range []int64{1<<60 + 1, -(1<<62 + 7), math.MaxInt64} {
		remote, _, err := client.Reset(ctx, id, &seed)
		if err != nil {
			t.Fatalf("remote reset with seed %d: %v", seed, err)
		}
		want, _ := local.Reset(dailysim.WithSeed(seed))
		if remote != want {
			t.Fatalf("seed %d: remote reset %v differs from local %v", seed, remote, want)
		}
	}
}

func TestGRPCResetRejectsInexactNumericSeed(t *testing.T) {
	client, _ := startBufconnServer(t, Options{})
	ctx := context.Background()
	id, err := client.CreateSession(ctx, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(id),
		fieldSeed:      structpb.NewNumberValue(float64(1<<60 + 1)),
	}}
	if _, err := client.invoke(ctx, "Reset", req); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for inexact seed, got %v", err)
	}
}

func TestToStatusPassesThroughUnknownErrors(t *testing.T) {
	if toStatus(nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	if got := status.Code(toStatus(context.DeadlineExceeded)); got != codes.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %s", got)
	}
	if got := status.Code(toStatus(net.ErrClosed)); got != codes.Internal {
		t.Fatalf("expected Internal, got %s", got)
	}
}
