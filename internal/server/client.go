package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"glucosim/internal/dailysim"
)

// Client drives remote sessions of the environment service.
type Client struct {
	conn grpc.ClientConnInterface
	own  *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, own: conn}, nil
}

// NewClient wraps an existing connection. Close leaves conn open.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}

// CreateSession opens a session. A nil cfg uses the server defaults.
func (c *Client) CreateSession(ctx context.Context, cfg *dailysim.Config) (string, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if cfg != nil {
		overrides, err := configStruct(*cfg)
		if err != nil {
			return "", fmt.Errorf("encode config: %w", err)
		}
		req.Fields[fieldConfig] = structpb.NewStructValue(overrides)
	}
	out, err := c.invoke(ctx, "CreateSession", req)
	if err != nil {
		return "", err
	}
	return stringField(out, fieldSessionID), nil
}

// Reset starts a new episode in the session. A nil seed continues the
// session's generator.
func (c *Client) Reset(ctx context.Context, sessionID string, seed *int64) (dailysim.Observation, dailysim.ResetInfo, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(sessionID),
	}}
	if seed != nil {
		req.Fields[fieldSeed] = int64Value(*seed)
	}
	out, err := c.invoke(ctx, "Reset", req)
	if err != nil {
		return dailysim.Observation{}, dailysim.ResetInfo{}, err
	}
	obs, err := observationFromValue(out.GetFields()[fieldObservation])
	if err != nil {
		return dailysim.Observation{}, dailysim.ResetInfo{}, err
	}
	info := out.GetFields()[fieldInfo].GetStructValue().GetFields()
	return obs, dailysim.ResetInfo{
		GlucoseTarget: info["glucose_target"].GetNumberValue(),
		StepTarget:    info["step_target"].GetNumberValue(),
	}, nil
}

func (c *Client) Step(ctx context.Context, sessionID string, action dailysim.Action) (dailysim.StepResult, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(sessionID),
		fieldAction:    structpb.NewNumberValue(float64(action)),
	}}
	out, err := c.invoke(ctx, "Step", req)
	if err != nil {
		return dailysim.StepResult{}, err
	}
	obs, err := observationFromValue(out.GetFields()[fieldObservation])
	if err != nil {
		return dailysim.StepResult{}, err
	}
	info := out.GetFields()[fieldInfo].GetStructValue().GetFields()
	return dailysim.StepResult{
		Observation: obs,
		Reward:      out.GetFields()[fieldReward].GetNumberValue(),
		Terminated:  out.GetFields()[fieldTerminated].GetBoolValue(),
		Truncated:   out.GetFields()[fieldTruncated].GetBoolValue(),
		Info: dailysim.StepInfo{
			Step:              int(info["step"].GetNumberValue()),
			ActionName:        info["action_name"].GetStringValue(),
			Metrics:           stateFromStruct(info["metrics"].GetStructValue()),
			TerminationReason: dailysim.TerminationReason(info["termination_reason"].GetStringValue()),
		},
	}, nil
}

func (c *Client) Render(ctx context.Context, sessionID string) (string, error) {
	out, err := c.invoke(ctx, "Render", sessionRequest(sessionID))
	if err != nil {
		return "", err
	}
	return stringField(out, fieldText), nil
}

// CloseSession releases a remote session.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	_, err := c.invoke(ctx, "Close", sessionRequest(sessionID))
	return err
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func sessionRequest(id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(id),
	}}
}
