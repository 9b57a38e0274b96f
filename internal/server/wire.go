package server

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"glucosim/internal/dailysim"
)

// Field names shared by the server handlers and the client.
const (
	fieldSessionID   = "session_id"
	fieldConfig      = "config"
	fieldSeed        = "seed"
	fieldOptions     = "options"
	fieldAction      = "action"
	fieldObservation = "observation"
	fieldInfo        = "info"
	fieldReward      = "reward"
	fieldTerminated  = "terminated"
	fieldTruncated   = "truncated"
	fieldText        = "text"
)

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func hasField(s *structpb.Struct, key string) bool {
	v, ok := s.GetFields()[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

// maxExactInteger is the largest magnitude a double carries without rounding.
const maxExactInteger = 1 << 53

// intField reads an integer sent either as a decimal string or as a number.
// Numbers beyond 2^53 are rejected since they may already have been rounded.
func intField(s *structpb.Struct, key string) (int64, error) {
	switch kind := s.GetFields()[key].GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(strings.TrimSpace(kind.StringValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a decimal int64, got %q", key, kind.StringValue)
		}
		return n, nil
	case *structpb.Value_NumberValue:
		v := kind.NumberValue
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		if math.Abs(v) > maxExactInteger {
			return 0, fmt.Errorf("%s %v exceeds 2^53, send it as a decimal string", key, v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

// int64Value encodes n losslessly.
func int64Value(n int64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatInt(n, 10))
}

func observationValue(obs dailysim.Observation) *structpb.Value {
	values := make([]*structpb.Value, len(obs))
	for i, v := range obs {
		values[i] = structpb.NewNumberValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func observationFromValue(v *structpb.Value) (dailysim.Observation, error) {
	values := v.GetListValue().GetValues()
	if len(values) != dailysim.ObservationSize {
		return dailysim.Observation{}, fmt.Errorf("observation must have %d values, got %d", dailysim.ObservationSize, len(values))
	}
	var obs dailysim.Observation
	for i, value := range values {
		obs[i] = value.GetNumberValue()
	}
	return obs, nil
}

func stateStruct(s dailysim.State) *structpb.Struct {
	fields := make(map[string]*structpb.Value, dailysim.ObservationSize)
	for key, value := range s.Metrics() {
		fields[key] = structpb.NewNumberValue(value)
	}
	return &structpb.Struct{Fields: fields}
}

func stateFromStruct(s *structpb.Struct) dailysim.State {
	f := s.GetFields()
	return dailysim.State{
		Glucose:   f["glucose"].GetNumberValue(),
		HeartRate: f["heart_rate"].GetNumberValue(),
		Fatigue:   f["fatigue"].GetNumberValue(),
		Adherence: f["adherence"].GetNumberValue(),
		TimeOfDay: f["time_of_day"].GetNumberValue(),
		Steps:     f["steps"].GetNumberValue(),
	}
}

// actionFromValue accepts a numeric id or an action name.
func actionFromValue(v *structpb.Value) (dailysim.Action, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("%w: %v is not an integer", dailysim.ErrInvalidAction, n)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %v out of range", dailysim.ErrInvalidAction, n)
		}
		action := dailysim.Action(int(n))
		if !action.Valid() {
			return 0, fmt.Errorf("%w: %d not in [0, %d)", dailysim.ErrInvalidAction, int(n), dailysim.ActionCount)
		}
		return action, nil
	case *structpb.Value_StringValue:
		return dailysim.ParseAction(kind.StringValue)
	default:
		return 0, fmt.Errorf("%w: action is required", dailysim.ErrInvalidAction)
	}
}

// configFromStruct applies per-session overrides on top of base.
func configFromStruct(base dailysim.Config, s *structpb.Struct) (dailysim.Config, error) {
	cfg := base
	cfg.MealSchedule = base.MealSchedule.Clone()
	if base.Seed != nil {
		seed := *base.Seed
		cfg.Seed = &seed
	}
	if s == nil {
		return cfg, nil
	}

	for key, value := range s.GetFields() {
		switch key {
		case "day_length":
			n, err := intField(s, key)
			if err != nil {
				return dailysim.Config{}, fmt.Errorf("%w: %v", dailysim.ErrInvalidConfig, err)
			}
			cfg.DayLength = int(n)
		case "step_target":
			cfg.StepTarget = value.GetNumberValue()
		case "max_daily_steps":
			cfg.MaxDailySteps = value.GetNumberValue()
		case "glucose_target":
			cfg.GlucoseTarget = value.GetNumberValue()
		case "glucose_low":
			cfg.GlucoseBounds.Low = value.GetNumberValue()
		case "glucose_high":
			cfg.GlucoseBounds.High = value.GetNumberValue()
		case "heart_rate_low":
			cfg.HeartRateBounds.Low = value.GetNumberValue()
		case "heart_rate_high":
			cfg.HeartRateBounds.High = value.GetNumberValue()
		case "resting_hr":
			cfg.RestingHR = value.GetNumberValue()
		case "tolerance":
			cfg.Tolerance = value.GetNumberValue()
		case "seed":
			n, err := intField(s, key)
			if err != nil {
				return dailysim.Config{}, fmt.Errorf("%w: %v", dailysim.ErrInvalidConfig, err)
			}
			cfg.Seed = &n
		case "meals":
			schedule, ok := value.GetKind().(*structpb.Value_StructValue)
			if !ok {
				return dailysim.Config{}, fmt.Errorf("%w: meals must be an object of hour to size", dailysim.ErrInvalidConfig)
			}
			meals := dailysim.MealSchedule{}
			for hourKey, size := range schedule.StructValue.GetFields() {
				hour, err := strconv.Atoi(hourKey)
				if err != nil {
					return dailysim.Config{}, fmt.Errorf("%w: meal hour %q", dailysim.ErrInvalidConfig, hourKey)
				}
				mealSize, ok := size.GetKind().(*structpb.Value_NumberValue)
				if !ok {
					return dailysim.Config{}, fmt.Errorf("%w: meal size at hour %d must be a number", dailysim.ErrInvalidConfig, hour)
				}
				meals[hour] = mealSize.NumberValue
			}
			cfg.MealSchedule = meals
		default:
			return dailysim.Config{}, fmt.Errorf("%w: unknown field %q", dailysim.ErrInvalidConfig, key)
		}
	}
	return cfg, cfg.Validate()
}

// configStruct renders the overridable fields of cfg for CreateSession.
func configStruct(cfg dailysim.Config) (*structpb.Struct, error) {
	fields := map[string]any{
		"day_length":      cfg.DayLength,
		"step_target":     cfg.StepTarget,
		"max_daily_steps": cfg.MaxDailySteps,
		"glucose_target":  cfg.GlucoseTarget,
		"glucose_low":     cfg.GlucoseBounds.Low,
		"glucose_high":    cfg.GlucoseBounds.High,
		"heart_rate_low":  cfg.HeartRateBounds.Low,
		"heart_rate_high": cfg.HeartRateBounds.High,
		"resting_hr":      cfg.RestingHR,
		"tolerance":       cfg.Tolerance,
	}
	if cfg.MealSchedule != nil {
		meals := make(map[string]any, len(cfg.MealSchedule))
		for hour, size := range cfg.MealSchedule {
			meals[strconv.Itoa(hour)] = size
		}
		fields["meals"] = meals
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	if cfg.Seed != nil {
		out.Fields["seed"] = int64Value(*cfg.Seed)
	}
	return out, nil
}
