package dailysim

import (
	"fmt"
	"sort"
)

const defaultTolerance = 1e-6

// Bounds is a closed numeric interval.
type Bounds struct {
	Low  float64
	High float64
}

func (b Bounds) clamp(v float64) float64 {
	return clamp(v, b.Low, b.High)
}

// MealSchedule maps hour of day to the mean glucose bump of a meal at that hour.
type MealSchedule map[int]float64

// DefaultMealSchedule returns breakfast, lunch and dinner.
func DefaultMealSchedule() MealSchedule {
	return MealSchedule{8: 30, 13: 40, 19: 35}
}

// Clone returns an independent copy. A nil schedule clones to nil.
func (m MealSchedule) Clone() MealSchedule {
	if m == nil {
		return nil
	}
	out := make(MealSchedule, len(m))
	for hour, size := range m {
		out[hour] = size
	}
	return out
}

// Hours returns the scheduled hours in ascending order.
func (m MealSchedule) Hours() []int {
	hours := make([]int, 0, len(m))
	for hour := range m {
		hours = append(hours, hour)
	}
	sort.Ints(hours)
	return hours
}

// Config parameterizes an Engine. The zero value is not valid; start from DefaultConfig.
type Config struct {
	DayLength       int
	StepTarget      float64
	MaxDailySteps   float64
	GlucoseTarget   float64
	GlucoseBounds   Bounds
	HeartRateBounds Bounds
	RestingHR       float64

	// MealSchedule nil means DefaultMealSchedule; an empty non-nil map disables meals.
	MealSchedule MealSchedule

	// Tolerance is the slack used by the termination thresholds. Zero means 1e-6.
	Tolerance float64

	// Seed, when set, seeds the generator at construction. Otherwise the clock is used.
	Seed *int64
}

func DefaultConfig() Config {
	return Config{
		DayLength:       24,
		StepTarget:      10000,
		MaxDailySteps:   30000,
		GlucoseTarget:   110,
		GlucoseBounds:   Bounds{Low: 60, High: 350},
		HeartRateBounds: Bounds{Low: 50, High: 190},
		RestingHR:       68,
	}
}

// Validate checks the relationships between configuration values.
func (c Config) Validate() error {
	if c.DayLength <= 0 {
		return fmt.Errorf("%w: day_length must be > 0, got %d", ErrInvalidConfig, c.DayLength)
	}
	if c.StepTarget <= 0 {
		return fmt.Errorf("%w: step_target must be > 0, got %g", ErrInvalidConfig, c.StepTarget)
	}
	if c.MaxDailySteps < c.StepTarget {
		return fmt.Errorf("%w: max_daily_steps (%g) must be >= step_target (%g)", ErrInvalidConfig, c.MaxDailySteps, c.StepTarget)
	}
	if c.GlucoseBounds.Low >= c.GlucoseBounds.High {
		return fmt.Errorf("%w: glucose bounds low (%g) must be < high (%g)", ErrInvalidConfig, c.GlucoseBounds.Low, c.GlucoseBounds.High)
	}
	if c.HeartRateBounds.Low >= c.HeartRateBounds.High {
		return fmt.Errorf("%w: heart rate bounds low (%g) must be < high (%g)", ErrInvalidConfig, c.HeartRateBounds.Low, c.HeartRateBounds.High)
	}
	if c.GlucoseTarget < c.GlucoseBounds.Low || c.GlucoseTarget > c.GlucoseBounds.High {
		return fmt.Errorf("%w: glucose_target %g outside bounds [%g, %g]", ErrInvalidConfig, c.GlucoseTarget, c.GlucoseBounds.Low, c.GlucoseBounds.High)
	}
	if c.RestingHR < c.HeartRateBounds.Low || c.RestingHR > c.HeartRateBounds.High {
		return fmt.Errorf("%w: resting_hr %g outside bounds [%g, %g]", ErrInvalidConfig, c.RestingHR, c.HeartRateBounds.Low, c.HeartRateBounds.High)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be >= 0, got %g", ErrInvalidConfig, c.Tolerance)
	}
	for _, hour := range c.MealSchedule.Hours() {
		if hour < 0 || hour >= c.DayLength {
			return fmt.Errorf("%w: meal hour %d outside [0, %d)", ErrInvalidConfig, hour, c.DayLength)
		}
	}
	return nil
}

func (c Config) tolerance() float64 {
	if c.Tolerance == 0 {
		return defaultTolerance
	}
	return c.Tolerance
}

// ObservationSpace returns the per-field lower and upper bounds of observations.
func (c Config) ObservationSpace() (low, high Observation) {
	low = Observation{
		IndexGlucose:   c.GlucoseBounds.Low,
		IndexHeartRate: c.HeartRateBounds.Low,
		IndexFatigue:   0,
		IndexAdherence: 0,
		IndexTimeOfDay: 0,
		IndexSteps:     0,
	}
	high = Observation{
		IndexGlucose:   c.GlucoseBounds.High,
		IndexHeartRate: c.HeartRateBounds.High,
		IndexFatigue:   1,
		IndexAdherence: 1,
		IndexTimeOfDay: float64(c.DayLength - 1),
		IndexSteps:     c.MaxDailySteps,
	}
	return low, high
}
