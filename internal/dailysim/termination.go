package dailysim

// TerminationReason explains why an episode ended. The empty reason means it did not.
type TerminationReason string

const (
	ReasonNone                TerminationReason = ""
	ReasonSevereHypoglycemia  TerminationReason = "severe_hypoglycemia"
	ReasonSevereHyperglycemia TerminationReason = "severe_hyperglycemia"
	ReasonDangerousHeartRate  TerminationReason = "dangerous_heart_rate"
	ReasonAdherenceFailure    TerminationReason = "adherence_failure"
	ReasonEndOfDay            TerminationReason = "end_of_day"
)

const adherenceFailureLevel = 0.05

// CheckTermination applies the safety thresholds in priority order; the first match wins.
func CheckTermination(cfg Config, glucose, heartRate, adherence float64) (bool, TerminationReason) {
	tol := cfg.tolerance()
	switch {
	case glucose <= cfg.GlucoseBounds.Low+tol:
		return true, ReasonSevereHypoglycemia
	case glucose >= cfg.GlucoseBounds.High-tol:
		return true, ReasonSevereHyperglycemia
	case heartRate >= cfg.HeartRateBounds.High-tol:
		return true, ReasonDangerousHeartRate
	case adherence <= adherenceFailureLevel:
		return true, ReasonAdherenceFailure
	default:
		return false, ReasonNone
	}
}
