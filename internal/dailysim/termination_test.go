package dailysim

import "testing"

func TestCheckTerminationEdges(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name      string
		glucose   float64
		heartRate float64
		adherence float64
		want      TerminationReason
	}{
		{name: "severe hypoglycemia", glucose: cfg.GlucoseBounds.Low, heartRate: cfg.RestingHR, adherence: 0.5, want: ReasonSevereHypoglycemia},
		{name: "severe hyperglycemia", glucose: cfg.GlucoseBounds.High, heartRate: cfg.RestingHR, adherence: 0.5, want: ReasonSevereHyperglycemia},
		{name: "dangerous heart rate", glucose: cfg.GlucoseTarget, heartRate: cfg.HeartRateBounds.High, adherence: 0.5, want: ReasonDangerousHeartRate},
		{name: "adherence failure", glucose: cfg.GlucoseTarget, heartRate: cfg.RestingHR, adherence: 0.0, want: ReasonAdherenceFailure},
		{name: "adherence at threshold", glucose: cfg.GlucoseTarget, heartRate: cfg.RestingHR, adherence: 0.05, want: ReasonAdherenceFailure},
		{name: "within tolerance of low bound", glucose: cfg.GlucoseBounds.Low + 1e-7, heartRate: cfg.RestingHR, adherence: 0.5, want: ReasonSevereHypoglycemia},
		{name: "hypoglycemia outranks heart rate", glucose: cfg.GlucoseBounds.Low, heartRate: cfg.HeartRateBounds.High, adherence: 0, want: ReasonSevereHypoglycemia},
		{name: "heart rate outranks adherence", glucose: cfg.GlucoseTarget, heartRate: cfg.HeartRateBounds.High, adherence: 0, want: ReasonDangerousHeartRate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			terminated, reason := CheckTermination(cfg, tc.glucose, tc.heartRate, tc.adherence)
			if !terminated || reason != tc.want {
				t.Fatalf("expected (true, %q), got (%t, %q)", tc.want, terminated, reason)
			}
		})
	}
}

func TestCheckTerminationHealthyState(t *testing.T) {
	cfg := DefaultConfig()
	terminated, reason := CheckTermination(cfg, cfg.GlucoseTarget, cfg.RestingHR, 0.5)
	if terminated || reason != ReasonNone {
		t.Fatalf("expected no termination, got (%t, %q)", terminated, reason)
	}
	terminated, _ = CheckTermination(cfg, cfg.GlucoseBounds.Low+0.5, cfg.HeartRateBounds.High-0.5, 0.051)
	if terminated {
		t.Fatal("expected values just inside thresholds to keep the episode running")
	}
}

func TestCheckTerminationCustomTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = 0.5
	terminated, reason := CheckTermination(cfg, cfg.GlucoseBounds.Low+0.4, cfg.RestingHR, 0.5)
	if !terminated || reason != ReasonSevereHypoglycemia {
		t.Fatalf("expected widened tolerance to trigger hypoglycemia, got (%t, %q)", terminated, reason)
	}
}
