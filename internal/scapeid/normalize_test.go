package scapeid

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"diabetes-exercise":     DiabetesExercise,
		"diabetes_exercise":     DiabetesExercise,
		"DiabetesExerciseEnv":   DiabetesExercise,
		"diabetes":              DiabetesExercise,
		"diabetes-env":          DiabetesExercise,
		"diabetes_env":          DiabetesExercise,
		"Diabetes Exercise Env": DiabetesExercise,
		"scape_diabetes_sim":    DiabetesExercise,
		"diabetes-exercise-v0":  DiabetesExercise,
		"diabetes_env_v1":       DiabetesExercise,
		"dailysim":              DiabetesExercise,
		"custom_sim":            "custom-sim",
		"scape_custom":          "scape-custom",
		"env":                   "env",
		"":                      "",
	}

	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("normalize(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestIsKnown(t *testing.T) {
	if !IsKnown("DiabetesExerciseEnv") {
		t.Fatal("expected legacy class name to resolve")
	}
	if IsKnown("cart-pole") {
		t.Fatal("unexpected known scape")
	}
}
