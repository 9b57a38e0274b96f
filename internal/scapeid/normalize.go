package scapeid

import "strings"

// DiabetesExercise is the canonical id of the daily diabetes/exercise scape.
const DiabetesExercise = "diabetes-exercise"

// Known lists every canonical scape id.
func Known() []string {
	return []string{DiabetesExercise}
}

// Normalize canonicalizes scape names and their legacy aliases. Unknown names
// come back lower-cased and dash separated.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	if canonical, ok := normalizeKnownAlias(normalized); ok {
		return canonical
	}
	return normalized
}

// IsKnown reports whether name resolves to a registered scape.
func IsKnown(name string) bool {
	normalized := Normalize(name)
	for _, known := range Known() {
		if normalized == known {
			return true
		}
	}
	return false
}

func normalizeKnownAlias(normalized string) (string, bool) {
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalScapeName(candidate); ok {
			return canonical, true
		}
	}
	return "", false
}

func aliasCandidates(normalized string) []string {
	candidate := strings.TrimPrefix(normalized, "scape-")
	candidate = strings.Trim(candidate, "-")

	candidates := []string{normalized}
	if candidate != "" && candidate != normalized {
		candidates = append(candidates, candidate)
	}

	trimmed := trimSuffixes(candidate)
	if trimmed != "" && trimmed != candidate {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

// trimSuffixes drops version, env and sim suffixes in any order, so
// "diabetes-env-v0" and "diabetes-sim" both reduce to "diabetes".
func trimSuffixes(value string) string {
	for {
		next := value
		for _, suffix := range []string{"-v0", "-v1", "-env", "-sim", "env", "sim"} {
			if strings.HasSuffix(next, suffix) && len(next) > len(suffix) {
				next = strings.TrimSuffix(next, suffix)
				next = strings.Trim(next, "-")
				break
			}
		}
		if next == value {
			return value
		}
		value = next
	}
}

func canonicalScapeName(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "-", "") {
	case "diabetesexercise", "diabetes", "dailysim", "exercisediabetes":
		return DiabetesExercise, true
	default:
		return "", false
	}
}
