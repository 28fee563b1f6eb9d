package featureflags

import (
	"os"
	"strings"
)

// Known flags
const (
	// SeedData loads the demo Dhaka listings at startup
	SeedData = "SEED_DATA"
	// ChangeStream exposes /ws/changes
	ChangeStream = "CHANGE_STREAM"
	// GazetteerFallback lets searches fall back to the offline area table
	GazetteerFallback = "GAZETTEER_FALLBACK"
)

// Enabled reports whether FLAG_<NAME> is set to a true value
// (1, true, yes or on, case-insensitive)
func Enabled(name string) bool {
	return EnabledOr(name, false)
}

// EnabledOr is Enabled with a default for when the variable is unset or unrecognised
func EnabledOr(name string, def bool) bool {
	v, ok := os.LookupEnv("FLAG_" + strings.ToUpper(name))
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
