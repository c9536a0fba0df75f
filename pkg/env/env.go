// Package env reads process environment variables with fallbacks, for the
// few knobs resolved before or outside the typed config.
package env

import "os"

// Get returns the environment value for key, or fallback when the variable
// is unset or blank.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
