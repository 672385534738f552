package util

import (
	"os"
	"strconv"
)

// GetEnvOrDefault returns the environment variable value if set, otherwise the default value
func GetEnvOrDefault(env, def string) string {
	if val := os.Getenv(env); val != "" {
		return val
	}
	return def
}

// GetEnvOrDefaultInt is GetEnvOrDefault for integer variables. Unset or
// unparsable values yield the default.
func GetEnvOrDefaultInt(env string, def int) int {
	val := os.Getenv(env)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
