package utils

import (
	"os"
	"strings"
)

// Getenv retrieves the value of the environment variable named by the key.
// If the variable is not present or its value is empty, Getenv returns the fallback string.
func Getenv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

// GetenvList reads a comma-separated environment variable into a slice,
// trimming whitespace and dropping empty entries. Used for the table inventory.
func GetenvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
