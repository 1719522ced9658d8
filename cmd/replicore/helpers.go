package main

import (
	"fmt"
	"time"
)

// parseDuration parses a Go duration string from a YAML manifest,
// naming the offending field+resource on failure instead of a bare
// time.ParseDuration error.
func parseDuration(s, resource string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid interval %q: %w", resource, s, err)
	}
	return d, nil
}
