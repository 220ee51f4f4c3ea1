package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables read by FromEnv.
const (
	EnvHost     = "DART_HOST"
	EnvPort     = "DART_PORT"
	EnvToken    = "DART_TOKEN"
	EnvTimeout  = "DART_TIMEOUT"
	EnvLogLevel = "DART_LOG_LEVEL"
)

// envInt parses a positive integer from the environment variable named v, or
// returns d if v is undefined.
func envInt(v string, d int) (int, error) {
	if s := os.Getenv(v); s != "" {
		n, err := strconv.ParseUint(s, 10, 31)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("%s must be a non-zero integer", v)
		}
		return int(n), nil
	}
	return d, nil
}

// envDuration parses a duration from the environment variable named v, or
// returns d if v is undefined. Plain numbers are seconds.
func envDuration(v string, d time.Duration) (time.Duration, error) {
	s := os.Getenv(v)
	if s == "" {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%s must be a positive duration", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	t, err := time.ParseDuration(s)
	if err != nil || t <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (seconds or e.g. 1500ms)", v)
	}
	return t, nil
}

func envString(v string, d string) string {
	if s := os.Getenv(v); s != "" {
		return s
	}
	return d
}
