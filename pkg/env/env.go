// Package env consolidates all environment variable reading for the application.
// Config overrides are applied only at startup (see config.Load).
package env

import (
	"os"
	"strconv"
)

// Environment variable names (single source of truth)
const (
	LOGLevel              = "LOG_LEVEL"
	DataDir               = "ITVHUB_DATA_DIR"
	ITVUsername           = "ITV_USERNAME"
	ITVPassword           = "ITV_PASSWORD"
	RequestTimeoutSeconds = "REQUEST_TIMEOUT_SECONDS"
	TZVar                 = "TZ"
)

// Config JSON keys returned by OverrideKeys (for startup warnings)
const (
	KeyLogLevel       = "log_level"
	KeyRequestTimeout = "request_timeout_seconds"
)

// GetString returns the value of the named variable, or def when unset.
func GetString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// GetInt returns the integer value of the named variable, or def when unset
// or not parseable.
func GetInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
