package paths

import (
	"os"

	"itvhub/pkg/env"
)

// GetDataDir returns the data directory path.
// The ITVHUB_DATA_DIR environment variable wins when set.
// If running in Docker (/.dockerenv exists), returns /app/data.
// Otherwise returns current directory (.)
func GetDataDir() string {
	if dir := os.Getenv(env.DataDir); dir != "" {
		return dir
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		// Running in Docker container
		return "/app/data"
	}
	return "."
}
