package instance

import (
	"os"
	"strings"
)

// ID names this process in lock ownership and logs. KITSTOCK_WORKER_ID wins,
// then the hostname.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("KITSTOCK_WORKER_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
