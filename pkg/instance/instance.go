// Package instance names the running process in logs so concurrent API and
// cron replicas can be told apart.
package instance

import (
	"os"
	"strings"
)

const fallbackID = "local"

// ID returns the first non-empty of PAYFLOW_INSTANCE_ID, DYNO and the host
// name, or "local" when none is available.
func ID() string {
	for _, key := range []string{"PAYFLOW_INSTANCE_ID", "DYNO"} {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
