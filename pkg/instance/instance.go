// Package instance identifies the running process in logs and locks.
package instance

import "os"

// GetID returns a stable identifier for this process. Heroku dynos expose
// DYNO, worker deployments set WORKER_ID, and anything else falls back to
// the hostname.
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
