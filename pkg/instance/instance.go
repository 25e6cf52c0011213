package instance

import "os"

// GetID returns the process instance identifier or a default value.
func GetID() string {
	if id := os.Getenv("TILLSYNC_INSTANCE_ID"); id != "" {
		return id
	}
	return "terminal-0"
}
