package instance

import (
	"os"

	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
)

// GetID identifies this worker process in logs and lock diagnostics.
// PDA_WORKER_ID wins, then the hostname (the pod name on Cloud Run and GKE).
func GetID() string {
	if id := os.Getenv(config.EnvWorkerID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
