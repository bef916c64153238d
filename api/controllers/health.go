package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/angelmondragon/pdalogistics-backend/api/responses"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

const (
	EnvHeader           = "X-PDA-Env"
	defaultReadyTimeout = 2 * time.Second
)

// Pinger is satisfied by the db, redis and pubsub clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names one dependency probed by the readiness endpoint.
type Check struct {
	Name   string
	Pinger Pinger
}

func HealthLive(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(EnvHeader, env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and answers 503 when any
// of them fails.
func HealthReady(env string, logg *logger.Logger, checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(EnvHeader, env)
		ctx, cancel := context.WithTimeout(r.Context(), defaultReadyTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			status = make(map[string]string, len(checks))
			ready  = true
		)
		for _, check := range checks {
			wg.Add(1)
			go func(check Check) {
				defer wg.Done()
				err := check.Pinger.Ping(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					ready = false
					status[check.Name] = "down"
					logg.Warn(logg.WithField(ctx, "dependency", check.Name), "readiness check failed: "+err.Error())
					return
				}
				status[check.Name] = "up"
			}(check)
		}
		wg.Wait()

		if !ready {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "checks": status})
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}
