package instance

import "github.com/angelmondragon/reservation-engine/pkg/env"

// GetID returns the worker instance identifier or a default value.
func GetID() string {
	return env.Get("RESERVATION_WORKER_ID", "worker-0")
}
