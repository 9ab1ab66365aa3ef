package health

import "context"

// HealthPinger is implemented by dependencies that can verify their own
// liveness, such as a store checking its database connection. A nil
// return means healthy; the readiness endpoint and the background
// checker both degrade the reported state on any error.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
