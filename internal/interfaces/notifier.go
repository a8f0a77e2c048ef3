package interfaces

import "context"

// Notifier fans a run summary out to the configured push channels.
// Delivery is best-effort: channel failures are logged, never returned.
type Notifier interface {
	Push(ctx context.Context, title, body string)
}
