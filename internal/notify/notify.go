// Package notify delivers lifecycle events as email, best-effort. The core
// hands events over and moves on; nothing here can fail a mutation.
package notify

import (
	"context"

	"studio-management-api/internal/core"
	"studio-management-api/internal/logger"
)

// LogDispatcher records events in the log instead of sending mail. Used when
// no mail API key is configured.
type LogDispatcher struct {
	Log *logger.Logger
}

var _ core.Dispatcher = (*LogDispatcher)(nil)

func (d *LogDispatcher) Notify(ctx context.Context, ev core.Event) error {
	d.Log.Info("notification (mail disabled)",
		"kind", ev.Kind, "recipient", ev.Recipient.Email, "payload", ev.Payload)
	return nil
}
