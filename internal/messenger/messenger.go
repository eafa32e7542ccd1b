package messenger

import (
	"context"

	"github.com/maptrack/maptrack/internal/tracking"
)

// Messenger delivers a rendered message, with optional follow-up action
// hints, to a subscriber's chat channel.
type Messenger interface {
	Send(ctx context.Context, subscriber int64, text string, actions []tracking.Action) error
}
