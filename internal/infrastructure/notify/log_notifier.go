package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

// LogNotifier writes notification events to the structured log. It is
// the default sink when no external delivery channel is configured; log
// shippers or webhook bridges can pick the events up from there.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, kind ports.NotificationKind, userID string, params map[string]string) error {
	event := n.log.Info().
		Str("event", "notification").
		Str("kind", string(kind)).
		Str("user_id", userID)
	for k, v := range params {
		event = event.Str("param_"+k, v)
	}
	event.Msg("user notification")
	return nil
}
