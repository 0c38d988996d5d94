package platform

import (
	"context"
	"log/slog"
)

// LogDispatcher is a [Dispatcher] that logs every dispatch instead of
// reaching a telephony or OS backend, and reports success. It is the
// stand-in used when no platform gateway is configured, so resolved actions
// still flow through their full lifecycle.
type LogDispatcher struct {
	logger *slog.Logger
}

var _ Dispatcher = (*LogDispatcher)(nil)

// NewLogDispatcher returns a [LogDispatcher] writing to logger.
// A nil logger falls back to [slog.Default].
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// PlaceCall implements [Dispatcher]. The returned handle is the record ID.
func (d *LogDispatcher) PlaceCall(ctx context.Context, recordID, address string) (CallHandle, error) {
	d.logger.InfoContext(ctx, "call dispatched",
		"record_id", recordID,
		"address", address,
	)
	return CallHandle(recordID), nil
}

// LaunchApp implements [Dispatcher].
func (d *LogDispatcher) LaunchApp(ctx context.Context, recordID, appName string) error {
	d.logger.InfoContext(ctx, "application launched",
		"record_id", recordID,
		"app", appName,
	)
	return nil
}

// CancelCall implements [Dispatcher].
func (d *LogDispatcher) CancelCall(ctx context.Context, handle CallHandle) error {
	d.logger.InfoContext(ctx, "call cancelled", "handle", string(handle))
	return nil
}
