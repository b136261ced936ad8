package diagnostic

import "go.uber.org/zap"

// ZapReporter writes events to a dedicated logger.
type ZapReporter struct {
	logger *zap.Logger
}

var _ Reporter = (*ZapReporter)(nil)

// NewZapReporter names the logger "diagnostic".
func NewZapReporter(logger *zap.Logger) *ZapReporter {
	return &ZapReporter{logger: logger.Named("diagnostic")}
}

func (r *ZapReporter) Deliver(event Event) {
	r.logger.Warn("capability rejected",
		zap.Int64("event_id", event.ID),
		zap.String("kind", event.Kind),
		zap.String("reason", string(event.Reason)),
		zap.String("detail", event.Detail),
		zap.String("remote_addr", event.RemoteAddr),
		zap.String("raw", event.Raw),
		zap.Time("occurred_at", event.OccurredAt),
	)
}
