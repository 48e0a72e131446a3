package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/mak100186/push-delivered-queue/subscriber"
)

// Logging returns middleware that logs each delivery attempt and its
// outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d *Delivery, next Handler) (subscriber.DeliveryResult, error) {
		logger.Debug("delivery attempt",
			slog.String("message_id", d.Envelope.ID.String()),
			slog.String("subscriber_id", d.Subscriber.String()),
			slog.Int("attempt", d.Attempt),
		)

		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			logger.Warn("delivery attempt errored",
				slog.String("message_id", d.Envelope.ID.String()),
				slog.String("subscriber_id", d.Subscriber.String()),
				slog.Int("attempt", d.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		case res != subscriber.Ack:
			logger.Debug("delivery attempt nacked",
				slog.String("message_id", d.Envelope.ID.String()),
				slog.String("subscriber_id", d.Subscriber.String()),
				slog.Int("attempt", d.Attempt),
				slog.Duration("elapsed", elapsed),
			)
		default:
			logger.Debug("delivery acked",
				slog.String("message_id", d.Envelope.ID.String()),
				slog.String("subscriber_id", d.Subscriber.String()),
				slog.Int("attempt", d.Attempt),
				slog.Duration("elapsed", elapsed),
			)
		}

		return res, err
	}
}
