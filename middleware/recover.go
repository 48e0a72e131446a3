package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/mak100186/push-delivered-queue/subscriber"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to Nack with an error and logged with a
// stack trace, so a panicking handler behaves like any other failed
// attempt.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, d *Delivery, next Handler) (res subscriber.DeliveryResult, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("receive handler panicked",
					slog.String("message_id", d.Envelope.ID.String()),
					slog.String("subscriber_id", d.Subscriber.String()),
					slog.Int("attempt", d.Attempt),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				res = subscriber.Nack
				retErr = fmt.Errorf("panic delivering message %s: %v", d.Envelope.ID, r)
			}
		}()
		return next(ctx)
	}
}
