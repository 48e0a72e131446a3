package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mak100186/push-delivered-queue/id"
	"github.com/mak100186/push-delivered-queue/message"
	"github.com/mak100186/push-delivered-queue/subscriber"
)

func testDelivery() *Delivery {
	return &Delivery{
		Envelope:   message.New("m"),
		Subscriber: id.NewSubscriberID(),
		Attempt:    1,
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mk := func(name string) Middleware {
		return func(ctx context.Context, _ *Delivery, next Handler) (subscriber.DeliveryResult, error) {
			order = append(order, name+"-before")
			res, err := next(ctx)
			order = append(order, name+"-after")
			return res, err
		}
	}

	chain := Chain(mk("outer"), mk("inner"))
	res, err := chain(context.Background(), testDelivery(), func(context.Context) (subscriber.DeliveryResult, error) {
		order = append(order, "handler")
		return subscriber.Ack, nil
	})
	if err != nil || res != subscriber.Ack {
		t.Fatalf("chain = (%v, %v), want (Ack, nil)", res, err)
	}

	want := "outer-before,inner-before,handler,inner-after,outer-after"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}
}

func TestChainEmpty(t *testing.T) {
	t.Parallel()

	chain := Chain()
	res, err := chain(context.Background(), testDelivery(), func(context.Context) (subscriber.DeliveryResult, error) {
		return subscriber.Nack, nil
	})
	if err != nil || res != subscriber.Nack {
		t.Fatalf("empty chain = (%v, %v), want (Nack, nil)", res, err)
	}
}

func TestRecoverConvertsPanic(t *testing.T) {
	t.Parallel()

	mw := Recover(slog.Default())
	res, err := mw(context.Background(), testDelivery(), func(context.Context) (subscriber.DeliveryResult, error) {
		panic("boom")
	})
	if res != subscriber.Nack {
		t.Fatalf("result = %v, want Nack", res)
	}
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error = %v, want panic message", err)
	}
}

func TestRecoverPassThrough(t *testing.T) {
	t.Parallel()

	mw := Recover(slog.Default())
	res, err := mw(context.Background(), testDelivery(), func(context.Context) (subscriber.DeliveryResult, error) {
		return subscriber.Ack, nil
	})
	if err != nil || res != subscriber.Ack {
		t.Fatalf("pass-through = (%v, %v), want (Ack, nil)", res, err)
	}
}

func TestLoggingPassThrough(t *testing.T) {
	t.Parallel()

	mw := Logging(slog.Default())
	wantErr := errors.New("handler error")

	tests := []struct {
		name string
		res  subscriber.DeliveryResult
		err  error
	}{
		{"ack", subscriber.Ack, nil},
		{"nack", subscriber.Nack, nil},
		{"error", subscriber.Nack, wantErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := mw(context.Background(), testDelivery(), func(context.Context) (subscriber.DeliveryResult, error) {
				return tt.res, tt.err
			})
			if res != tt.res || !errors.Is(err, tt.err) {
				t.Fatalf("got (%v, %v), want (%v, %v)", res, err, tt.res, tt.err)
			}
		})
	}
}

func TestMetricsAndTracingNoopPassThrough(t *testing.T) {
	t.Parallel()

	// Without configured global providers both middleware must be
	// transparent pass-throughs.
	chain := Chain(Metrics(), Tracing())
	wantErr := errors.New("nope")
	res, err := chain(context.Background(), testDelivery(), func(context.Context) (subscriber.DeliveryResult, error) {
		return subscriber.Nack, wantErr
	})
	if res != subscriber.Nack || !errors.Is(err, wantErr) {
		t.Fatalf("got (%v, %v), want (Nack, %v)", res, err, wantErr)
	}
}
