package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"tourist-overwatch/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// MessageHandler processes one message. A returned error naks the message
// so JetStream redelivers it, up to the consumer's MaxDeliver.
type MessageHandler func(msg *nats.Msg) error

type BaseWorker struct {
	name     string
	nc       *nats.Conn
	js       nats.JetStreamContext
	mu       sync.Mutex
	sub      *nats.Subscription
	consumer string
	stream   string
	subject  string
	log      *zap.Logger
}

func NewBaseWorker(name string, nc *nats.Conn, js nats.JetStreamContext, stream, consumer, subject string) *BaseWorker {
	return &BaseWorker{
		name:     name,
		nc:       nc,
		js:       js,
		consumer: consumer,
		stream:   stream,
		subject:  subject,
		log:      logger.Named(name),
	}
}

func (w *BaseWorker) Name() string {
	return w.name
}

func (w *BaseWorker) Stop() error {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()

	if sub != nil {
		return sub.Drain()
	}
	return nil
}

func (w *BaseWorker) processMessages(ctx context.Context, handler MessageHandler) error {
	sub, err := w.js.PullSubscribe(w.subject, "",
		nats.Durable(w.consumer),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.Bind(w.stream, w.consumer),
	)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	w.log.Info("Starting worker", zap.String("stream", w.stream), zap.String("consumer", w.consumer))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker stopping")
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
		if err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("Error fetching messages", zap.Error(err))
			time.Sleep(250 * time.Millisecond)
			continue
		}

		for _, msg := range msgs {
			if err := handler(msg); err != nil {
				w.log.Warn("Message handling failed", zap.String("subject", msg.Subject), zap.Error(err))
				if err := msg.Nak(); err != nil {
					w.log.Error("Error naking message", zap.Error(err))
				}
				continue
			}
			if err := msg.Ack(); err != nil {
				w.log.Error("Error acknowledging message", zap.Error(err))
			}
		}
	}
}
