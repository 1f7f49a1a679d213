package workers

import (
	"context"
	"encoding/json"

	"tourist-overwatch/pkg/shared"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type EventWorker struct {
	*BaseWorker
}

func NewEventWorker(nc *nats.Conn, js nats.JetStreamContext) *EventWorker {
	return &EventWorker{
		BaseWorker: NewBaseWorker(
			"EventWorker",
			nc,
			js,
			shared.StreamEvents,
			shared.ConsumerEventProcessor,
			shared.SubjectSystemAll,
		),
	}
}

func (w *EventWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, func(msg *nats.Msg) error {
		var event shared.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			w.log.Info("Raw event message", zap.String("subject", msg.Subject), zap.ByteString("data", msg.Data))
			return nil
		}
		w.log.Info("Lifecycle event",
			zap.String("type", event.Type),
			zap.Time("at", event.Timestamp),
			zap.Any("data", event.Data),
		)
		return nil
	})
}
