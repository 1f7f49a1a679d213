package workers

import (
	"context"
	"encoding/json"

	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// TelemetryWorker watches movement observations and surfaces the ones
// recorded in a distress state.
type TelemetryWorker struct {
	*BaseWorker
}

func NewTelemetryWorker(nc *nats.Conn, js nats.JetStreamContext) *TelemetryWorker {
	return &TelemetryWorker{
		BaseWorker: NewBaseWorker(
			"TelemetryWorker",
			nc,
			js,
			shared.StreamTelemetry,
			shared.ConsumerTelemetryProcessor,
			shared.SubjectTelemetryAll,
		),
	}
}

func (w *TelemetryWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, w.handle)
}

func (w *TelemetryWorker) handle(msg *nats.Msg) error {
	var event struct {
		Data struct {
			Entry ontology.LogEntry `json:"entry"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.log.Debug("Raw telemetry message", zap.String("subject", msg.Subject), zap.ByteString("data", msg.Data))
		return nil
	}

	entry := event.Data.Entry
	fields := []zap.Field{
		zap.String("tourist_id", entry.TouristID),
		zap.Float64("lat", entry.Lat),
		zap.Float64("lon", entry.Lon),
		zap.String("status", string(entry.Status)),
	}
	switch entry.Status {
	case ontology.StatusSOS, ontology.StatusAnomaly:
		w.log.Warn("Distress observation", fields...)
	default:
		w.log.Debug("Observation", fields...)
	}
	return nil
}
