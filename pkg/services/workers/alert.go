package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// AlertArchiver persists alerts delivered on the alert stream.
type AlertArchiver interface {
	Archive(alert ontology.SafetyAlert) error
}

type AlertWorker struct {
	*BaseWorker
	archive AlertArchiver
}

func NewAlertWorker(nc *nats.Conn, js nats.JetStreamContext, archive AlertArchiver) *AlertWorker {
	return &AlertWorker{
		BaseWorker: NewBaseWorker(
			"AlertWorker",
			nc,
			js,
			shared.StreamAlerts,
			shared.ConsumerAlertArchiver,
			shared.SubjectAlertsAll,
		),
		archive: archive,
	}
}

func (w *AlertWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, w.handle)
}

func (w *AlertWorker) handle(msg *nats.Msg) error {
	var event struct {
		Data struct {
			Alert ontology.SafetyAlert `json:"alert"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Malformed payloads are dropped; redelivery cannot fix them.
		w.log.Error("Discarding undecodable alert", zap.String("subject", msg.Subject), zap.Error(err))
		return nil
	}

	alert := event.Data.Alert
	if alert.AlertID == "" {
		w.log.Error("Discarding alert without id", zap.String("subject", msg.Subject))
		return nil
	}

	if err := w.archive.Archive(alert); err != nil {
		return fmt.Errorf("archive alert: %w", err)
	}

	w.log.Info("Alert archived",
		zap.String("alert_id", alert.AlertID),
		zap.String("type", string(alert.Type)),
		zap.String("tourist_id", alert.TouristID),
		zap.String("user", alert.AssociatedUser),
	)
	return nil
}
