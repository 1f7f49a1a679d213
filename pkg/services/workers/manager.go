package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tourist-overwatch/pkg/logger"
	embeddednats "tourist-overwatch/pkg/services/embedded-nats"

	"go.uber.org/zap"
)

type Manager struct {
	workers []Worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewManager(natsClient *embeddednats.EmbeddedNATS, archive AlertArchiver) (*Manager, error) {
	nc := natsClient.Connection()
	if nc == nil {
		return nil, fmt.Errorf("NATS connection not initialized")
	}

	js := natsClient.JetStream()
	if js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	if archive == nil {
		return nil, fmt.Errorf("alert archive is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		workers: []Worker{
			NewAlertWorker(nc, js, archive),
			NewTelemetryWorker(nc, js),
			NewEventWorker(nc, js),
		},
	}, nil
}

func (m *Manager) Start() error {
	logger.Info("Starting NATS workers")

	for _, worker := range m.workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()

			if err := w.Start(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Worker error", zap.String("worker", w.Name()), zap.Error(err))
			}
			logger.Info("Worker stopped", zap.String("worker", w.Name()))
		}(worker)
	}

	logger.Info("Started workers", zap.Int("count", len(m.workers)))
	return nil
}

// Stop cancels the workers and waits for them. The NATS connection belongs
// to the embedded server and is closed by its Shutdown.
func (m *Manager) Stop() error {
	logger.Info("Stopping NATS workers")

	m.cancel()

	for _, worker := range m.workers {
		if err := worker.Stop(); err != nil {
			logger.Warn("Error stopping worker", zap.String("worker", worker.Name()), zap.Error(err))
		}
	}

	m.wg.Wait()

	logger.Info("All workers stopped")
	return nil
}
