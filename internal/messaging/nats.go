package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/candle-sync/pkg/config"
	"github.com/candle-sync/pkg/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSClient publishes sync run events over JetStream
type NATSClient struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
	cfg    *config.NATSConfig
}

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	nc := &NATSClient{
		conn:   conn,
		js:     js,
		logger: logger.WithField("component", "nats"),
		cfg:    cfg,
	}

	if err := nc.initializeStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	return nc, nil
}

// Close closes the NATS connection
func (nc *NATSClient) Close() error {
	nc.conn.Close()
	return nil
}

// Drain drains the connection (graceful shutdown)
func (nc *NATSClient) Drain() error {
	return nc.conn.Drain()
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// initializeStreams creates the JetStream stream for sync events
func (nc *NATSClient) initializeStreams() error {
	_, err := nc.js.AddStream(&nats.StreamConfig{
		Name:     "SYNC",
		Subjects: []string{"sync.>"},
		Storage:  nats.MemoryStorage,
		MaxAge:   1 * time.Hour,
		MaxMsgs:  10000,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create SYNC stream: %w", err)
	}

	return nil
}

// PublishRunStarted publishes the start of a sync run
func (nc *NATSClient) PublishRunStarted(runID string, total, resumedFrom int) error {
	data, err := json.Marshal(map[string]interface{}{
		"run_id":       runID,
		"total":        total,
		"resumed_from": resumedFrom,
		"timestamp":    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run started: %w", err)
	}

	_, err = nc.js.Publish("sync.run.started", data)
	if err != nil {
		return fmt.Errorf("failed to publish run started: %w", err)
	}
	return nil
}

// PublishItemOutcome publishes the outcome of one processed instrument
func (nc *NATSClient) PublishItemOutcome(runID string, outcome *models.Outcome, position, total int) error {
	subject := fmt.Sprintf("sync.progress.%s", outcome.Symbol)
	data, err := json.Marshal(map[string]interface{}{
		"run_id":    runID,
		"symbol":    outcome.Symbol,
		"status":    outcome.Status,
		"records":   outcome.Records,
		"reason":    outcome.Reason,
		"position":  position,
		"total":     total,
		"timestamp": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item outcome: %w", err)
	}

	_, err = nc.js.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish item outcome: %w", err)
	}
	return nil
}

// PublishRunComplete publishes the terminal summary of a sync run
func (nc *NATSClient) PublishRunComplete(summary *models.RunSummary) error {
	data, err := json.Marshal(map[string]interface{}{
		"run_id":      summary.RunID,
		"total":       summary.Total,
		"succeeded":   summary.Succeeded,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
		"records":     summary.Records,
		"started_at":  summary.StartedAt,
		"finished_at": summary.FinishedAt,
		"timestamp":   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run complete: %w", err)
	}

	_, err = nc.js.Publish("sync.run.complete", data)
	if err != nil {
		return fmt.Errorf("failed to publish run complete: %w", err)
	}
	return nil
}

// PublishSyncError publishes a per-instrument sync error
func (nc *NATSClient) PublishSyncError(runID, symbol, errorMsg string) error {
	subject := fmt.Sprintf("sync.error.%s", symbol)
	data, err := json.Marshal(map[string]interface{}{
		"run_id":    runID,
		"symbol":    symbol,
		"error":     errorMsg,
		"timestamp": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sync error: %w", err)
	}

	_, err = nc.js.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish sync error: %w", err)
	}
	return nil
}
