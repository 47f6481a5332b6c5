// Package kafka publishes scored risk results to a Kafka alert topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the AlertWriter needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// AlertWriter produces risk results to the alert topic.
// It implements pipeline.ResultLoader.
type AlertWriter struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAlertTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &AlertWriter{writer: w, metrics: metrics, logger: logger}
}

// LoadBatch publishes one message per result in a single WriteMessages call.
// Every message of the batch carries the same run_id header: the pipeline
// pass's id when ctx has one, otherwise a fresh one.
func (w *AlertWriter) LoadBatch(ctx context.Context, results []domain.RiskResult) error {
	if len(results) == 0 {
		return nil
	}
	runID, ok := observability.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
	}
	scoredAt := domain.Now()

	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(results[i], runID, scoredAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		w.metrics.PublishErrors.Inc()
		return fmt.Errorf("publish alerts: %w", err)
	}
	w.metrics.AlertsPublished.Add(float64(len(msgs)))
	w.logger.Debug("alerts published", "count", len(msgs), "run_id", runID)
	return nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RiskResult into a Kafka message keyed by the
// reading's timestamp so results for one instant land on one partition.
func serializeToMessage(result domain.RiskResult, runID string, scoredAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk result: %w", err)
	}
	var key []byte
	if !result.SensorRecord.Timestamp.IsZero() {
		key = []byte(domain.FormatTimestamp(result.SensorRecord.Timestamp))
	}
	return kafkago.Message{
		Key:   key,
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_level", Value: []byte(result.AlertLevel)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "scored_at", Value: []byte(scoredAt.Format(time.RFC3339))},
		},
	}, nil
}
