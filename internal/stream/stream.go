// Package stream fans alert-log entries and telemetry samples out to Kafka.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"habitat/internal/config"
	"habitat/internal/metrics"
	"habitat/internal/model"
)

type Publisher interface {
	PublishSample(ctx context.Context, s model.Sample) error
	PublishAlerts(ctx context.Context, entries []model.AlertLogEntry) error
	Close() error
}

// New returns a Kafka publisher, or a no-op publisher when streaming is
// disabled.
func New(cfg config.StreamConfig, logger *slog.Logger, collectors *metrics.Collectors) Publisher {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("stream publisher disabled")
		}
		return Noop{}
	}
	if logger != nil {
		logger.Info("stream publisher enabled", "brokers", cfg.Brokers, "alert_topic", cfg.AlertTopic, "telemetry_topic", cfg.TelemetryTopic)
	}
	return newKafka(newWriter(cfg.Brokers, cfg.AlertTopic), newWriter(cfg.Brokers, cfg.TelemetryTopic), logger, collectors)
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

type Noop struct{}

func (Noop) PublishSample(context.Context, model.Sample) error          { return nil }
func (Noop) PublishAlerts(context.Context, []model.AlertLogEntry) error { return nil }
func (Noop) Close() error                                               { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Kafka struct {
	alerts    messageWriter
	telemetry messageWriter
	logger    *slog.Logger
	metrics   *metrics.Collectors
}

func newKafka(alerts, telemetry messageWriter, logger *slog.Logger, collectors *metrics.Collectors) *Kafka {
	return &Kafka{alerts: alerts, telemetry: telemetry, logger: logger, metrics: collectors}
}

func (k *Kafka) PublishSample(ctx context.Context, s model.Sample) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	msg := kafka.Message{Key: []byte("habitat"), Value: value}
	return k.write(ctx, k.telemetry, msg)
}

// PublishAlerts writes one message per entry, keyed by channel so a
// channel's alerts stay ordered within a partition.
func (k *Kafka) PublishAlerts(ctx context.Context, entries []model.AlertLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.Channel),
			Value:   value,
			Time:    e.Timestamp,
			Headers: []kafka.Header{{Key: "severity", Value: []byte(e.Severity)}},
		})
	}
	return k.write(ctx, k.alerts, msgs...)
}

func (k *Kafka) write(ctx context.Context, w messageWriter, msgs ...kafka.Message) error {
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		k.metrics.StreamFailed()
		if k.logger != nil && ctx.Err() == nil {
			k.logger.Warn("stream publish failed", "messages", len(msgs), "err", err)
		}
		return err
	}
	return nil
}

func (k *Kafka) Close() error {
	return errors.Join(k.alerts.Close(), k.telemetry.Close())
}
