// internal/ingest/consumer.go
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	kafkago "github.com/segmentio/kafka-go"

	"safety-pipeline/internal/common/config"
	stderrors "safety-pipeline/internal/common/errors"
	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/models"
	"safety-pipeline/internal/pipeline"
)

// MessageSource matches the kafka-go reader surface the consumer needs.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Processor runs one event through the notification pipeline.
type Processor interface {
	Process(ctx context.Context, event *models.NotificationEvent) (*pipeline.Result, error)
}

// NewReader builds the kafka-go reader for the notification-events topic.
func NewReader(cfg *config.KafkaConfig) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafkago.LastOffset,
	})
}

// Consumer pulls NotificationEvents off the topic and feeds the pipeline.
// Every message commits exactly once: failures degrade to fewer
// notifications, never to a stuck partition.
type Consumer struct {
	source    MessageSource
	processor Processor
	logger    logger.Logger
}

func NewConsumer(source MessageSource, processor Processor, log logger.Logger) *Consumer {
	return &Consumer{
		source:    source,
		processor: processor,
		logger:    log.WithFields(map[string]interface{}{"component": "ingest"}),
	}
}

// Run consumes until the context is cancelled or the source closes.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		c.handle(ctx, msg)

		if err := c.source.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("commit failed", map[string]interface{}{
				"offset": msg.Offset,
				"error":  err.Error(),
			})
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	var event models.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Debug("dropping malformed event", map[string]interface{}{
			"offset": msg.Offset,
			"error":  err.Error(),
		})
		return
	}

	if _, err := c.processor.Process(ctx, &event); err != nil {
		var stdErr *stderrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == stderrors.ErrCodeMalformedInput {
			c.logger.Debug("dropping invalid event", map[string]interface{}{
				"offset": msg.Offset,
				"error":  err.Error(),
			})
			return
		}
		// Transient downstream failure. Retry, if any, belongs to the
		// transport layer, so the message still commits.
		c.logger.Error("event processing failed", map[string]interface{}{
			"eventType": event.EventType,
			"relatedId": event.RelatedID,
			"error":     err.Error(),
		})
	}
}

func (c *Consumer) Close() error {
	return c.source.Close()
}
