package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/rediclaim/internal/delivery/kafka"
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// kafkaDispatcher publishes one message per admitted requester, keyed by event
// id. Same-event messages land on one partition, so a single downstream
// consumer observes them in admission order.
type kafkaDispatcher struct {
	prod sarama.SyncProducer
	l    logger.Logger
}

func NewKafkaDispatcher(prod sarama.SyncProducer, l logger.Logger) Dispatcher {
	return &kafkaDispatcher{
		prod: prod,
		l:    l,
	}
}

func (d *kafkaDispatcher) DispatchBatch(ctx context.Context, eventID string, entries []models.DispatchEntry) error {
	for _, entry := range entries {
		msg := kafka.IssueRequestMessage{
			EventID:   eventID,
			UserID:    entry.UserID,
			Ticket:    entry.Ticket,
			Timestamp: time.Now(),
		}

		val, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal issue request: %w", err)
		}

		if _, _, err := d.prod.SendMessage(&sarama.ProducerMessage{
			Topic: kafka.TopicIssueRequests,
			Key:   sarama.StringEncoder(eventID),
			Value: sarama.ByteEncoder(val),
		}); err != nil {
			d.l.Errorf(ctx, "dispatcher.kafka_dispatcher.DispatchBatch: %v", err)
			return fmt.Errorf("failed to dispatch issue request: %w", err)
		}

		d.l.Debugf(ctx, "Dispatched issue request: eventID=%s userID=%s ticket=%d", eventID, entry.UserID, entry.Ticket)
	}

	return nil
}
