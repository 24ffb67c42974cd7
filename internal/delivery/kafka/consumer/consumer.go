package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	kafka "github.com/vogiaan1904/rediclaim/internal/delivery/kafka"
	"github.com/vogiaan1904/rediclaim/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

type Consumer struct {
	consGr   sarama.ConsumerGroup
	issueReq *IssueRequestHandler
	recorder *IssuanceRecorder
	prod     producer.Producer
	l        logger.Logger
	wg       sync.WaitGroup
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	issueReq *IssueRequestHandler,
	recorder *IssuanceRecorder,
	prod producer.Producer,
	l logger.Logger,
) *Consumer {
	return &Consumer{
		consGr:   consGr,
		issueReq: issueReq,
		recorder: recorder,
		prod:     prod,
		l:        l,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{kafka.TopicIssueRequests, kafka.TopicCouponIssued}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.Start: %v", ctx.Err())
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
		}
	}()

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.processMessage(ss.Context(), message); err != nil {
				// Halt the claim before any later offset gets marked.
				// Marking a later message would commit past this one
				// and lose it for good; returning makes the group
				// re-consume from the last committed offset.
				c.l.Errorf(ss.Context(), "delivery.kafka.consumer.ConsumeClaim: %v (topic=%s offset=%d)",
					err, message.Topic, message.Offset)
				return err
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case kafka.TopicIssueRequests:
		var req kafka.IssueRequestMessage
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			return c.deadLetter(ctx, msg, err)
		}
		return c.issueReq.Handle(ctx, req)

	case kafka.TopicCouponIssued:
		var event kafka.CouponIssuedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return c.deadLetter(ctx, msg, err)
		}
		return c.recorder.Handle(ctx, event)

	default:
		c.l.Warnf(ctx, "Unknown topic: %s", msg.Topic)
		return nil
	}
}

// deadLetter routes a malformed message straight to the DLQ. Corruption is
// non-retryable: redelivery would fail the same way forever.
func (c *Consumer) deadLetter(ctx context.Context, msg *sarama.ConsumerMessage, cause error) error {
	c.l.Errorf(ctx, "delivery.kafka.consumer.deadLetter: malformed message on %s: %v", msg.Topic, cause)

	return c.prod.PublishDeadLetter(ctx, kafka.DeadLetterMessage{
		ID:            uuid.New().String(),
		OriginalTopic: msg.Topic,
		MessageKey:    string(msg.Key),
		Payload:       json.RawMessage(msg.Value),
		ErrorMessage:  cause.Error(),
		FailedAt:      time.Now(),
	})
}
