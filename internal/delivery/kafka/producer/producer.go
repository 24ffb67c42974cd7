package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/rediclaim/internal/delivery/kafka"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

type Producer interface {
	PublishCouponIssued(ctx context.Context, event kafka.CouponIssuedEvent) error
	PublishDeadLetter(ctx context.Context, msg kafka.DeadLetterMessage) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishCouponIssued(ctx context.Context, event kafka.CouponIssuedEvent) error {
	event.Timestamp = time.Now()
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishCouponIssued: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: kafka.TopicCouponIssued,
		Key:   sarama.StringEncoder(event.CouponID), // Partition by coupon_id
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err = p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) PublishDeadLetter(ctx context.Context, msg kafka.DeadLetterMessage) error {
	msg.FailedAt = time.Now()
	val, err := json.Marshal(msg)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishDeadLetter: %v", err)
		return err
	}

	pm := &sarama.ProducerMessage{
		Topic: kafka.TopicCouponIssuedDLQ,
		Key:   sarama.StringEncoder(msg.MessageKey),
		Value: sarama.ByteEncoder(val),
	}

	_, _, err = p.prod.SendMessage(pm)
	return err
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}
