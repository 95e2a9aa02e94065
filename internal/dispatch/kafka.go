package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/store"
)

const headerMessageID = "message_id"

// NewProducerConfig is the sarama configuration for dispatch producers.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	return cfg
}

// NewConsumerConfig is the sarama configuration for the worker's consumer group.
func NewConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Return.Errors = true
	return cfg
}

// Kafka publishes one message per dispatch. The worker command consumes them.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
	counter  counter
}

func NewKafka(brokers []string, topic string, log *zap.Logger) (*Kafka, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, topic, log), nil
}

func NewKafkaWithProducer(producer sarama.SyncProducer, topic string, log *zap.Logger) *Kafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &Kafka{
		producer: producer,
		topic:    topic,
		log:      log.Named("dispatch.kafka"),
		counter:  newCounter("kafka"),
	}
}

// Dispatch keys the message by entry id so redispatches of one entry share a partition.
func (d *Kafka) Dispatch(ctx context.Context, userBookID string) error {
	ctx, span := tracer.Start(ctx, "dispatch.Kafka",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("user_book.id", userBookID),
			attribute.String("messaging.destination", d.topic),
		))
	defer span.End()

	err := d.send(userBookID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.counter.add(ctx, err)
	return err
}

func (d *Kafka) send(userBookID string) error {
	payload, err := EncodeMessage(userBookID)
	if err != nil {
		return err
	}

	messageID := uuid.NewString()
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(userBookID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerMessageID), Value: []byte(messageID)},
		},
	}

	partition, offset, err := d.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish dispatch for %s: %w", userBookID, err)
	}
	d.log.Debug("dispatch published",
		zap.String("user_book_id", userBookID),
		zap.String("message_id", messageID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (d *Kafka) Close() error {
	return d.producer.Close()
}

// ConsumerHandler runs the fetcher for every dispatch message of a claim.
// Undecodable messages and messages for vanished entries are logged and
// marked, so one bad message never blocks the partition.
type ConsumerHandler struct {
	syncer  Syncer
	timeout time.Duration
	log     *zap.Logger
}

func NewConsumerHandler(syncer Syncer, timeout time.Duration, log *zap.Logger) *ConsumerHandler {
	if timeout <= 0 {
		timeout = DefaultImmediateTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsumerHandler{syncer: syncer, timeout: timeout, log: log.Named("consumer")}
}

func (h *ConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *ConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *ConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				h.log.Info("message channel closed")
				return nil
			}
			h.Handle(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// Handle processes a single message. Errors are logged, never returned.
func (h *ConsumerHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) {
	log := h.log.With(
		zap.String("topic", message.Topic),
		zap.Int32("partition", message.Partition),
		zap.Int64("offset", message.Offset))

	msg, err := DecodeMessage(message.Value)
	if err != nil {
		log.Error("dropping undecodable message", zap.Error(err), zap.ByteString("value", message.Value))
		return
	}
	log = log.With(zap.String("user_book_id", msg.UserBookID))

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "dispatch.Kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("user_book.id", msg.UserBookID)))
	defer span.End()

	result, err := h.syncer.Sync(ctx, msg.UserBookID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("entry vanished before fetch")
	case err != nil:
		log.Error("metadata fetch failed", zap.Error(err))
	default:
		log.Info("metadata fetch finished", zap.String("outcome", string(result.Outcome)))
	}
}

// Consume runs the consumer group until ctx is cancelled or the group is closed.
func Consume(ctx context.Context, group sarama.ConsumerGroup, topic string, handler sarama.ConsumerGroupHandler, log *zap.Logger) error {
	for {
		if err := group.Consume(ctx, []string{topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume %s: %w", topic, err)
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Info("consumer group rebalanced, rejoining", zap.String("topic", topic))
	}
}
