package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// KafkaConfig holds the Kafka queue settings.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // 0, 1 or -1 (all)
	MinBytes     int
	MaxBytes     int
	MaxWait      time.Duration

	// PollTimeout bounds how long Dequeue waits for the next message.
	PollTimeout time.Duration
}

// messageWriter and messageReader are the parts of kafka.Writer and
// kafka.Reader the queue uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

// KafkaQueue publishes events to a Kafka topic keyed by table and consumes
// them through a consumer group. Offsets are committed once a batch has
// been decoded.
type KafkaQueue struct {
	writer      messageWriter
	reader      messageReader
	topic       string
	groupID     string
	pollTimeout time.Duration
	logger      *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewKafkaQueue connects a writer and a group reader to cfg.Topic.
func NewKafkaQueue(cfg KafkaConfig, logger *slog.Logger) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "recordstore-changes"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  3,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	q := newKafkaQueue(writer, reader, cfg, logger)
	q.logger.Info("kafka change queue ready", slog.Any("brokers", cfg.Brokers), slog.String("group", cfg.GroupID))
	return q, nil
}

func newKafkaQueue(w messageWriter, r messageReader, cfg KafkaConfig, logger *slog.Logger) *KafkaQueue {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	return &KafkaQueue{
		writer:      w,
		reader:      r,
		topic:       cfg.Topic,
		groupID:     cfg.GroupID,
		pollTimeout: cfg.PollTimeout,
		logger:      logger.With(slog.String("component", "changefeed"), slog.String("queue", TypeKafka), slog.String("topic", cfg.Topic)),
	}
}

func (q *KafkaQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Enqueue writes e synchronously. The table name is the message key so a
// table's events stay ordered within one partition.
func (q *KafkaQueue) Enqueue(ctx context.Context, e *core.ChangeEvent) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	if err := prepare(e); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.Table),
		Value: data,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(e.Operation)},
			{Key: "table", Value: []byte(e.Table)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	q.logger.Debug("produced change event",
		slog.String("table", e.Table),
		slog.String("operation", string(e.Operation)),
		slog.String("key", e.Key),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Dequeue fetches up to batchSize messages, stopping early when none
// arrives within the poll timeout.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	fetched := make([]kafka.Message, 0, batchSize)
	for len(fetched) < batchSize {
		readCtx, cancel := context.WithTimeout(ctx, q.pollTimeout)
		msg, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			q.logger.Error("failed to fetch message", slog.Any("error", err))
			break
		}
		fetched = append(fetched, msg)

		var e core.ChangeEvent
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			q.logger.Error("skipping undecodable message",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err))
			continue
		}
		events = append(events, &e)
	}

	if len(fetched) > 0 {
		if err := q.reader.CommitMessages(ctx, fetched...); err != nil {
			q.logger.Warn("failed to commit offsets", slog.Int("messages", len(fetched)), slog.Any("error", err))
		}
	}
	return events, nil
}

// Size returns the consumer group lag as last reported by the reader, or
// -1 before the reader has reported any.
func (q *KafkaQueue) Size() int {
	if q.isClosed() {
		return 0
	}
	lag := q.reader.Stats().Lag
	if lag < 0 {
		return -1
	}
	return int(lag)
}

// Close closes the writer and the reader.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	werr := q.writer.Close()
	rerr := q.reader.Close()
	if werr != nil {
		return fmt.Errorf("failed to close kafka writer: %w", werr)
	}
	if rerr != nil {
		return fmt.Errorf("failed to close kafka reader: %w", rerr)
	}
	return nil
}
