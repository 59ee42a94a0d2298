package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/config"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/engine"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/message"
)

const queueFullBackoff = 50 * time.Millisecond

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Processor is the part of the engine the consumer needs.
type Processor interface {
	ProcessSync(ctx context.Context, msg *message.Message) (*engine.Result, error)
}

// Consumer reads inbound messages, processes each one and publishes any reply.
type Consumer struct {
	r    messageReader
	proc Processor
	out  engine.Sink
	log  *slog.Logger
}

// NewConsumer creates a consumer-group reader for cfg.InboundTopic.
func NewConsumer(cfg config.KafkaConf, proc Processor, out engine.Sink) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.InboundTopic,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0, // commit synchronously after each message
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	return newConsumer(r, proc, out)
}

func newConsumer(r messageReader, proc Processor, out engine.Sink) *Consumer {
	return &Consumer{r: r, proc: proc, out: out, log: slog.With("component", "kafka-consumer")}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		km, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, km)
		if err := c.r.CommitMessages(ctx, km); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle never fails: a bad record is logged and skipped so it cannot
// block the partition.
func (c *Consumer) handle(ctx context.Context, km kafka.Message) {
	var msg message.Message
	if err := json.Unmarshal(km.Value, &msg); err != nil {
		c.log.Error("skipping undecodable record", "offset", km.Offset, "partition", km.Partition, "err", err)
		return
	}
	if msg.TransactionID == "" {
		msg.TransactionID = string(km.Key)
	}
	msg.ReceivedAt = time.Now()

	res, err := c.process(ctx, &msg)
	if err != nil {
		c.log.Error("processing failed", "tx_id", msg.TransactionID, "err", err)
		return
	}
	if !res.Message.HasReply() {
		c.log.Info("no reply", "tx_id", msg.TransactionID, "outcome", res.Outcome)
		return
	}
	if err := c.out.Publish(ctx, res.Message); err != nil {
		c.log.Error("publish reply", "tx_id", msg.TransactionID, "err", err)
	}
}

func (c *Consumer) process(ctx context.Context, msg *message.Message) (*engine.Result, error) {
	for {
		res, err := c.proc.ProcessSync(ctx, msg)
		if !errors.Is(err, engine.ErrQueueFull) {
			return res, err
		}
		select {
		case <-time.After(queueFullBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.r.Close()
}
