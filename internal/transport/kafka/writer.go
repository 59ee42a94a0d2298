// Package kafka bridges Kafka topics to the engine: requests are consumed
// from one topic and replies are produced to another.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/config"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/message"
)

const routeTagHeader = "route_tag"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReplyWriter publishes replies to the reply topic. It implements engine.Sink.
type ReplyWriter struct {
	w messageWriter
}

// NewReplyWriter creates a synchronous writer for cfg.ReplyTopic.
func NewReplyWriter(cfg config.KafkaConf) *ReplyWriter {
	return &ReplyWriter{w: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.ReplyTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}}
}

// Publish writes msg keyed by transaction id.
func (r *ReplyWriter) Publish(ctx context.Context, msg *message.Message) error {
	if !msg.HasReply() {
		return fmt.Errorf("message %s carries no reply", msg.TransactionID)
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reply %s: %w", msg.TransactionID, err)
	}
	km := kafka.Message{Key: []byte(msg.TransactionID), Value: value}
	if msg.RouteTag != nil {
		km.Headers = []kafka.Header{
			{Key: routeTagHeader, Value: []byte(strconv.FormatUint(uint64(*msg.RouteTag), 10))},
		}
	}
	if err := r.w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("write reply %s: %w", msg.TransactionID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (r *ReplyWriter) Close() error {
	return r.w.Close()
}
