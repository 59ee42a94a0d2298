package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/engine"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/feature"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/message"
)

const (
	testTimeout = 2 * time.Second
	tick        = 10 * time.Millisecond
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

// fakeReader serves queued records then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	records   []kafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.records) > 0 {
		m := f.records[0]
		f.records = f.records[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

// echoProcessor replies to every message, after rejecting the first
// fullTimes calls with ErrQueueFull.
type echoProcessor struct {
	mu        sync.Mutex
	fullTimes int
	calls     int
	seen      []string
}

func (p *echoProcessor) ProcessSync(_ context.Context, msg *message.Message) (*engine.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.fullTimes {
		return nil, engine.ErrQueueFull
	}
	p.seen = append(p.seen, msg.TransactionID)
	if msg.TransactionID == "dup" {
		return &engine.Result{TransactionID: msg.TransactionID, Outcome: feature.OutcomeDuplicate, Message: msg}, nil
	}
	return &engine.Result{
		TransactionID: msg.TransactionID,
		Outcome:       feature.OutcomeReplied,
		Message:       msg.WithReply(msg.FeatureID, []byte{0xde, 0xad}),
	}, nil
}

func record(t *testing.T, offset int64, key string, msg message.Message) kafka.Message {
	t.Helper()
	value, err := json.Marshal(msg)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(key), Value: value}
}

func TestReplyWriter_Publish(t *testing.T) {
	fw := &fakeWriter{}
	rw := &ReplyWriter{w: fw}

	msg := (&message.Message{TransactionID: "0xabc", FeatureID: 1}).WithReply(1, []byte{1, 2})
	require.NoError(t, rw.Publish(context.Background(), msg))

	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "0xabc", string(fw.msgs[0].Key))
	require.Len(t, fw.msgs[0].Headers, 1)
	assert.Equal(t, routeTagHeader, fw.msgs[0].Headers[0].Key)
	assert.Equal(t, "1", string(fw.msgs[0].Headers[0].Value))

	var got message.Message
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &got))
	assert.Equal(t, []byte{1, 2}, []byte(got.Reply))

	require.NoError(t, rw.Close())
	assert.True(t, fw.closed)
}

func TestReplyWriter_Errors(t *testing.T) {
	rw := &ReplyWriter{w: &fakeWriter{}}
	assert.Error(t, rw.Publish(context.Background(), &message.Message{TransactionID: "x"}))

	broken := errors.New("broker down")
	rw = &ReplyWriter{w: &fakeWriter{err: broken}}
	msg := (&message.Message{TransactionID: "x"}).WithReply(1, []byte{1})
	assert.ErrorIs(t, rw.Publish(context.Background(), msg), broken)
}

func TestConsumer_Run(t *testing.T) {
	fr := &fakeReader{records: []kafka.Message{
		record(t, 1, "", message.Message{TransactionID: "0x1", FeatureID: 1}),
		{Offset: 2, Value: []byte("not json")},
		record(t, 3, "0xkeyed", message.Message{FeatureID: 1}),
		record(t, 4, "", message.Message{TransactionID: "dup", FeatureID: 1}),
	}}
	fw := &fakeWriter{}
	proc := &echoProcessor{fullTimes: 2}
	c := newConsumer(fr, proc, &ReplyWriter{w: fw})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(fr.commits()) == 4 }, testTimeout, tick)
	cancel()
	require.NoError(t, <-done)

	// Every record is committed, including the undecodable one.
	assert.Equal(t, []int64{1, 2, 3, 4}, fr.commits())
	// Queue-full is retried; the key stands in for a missing tx_id.
	assert.Equal(t, []string{"0x1", "0xkeyed", "dup"}, proc.seen)

	// Only replied messages reach the reply topic.
	fw.mu.Lock()
	defer fw.mu.Unlock()
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, "0x1", string(fw.msgs[0].Key))
	assert.Equal(t, "0xkeyed", string(fw.msgs[1].Key))
}
