package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/config"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/feature"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/message"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/metrics"
)

var (
	// ErrQueueFull is returned when the message queue has no free slot.
	ErrQueueFull = errors.New("message queue full")
	// ErrTimeout is returned when ProcessSync gives up waiting for a result.
	// The message keeps running; see Engine for where its reply ends up.
	ErrTimeout = errors.New("message processing timeout")
	// ErrNotTracked is returned by Processed for features that keep no
	// transaction history.
	ErrNotTracked = errors.New("feature does not track transactions")
)

// maxLateReplies bounds the replies held for callers that timed out.
const maxLateReplies = 1024

// Result is the outcome of handling a single message.
type Result struct {
	TransactionID string           `json:"tx_id"`
	FeatureID     uint32           `json:"feature_id"`
	Outcome       feature.Outcome  `json:"outcome"`
	Message       *message.Message `json:"message"`
	DurationMs    int64            `json:"duration_ms"`
}

// Sink receives replies produced by asynchronously processed messages.
type Sink interface {
	Publish(ctx context.Context, msg *message.Message) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink routes replies from ProcessAsync to s.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// Engine dispatches messages to registered features on a bounded worker pool.
//
// A reply finished after its ProcessSync caller gave up is not lost: it is
// sent to the Sink when one is configured, and otherwise held until the
// same transaction is submitted again, which then receives it in place of
// the duplicate outcome.
type Engine struct {
	registry *feature.Registry
	pool     *workerPool[*work]
	conf     *config.EngineConf
	sink     Sink
	log      *slog.Logger

	lateMu sync.Mutex
	late   map[string]*Result
}

type work struct {
	msg       *message.Message
	resultC   chan *Result  // nil for async work
	abandoned chan struct{} // closed when the sync caller stops waiting
}

// New creates an Engine using conf and starts the worker pool.
func New(ctx context.Context, reg *feature.Registry, conf config.EngineConf, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		conf:     &conf,
		log:      slog.With("component", "engine"),
		late:     make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.pool = newWorkerPool[*work](
		ctx,
		conf.Workers,
		conf.QueueDepth,
		func(ctx context.Context, w *work) {
			res := e.Handle(ctx, w.msg)
			if w.resultC == nil {
				e.publish(ctx, res)
				return
			}
			select {
			case w.resultC <- res:
			case <-w.abandoned:
				e.deliverLate(ctx, res)
			}
		},
	)
	return e
}

// ProcessSync processes a message on the pool and waits for the result.
func (e *Engine) ProcessSync(ctx context.Context, msg *message.Message) (*Result, error) {
	w := &work{msg: msg, resultC: make(chan *Result), abandoned: make(chan struct{})}

	if !e.pool.Submit(w) {
		metrics.MessagesDropped.Inc()
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.conf.QueueDepth)
	}
	metrics.MessagesEnqueued.Inc()
	defer close(w.abandoned)

	timeout := time.Duration(e.conf.MessageTimeoutMs) * time.Millisecond
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.resultC:
		return res, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync enqueues a message for background processing. Replies go to
// the configured Sink; callers should check HasSink first. Returns false if
// the queue is full.
func (e *Engine) ProcessAsync(msg *message.Message) bool {
	if !e.pool.Submit(&work{msg: msg}) {
		metrics.MessagesDropped.Inc()
		return false
	}
	metrics.MessagesEnqueued.Inc()
	return true
}

// Handle runs one message through dispatch, admission and the feature on
// the calling goroutine.
func (e *Engine) Handle(ctx context.Context, msg *message.Message) *Result {
	start := time.Now()
	res := &Result{
		TransactionID: msg.TransactionID,
		FeatureID:     msg.FeatureID,
		Message:       msg,
	}
	name := "none"

	f, err := e.registry.Get(msg.FeatureID)
	switch {
	case err != nil:
		e.log.Warn("dropping unroutable message", "tx_id", msg.TransactionID, "err", err)
		res.Outcome = feature.OutcomeUnrouted
	case !f.IsMessageValid(ctx, msg):
		name = f.Name()
		res.Outcome = feature.OutcomeRejected
	default:
		name = f.Name()
		res.Message, res.Outcome = f.Process(ctx, msg)
		if res.Outcome == feature.OutcomeDuplicate {
			if late, ok := e.claimLate(msg.FeatureID, msg.TransactionID); ok {
				e.log.Info("returning reply held after caller timeout", "tx_id", msg.TransactionID)
				res.Message, res.Outcome = late.Message, late.Outcome
			}
		}
	}

	res.DurationMs = time.Since(start).Milliseconds()
	metrics.MessagesHandled.WithLabelValues(name, string(res.Outcome)).Inc()
	metrics.MessageProcessingDuration.Observe(float64(res.DurationMs))

	attrs := []any{"tx_id", msg.TransactionID, "feature", name, "outcome", res.Outcome, "duration_ms", res.DurationMs}
	if !msg.ReceivedAt.IsZero() {
		attrs = append(attrs, "age_ms", time.Since(msg.ReceivedAt).Milliseconds())
	}
	e.log.Debug("message handled", attrs...)
	return res
}

// deliverLate hands off a result whose sync caller is gone.
func (e *Engine) deliverLate(ctx context.Context, res *Result) {
	if !res.Message.HasReply() {
		return
	}
	if e.sink != nil {
		e.publish(ctx, res)
		return
	}

	e.lateMu.Lock()
	defer e.lateMu.Unlock()
	if len(e.late) >= maxLateReplies {
		e.log.Error("dropping late reply, hold limit reached", "tx_id", res.TransactionID, "limit", maxLateReplies)
		metrics.RepliesPublished.WithLabelValues("dropped").Inc()
		return
	}
	e.late[lateKey(res.FeatureID, res.TransactionID)] = res
	metrics.RepliesPublished.WithLabelValues("held").Inc()
	e.log.Warn("holding reply for caller that timed out", "tx_id", res.TransactionID)
}

func (e *Engine) claimLate(featureID uint32, txID string) (*Result, bool) {
	e.lateMu.Lock()
	defer e.lateMu.Unlock()
	key := lateKey(featureID, txID)
	res, ok := e.late[key]
	if ok {
		delete(e.late, key)
	}
	return res, ok
}

func lateKey(featureID uint32, txID string) string {
	return fmt.Sprintf("%d/%s", featureID, txID)
}

func (e *Engine) publish(ctx context.Context, res *Result) {
	if !res.Message.HasReply() {
		return
	}
	if e.sink == nil {
		e.log.Info("reply produced with no sink configured", "tx_id", res.TransactionID)
		metrics.RepliesPublished.WithLabelValues("no_sink").Inc()
		return
	}
	if err := e.sink.Publish(ctx, res.Message); err != nil {
		e.log.Error("publish reply", "tx_id", res.TransactionID, "err", err)
		metrics.RepliesPublished.WithLabelValues("error").Inc()
		return
	}
	metrics.RepliesPublished.WithLabelValues("ok").Inc()
}

// HasSink reports whether asynchronously produced replies have somewhere to go.
func (e *Engine) HasSink() bool {
	return e.sink != nil
}

// Processed reports whether the feature registered under featureID has
// already handled txID.
func (e *Engine) Processed(featureID uint32, txID string) (bool, error) {
	f, err := e.registry.Get(featureID)
	if err != nil {
		return false, err
	}
	t, ok := f.(feature.Tracker)
	if !ok {
		return false, fmt.Errorf("feature %d: %w", featureID, ErrNotTracked)
	}
	return t.Processed(txID), nil
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// Features lists registered features.
func (e *Engine) Features() []feature.Info {
	return e.registry.List()
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}
