package feature

import (
	"context"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/message"
)

// Outcome classifies how a message left the pipeline.
type Outcome string

const (
	OutcomeReplied      Outcome = "replied"
	OutcomeRejected     Outcome = "rejected"      // sender failed validation
	OutcomeDuplicate    Outcome = "duplicate"     // transaction already processed
	OutcomeDecodeFailed Outcome = "decode_failed" // payload did not match schema
	OutcomeUnrouted     Outcome = "unrouted"      // no feature registered for the id
)

// Feature is the capability a host invokes for messages addressed to it.
type Feature interface {
	// ID is the route tag the host dispatches on and stamps on replies.
	ID() uint32
	Name() string
	Description() string
	// IsMessageValid is the admission check. A false result means the host
	// drops the message without calling Process.
	IsMessageValid(ctx context.Context, msg *message.Message) bool
	// Process returns either msg unchanged (no reply) or a copy carrying a
	// reply. It never returns an error; failures are reported via Outcome.
	Process(ctx context.Context, msg *message.Message) (*message.Message, Outcome)
}

// Tracker is implemented by features that remember which transactions they
// have already handled.
type Tracker interface {
	Processed(txID string) bool
}
