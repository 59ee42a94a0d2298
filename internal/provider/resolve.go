package provider

import (
	"fmt"
	"math"
	"time"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/codec"
)

// Event is one candidate record as returned by PredictHQ. Start and End are
// kept as sent (RFC3339) and only parsed for the event that is used.
type Event struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Category string   `json:"category"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Tags     []string `json:"tags"`
}

// span returns Start and End as clamped unix seconds. A missing value is 0.
func (e Event) span() (start, end uint32, err error) {
	if start, err = parseTimestamp(e.Start); err != nil {
		return 0, 0, fmt.Errorf("event %s start: %w", e.ID, err)
	}
	if end, err = parseTimestamp(e.End); err != nil {
		return 0, 0, fmt.Errorf("event %s end: %w", e.ID, err)
	}
	return start, end, nil
}

func parseTimestamp(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return unixSeconds(t), nil
}

// eventsResponse is the /v1/events envelope.
type eventsResponse struct {
	Count   int     `json:"count"`
	Results []Event `json:"results"`
}

// Outcome is what a single provider query produced: either an error or a
// (possibly empty) ordered result list.
type Outcome struct {
	Events []Event
	Err    error
}

// Result labels, also used as metric label values.
const (
	ResultConfirmed = "confirmed"
	ResultEmpty     = "empty"
	ResultError     = "error"
)

// Label classifies the outcome into one of the three Result* labels. A first
// event with unreadable timestamps counts as an error; later events are
// never inspected.
func (o Outcome) Label() string {
	switch {
	case o.Err != nil:
		return ResultError
	case len(o.Events) == 0:
		return ResultEmpty
	}
	if _, _, err := o.Events[0].span(); err != nil {
		return ResultError
	}
	return ResultConfirmed
}

// Resolve maps any outcome to a fully populated record. It is total: a
// failed or empty query yields the unconfirmed default, otherwise the first
// event in provider order is authoritative.
func Resolve(o Outcome) codec.EventRecord {
	switch o.Label() {
	case ResultError, ResultEmpty:
		return codec.UnconfirmedRecord()
	}

	first := o.Events[0]
	start, end, _ := first.span()
	return codec.EventRecord{
		IsConfirmed: true,
		ExternalID:  first.ID,
		StartTime:   start,
		EndTime:     end,
		Category:    first.Category,
		Tags:        append([]string{}, first.Tags...),
	}
}

// unixSeconds clamps t into the uint32 range the contract stores.
func unixSeconds(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	s := t.Unix()
	switch {
	case s < 0:
		return 0
	case s > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(s)
}
