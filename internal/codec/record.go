package codec

import "math/big"

// Request is the decoded inbound disaster report.
type Request struct {
	RequestID    *big.Int `json:"request_id"`
	DisasterType string   `json:"disaster_type"`
	Location     string   `json:"location"`
}

// EventRecord is the best-effort answer from the external record source.
// A record is always fully populated: "no data" is IsConfirmed=false with
// zero values and an empty, non-nil Tags slice.
type EventRecord struct {
	IsConfirmed bool     `json:"is_confirmed"`
	ExternalID  string   `json:"external_id"`
	StartTime   uint32   `json:"start_time"`
	EndTime     uint32   `json:"end_time"` // 0 = unknown
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// UnconfirmedRecord returns the default record used whenever no
// authoritative data exists.
func UnconfirmedRecord() EventRecord {
	return EventRecord{Tags: []string{}}
}

// Reply is the outbound payload: the request echoed back plus the record.
type Reply struct {
	Request
	Record EventRecord `json:"record"`
}

// NewReply pairs a decoded request with a record, normalizing nil tags.
func NewReply(req Request, rec EventRecord) Reply {
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return Reply{Request: req, Record: rec}
}
