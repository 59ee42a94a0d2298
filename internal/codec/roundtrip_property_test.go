package codec_test

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/codec"
)

// Property: DecodeReply(EncodeReply(req, rec)) echoes req exactly, for any rec.
func TestReplyRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("request half survives encode/decode", prop.ForAll(
		func(id uint64, typ, loc string, confirmed bool, extID string, start, end uint32, category string, tags []string) bool {
			req := codec.Request{RequestID: new(big.Int).SetUint64(id), DisasterType: typ, Location: loc}
			rec := codec.EventRecord{
				IsConfirmed: confirmed,
				ExternalID:  extID,
				StartTime:   start,
				EndTime:     end,
				Category:    category,
				Tags:        tags,
			}
			data, err := codec.EncodeReply(codec.NewReply(req, rec))
			if err != nil {
				return false
			}
			got, err := codec.DecodeReply(data)
			if err != nil {
				return false
			}
			if got.RequestID.Cmp(req.RequestID) != 0 || got.DisasterType != typ || got.Location != loc {
				return false
			}
			if len(tags) == 0 {
				return len(got.Record.Tags) == 0 && got.Record.Tags != nil
			}
			return reflect.DeepEqual(got.Record, rec)
		},
		gen.UInt64(),
		gen.AnyString(),
		gen.AnyString(),
		gen.Bool(),
		gen.AlphaString(),
		gen.UInt32(),
		gen.UInt32(),
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestRequestRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("request encode/decode is lossless", prop.ForAll(
		func(id uint64, typ, loc string) bool {
			req := codec.Request{RequestID: new(big.Int).SetUint64(id), DisasterType: typ, Location: loc}
			data, err := codec.EncodeRequest(req)
			if err != nil {
				return false
			}
			got, err := codec.DecodeRequest(data)
			return err == nil && got.RequestID.Cmp(req.RequestID) == 0 && got.DisasterType == typ && got.Location == loc
		},
		gen.UInt64(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
