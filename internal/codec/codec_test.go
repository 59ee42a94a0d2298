package codec_test

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/codec"
)

func TestReplySchemaV1_IsFrozen(t *testing.T) {
	// The EmergencyFund contract decodes exactly this tuple.
	assert.Equal(t, "(uint256,string,string,bool,string,uint32,uint32,string,string[])", codec.ReplySchemaV1.Signature())
	assert.Equal(t, 1, codec.ReplySchemaV1.Version)

	names := make([]string, 0, len(codec.ReplySchemaV1.Fields))
	for _, f := range codec.ReplySchemaV1.Fields {
		names = append(names, f.Name)
	}
	want := []string{"requestId", "disasterType", "location", "isConfirmed", "externalId", "startTime", "endTime", "category", "tags"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("reply field order changed (-want +got):\n%s", diff)
	}
	assert.Equal(t, codec.ReplySchemaV1.Signature(), codec.ReplySchema.Signature())
}

func TestRequestSchema_Signature(t *testing.T) {
	assert.Equal(t, "(uint256,string,string)", codec.RequestSchema.Signature())
}

func TestRequest_RoundTrip(t *testing.T) {
	req := codec.Request{RequestID: big.NewInt(42), DisasterType: "Hurricane", Location: "Miami, FL"}
	data, err := codec.EncodeRequest(req)
	require.NoError(t, err)

	got, err := codec.DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RequestID.Cmp(req.RequestID))
	assert.Equal(t, req.DisasterType, got.DisasterType)
	assert.Equal(t, req.Location, got.Location)
}

func TestReply_RoundTrip(t *testing.T) {
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)

	cases := []struct {
		name  string
		reply codec.Reply
	}{
		{
			name: "confirmed",
			reply: codec.NewReply(
				codec.Request{RequestID: big.NewInt(42), DisasterType: "Hurricane", Location: "Miami, FL"},
				codec.EventRecord{IsConfirmed: true, ExternalID: "phq_1", StartTime: 1700000000, EndTime: 1700086400, Category: "storm", Tags: []string{"severe"}},
			),
		},
		{
			name: "unconfirmed defaults",
			reply: codec.NewReply(
				codec.Request{RequestID: big.NewInt(7), DisasterType: "Flood", Location: "Dhaka"},
				codec.UnconfirmedRecord(),
			),
		},
		{
			name: "max request id and unicode",
			reply: codec.NewReply(
				codec.Request{RequestID: huge, DisasterType: "Séisme", Location: "東京"},
				codec.EventRecord{IsConfirmed: true, ExternalID: "x", Tags: []string{"a", "", "c"}},
			),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := codec.EncodeReply(tc.reply)
			require.NoError(t, err)

			got, err := codec.DecodeReply(data)
			require.NoError(t, err)
			assert.Equal(t, 0, got.RequestID.Cmp(tc.reply.RequestID))
			assert.Equal(t, tc.reply.DisasterType, got.DisasterType)
			assert.Equal(t, tc.reply.Location, got.Location)
			if diff := cmp.Diff(tc.reply.Record, got.Record); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeReply_NilTagsEncodeAsEmpty(t *testing.T) {
	r := codec.Reply{Request: codec.Request{RequestID: big.NewInt(1)}}
	data, err := codec.EncodeReply(r)
	require.NoError(t, err)

	got, err := codec.DecodeReply(data)
	require.NoError(t, err)
	assert.NotNil(t, got.Record.Tags)
	assert.Empty(t, got.Record.Tags)
}

func TestEncode_RejectsOutOfRangeRequestID(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	for name, id := range map[string]*big.Int{"nil": nil, "negative": big.NewInt(-1), "overflow": tooBig} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.EncodeReply(codec.Reply{Request: codec.Request{RequestID: id}})
			assert.ErrorIs(t, err, codec.ErrEncode)
			_, err = codec.EncodeRequest(codec.Request{RequestID: id})
			assert.ErrorIs(t, err, codec.ErrEncode)
		})
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	valid, err := codec.EncodeRequest(codec.Request{RequestID: big.NewInt(42), DisasterType: "Hurricane", Location: "Miami, FL"})
	require.NoError(t, err)

	badOffset := append([]byte(nil), valid...)
	// Head word 1 is the offset of disasterType; point it far past the end.
	badOffset[32+31] = 0xff
	badOffset[32+30] = 0xff

	cases := map[string][]byte{
		"nil":            nil,
		"empty":          {},
		"short head":     valid[:40],
		"truncated tail": valid[:len(valid)-40],
		"short padding":  valid[:len(valid)-1],
		"missing word":   valid[:len(valid)-32],
		"bad offset":     badOffset,
		"garbage":        []byte("not an abi payload"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.DecodeRequest(data)
			assert.ErrorIs(t, err, codec.ErrDecode)
		})
	}
}

func TestDecodeReply_Truncated(t *testing.T) {
	data, err := codec.EncodeReply(codec.NewReply(codec.Request{RequestID: big.NewInt(1)}, codec.UnconfirmedRecord()))
	require.NoError(t, err)

	_, err = codec.DecodeReply(data[:len(data)/2])
	assert.ErrorIs(t, err, codec.ErrDecode)

	_, err = codec.DecodeReply(data[:len(data)-1])
	assert.ErrorIs(t, err, codec.ErrDecode)
}
