package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/codec"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestEncodeThenDecodeRequest(t *testing.T) {
	out, err := run(t, "encode-request", "--request-id", "42", "--type", "Hurricane", "--location", "Miami, FL")
	require.NoError(t, err)
	payload := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(payload, "0x"))

	out, err = run(t, "decode-request", payload)
	require.NoError(t, err)
	var req codec.Request
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	assert.Equal(t, int64(42), req.RequestID.Int64())
	assert.Equal(t, "Hurricane", req.DisasterType)
	assert.Equal(t, "Miami, FL", req.Location)
}

func TestEncodeRequest_Errors(t *testing.T) {
	_, err := run(t, "encode-request", "--request-id", "nope", "--type", "Flood", "--location", "X")
	assert.Error(t, err)

	_, err = run(t, "encode-request", "--request-id=-1", "--type", "Flood", "--location", "X")
	assert.Error(t, err)

	_, err = run(t, "encode-request", "--type", "Flood", "--location", "X")
	assert.Error(t, err)
}

func TestDecodeReply(t *testing.T) {
	data, err := codec.EncodeReply(codec.NewReply(
		codec.Request{RequestID: big.NewInt(7), DisasterType: "Earthquake", Location: "Tokyo"},
		codec.EventRecord{IsConfirmed: true, ExternalID: "phq_7", StartTime: 100, Category: "earthquakes", Tags: []string{"major"}},
	))
	require.NoError(t, err)

	// Prefix is optional.
	out, err := run(t, "decode-reply", strings.TrimPrefix(hexutil.Encode(data), "0x"))
	require.NoError(t, err)

	var reply codec.Reply
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	assert.Equal(t, "phq_7", reply.Record.ExternalID)
	assert.Equal(t, []string{"major"}, reply.Record.Tags)
	assert.Equal(t, uint32(0), reply.Record.EndTime)

	_, err = run(t, "decode-reply", "0xzz")
	assert.Error(t, err)
	_, err = run(t, "decode-reply", "0x1234")
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "DisasterRequest v1 (uint256,string,string)")
	assert.Contains(t, out, "DisasterReply v1 (uint256,string,string,bool,string,uint32,uint32,string,string[])")
}
