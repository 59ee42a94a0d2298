// Package codec encodes and decodes the ABI payloads exchanged with the
// EmergencyFund contract.
package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ErrDecode is returned when a payload does not match the expected tuple.
var ErrDecode = errors.New("codec: payload does not match schema")

// ErrEncode is returned when values cannot be represented in the schema.
var ErrEncode = errors.New("codec: value does not fit schema")

// DecodeRequest decodes a (uint256,string,string) request payload.
func DecodeRequest(data []byte) (Request, error) {
	if len(data) == 0 {
		return Request{}, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	values, err := requestArgs.Unpack(data)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkLength(data, requestArgs, values); err != nil {
		return Request{}, err
	}
	if len(values) != len(RequestSchema.Fields) {
		return Request{}, fmt.Errorf("%w: got %d elements, want %d", ErrDecode, len(values), len(RequestSchema.Fields))
	}

	id, ok1 := values[0].(*big.Int)
	typ, ok2 := values[1].(string)
	loc, ok3 := values[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return Request{}, fmt.Errorf("%w: unexpected element types %T, %T, %T", ErrDecode, values[0], values[1], values[2])
	}
	return Request{RequestID: id, DisasterType: typ, Location: loc}, nil
}

// EncodeRequest produces the payload the contract would emit for req.
func EncodeRequest(req Request) ([]byte, error) {
	if err := checkUint256(req.RequestID); err != nil {
		return nil, err
	}
	out, err := requestArgs.Pack(req.RequestID, req.DisasterType, req.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return out, nil
}

// EncodeReply serializes r with the current reply schema.
func EncodeReply(r Reply) ([]byte, error) {
	if err := checkUint256(r.RequestID); err != nil {
		return nil, err
	}
	tags := r.Record.Tags
	if tags == nil {
		tags = []string{}
	}
	out, err := replyArgs.Pack(
		r.RequestID,
		r.DisasterType,
		r.Location,
		r.Record.IsConfirmed,
		r.Record.ExternalID,
		r.Record.StartTime,
		r.Record.EndTime,
		r.Record.Category,
		tags,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return out, nil
}

// DecodeReply is the inverse of EncodeReply.
func DecodeReply(data []byte) (Reply, error) {
	if len(data) == 0 {
		return Reply{}, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	values, err := replyArgs.Unpack(data)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkLength(data, replyArgs, values); err != nil {
		return Reply{}, err
	}
	if len(values) != len(ReplySchema.Fields) {
		return Reply{}, fmt.Errorf("%w: got %d elements, want %d", ErrDecode, len(values), len(ReplySchema.Fields))
	}

	var (
		r   Reply
		oks [9]bool
	)
	r.RequestID, oks[0] = values[0].(*big.Int)
	r.DisasterType, oks[1] = values[1].(string)
	r.Location, oks[2] = values[2].(string)
	r.Record.IsConfirmed, oks[3] = values[3].(bool)
	r.Record.ExternalID, oks[4] = values[4].(string)
	r.Record.StartTime, oks[5] = values[5].(uint32)
	r.Record.EndTime, oks[6] = values[6].(uint32)
	r.Record.Category, oks[7] = values[7].(string)
	r.Record.Tags, oks[8] = values[8].([]string)
	for i, ok := range oks {
		if !ok {
			return Reply{}, fmt.Errorf("%w: field %s has type %T", ErrDecode, ReplySchema.Fields[i].Name, values[i])
		}
	}
	if r.Record.Tags == nil {
		r.Record.Tags = []string{}
	}
	return r, nil
}

// checkLength rejects payloads shorter than the canonical encoding of the
// values they decode to. Unpack reads dynamic values without their trailing
// padding, so a payload cut inside the last padded word would otherwise pass.
func checkLength(data []byte, args abi.Arguments, values []interface{}) error {
	if len(data)%32 != 0 {
		return fmt.Errorf("%w: length %d is not a multiple of 32", ErrDecode, len(data))
	}
	canonical, err := args.Pack(values...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) < len(canonical) {
		return fmt.Errorf("%w: payload is %d bytes, encoding needs %d", ErrDecode, len(data), len(canonical))
	}
	return nil
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func checkUint256(v *big.Int) error {
	switch {
	case v == nil:
		return fmt.Errorf("%w: requestId is nil", ErrEncode)
	case v.Sign() < 0:
		return fmt.Errorf("%w: requestId %s is negative", ErrEncode, v)
	case v.Cmp(maxUint256) > 0:
		return fmt.Errorf("%w: requestId exceeds uint256", ErrEncode)
	}
	return nil
}
