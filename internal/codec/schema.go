package codec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Field is one positional element of an ABI tuple.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is an ordered, versioned ABI tuple definition shared with the
// on-chain consumer. Field order is part of the contract.
type Schema struct {
	Name    string  `json:"name"`
	Version int     `json:"version"`
	Fields  []Field `json:"fields"`
}

// RequestSchema is the payload emitted by the contract when a disaster is reported.
var RequestSchema = Schema{
	Name:    "DisasterRequest",
	Version: 1,
	Fields: []Field{
		{Name: "requestId", Type: "uint256"},
		{Name: "disasterType", Type: "string"},
		{Name: "location", Type: "string"},
	},
}

// ReplySchemaV1 is the reply the EmergencyFund contract decodes. Any change
// to this list is a breaking change and must ship as a new version.
var ReplySchemaV1 = Schema{
	Name:    "DisasterReply",
	Version: 1,
	Fields: []Field{
		{Name: "requestId", Type: "uint256"},
		{Name: "disasterType", Type: "string"},
		{Name: "location", Type: "string"},
		{Name: "isConfirmed", Type: "bool"},
		{Name: "externalId", Type: "string"},
		{Name: "startTime", Type: "uint32"},
		{Name: "endTime", Type: "uint32"},
		{Name: "category", Type: "string"},
		{Name: "tags", Type: "string[]"},
	},
}

// ReplySchema is the reply version this build emits.
var ReplySchema = ReplySchemaV1

var (
	requestArgs = mustArguments(RequestSchema)
	replyArgs   = mustArguments(ReplySchema)
)

// Signature returns the canonical tuple signature, e.g. "(uint256,string,string)".
func (s Schema) Signature() string {
	types := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		types[i] = f.Type
	}
	return "(" + strings.Join(types, ",") + ")"
}

// Arguments builds the go-ethereum argument list for the schema.
func (s Schema) Arguments() (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(s.Fields))
	for _, f := range s.Fields {
		t, err := abi.NewType(f.Type, "", nil)
		if err != nil {
			return nil, fmt.Errorf("schema %s v%d field %s: %w", s.Name, s.Version, f.Name, err)
		}
		args = append(args, abi.Argument{Name: f.Name, Type: t})
	}
	return args, nil
}

func mustArguments(s Schema) abi.Arguments {
	args, err := s.Arguments()
	if err != nil {
		panic(err)
	}
	return args
}
