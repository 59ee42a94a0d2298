// Command oraclectl builds and inspects DisasterOracle ABI payloads.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/codec"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "oraclectl",
		Short:         "Encode and decode DisasterOracle payloads",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newEncodeRequestCmd(), newDecodeRequestCmd(), newDecodeReplyCmd(), newSchemaCmd())
	return root
}

func newEncodeRequestCmd() *cobra.Command {
	var requestID, disasterType, location string
	cmd := &cobra.Command{
		Use:   "encode-request",
		Short: "ABI-encode a disaster request as 0x hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, ok := new(big.Int).SetString(requestID, 0)
			if !ok {
				return fmt.Errorf("request id %q is not an integer", requestID)
			}
			data, err := codec.EncodeRequest(codec.Request{RequestID: id, DisasterType: disasterType, Location: location})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id (decimal or 0x hex)")
	cmd.Flags().StringVar(&disasterType, "type", "", "disaster type, e.g. Hurricane")
	cmd.Flags().StringVar(&location, "location", "", "location, e.g. \"Miami, FL\"")
	_ = cmd.MarkFlagRequired("request-id")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func newDecodeRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode-request <hex>",
		Short: "Decode a request payload to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			req, err := codec.DecodeRequest(data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), req)
		},
	}
}

func newDecodeReplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode-reply <hex>",
		Short: "Decode a reply payload to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			reply, err := codec.DecodeReply(data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reply)
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the request and reply tuple definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, s := range []codec.Schema{codec.RequestSchema, codec.ReplySchema} {
				fmt.Fprintf(out, "%s v%d %s\n", s.Name, s.Version, s.Signature())
				for i, f := range s.Fields {
					fmt.Fprintf(out, "  %d  %-8s %s\n", i, f.Type, f.Name)
				}
			}
			return nil
		},
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return data, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
