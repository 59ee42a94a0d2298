package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Validate checks the config for:
//   - Required fields (contract address, provider API key)
//   - Well-formed contract address
//   - Non-negative limits
//   - Complete Kafka settings when the bridge is enabled
func Validate(cfg *Config) error {
	var errs []string

	addr := strings.TrimSpace(cfg.Oracle.ContractAddress)
	switch {
	case addr == "":
		errs = append(errs, "oracle.contract_address is required (or set ORACLE_CONTRACT_ADDRESS)")
	case !common.IsHexAddress(addr):
		errs = append(errs, fmt.Sprintf("oracle.contract_address %q is not a hex address", addr))
	}
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		errs = append(errs, "provider.api_key is required (or set PREDICTHQ_API_KEY)")
	}

	if cfg.Provider.TimeoutMs < 0 {
		errs = append(errs, fmt.Sprintf("provider.timeout_ms must be >= 0, got %d", cfg.Provider.TimeoutMs))
	}
	if cfg.Provider.MaxConcurrent < 0 {
		errs = append(errs, fmt.Sprintf("provider.max_concurrent must be >= 0, got %d", cfg.Provider.MaxConcurrent))
	}
	if cfg.Provider.RatePerSec < 0 {
		errs = append(errs, fmt.Sprintf("provider.rate_per_sec must be >= 0, got %g", cfg.Provider.RatePerSec))
	}
	if cfg.Dedup.RetentionMs < 0 {
		errs = append(errs, fmt.Sprintf("dedup.retention_ms must be >= 0, got %d", cfg.Dedup.RetentionMs))
	}
	if cfg.Engine.Workers < 0 || cfg.Engine.QueueDepth < 0 || cfg.Engine.MessageTimeoutMs < 0 {
		errs = append(errs, "engine settings must be >= 0")
	}

	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 || strings.TrimSpace(cfg.Kafka.Brokers[0]) == "" {
			errs = append(errs, "kafka.brokers must not be empty when kafka is enabled")
		}
		if cfg.Kafka.InboundTopic == cfg.Kafka.ReplyTopic {
			errs = append(errs, fmt.Sprintf("kafka.inbound_topic and kafka.reply_topic must differ (both %q)", cfg.Kafka.ReplyTopic))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(errs, "\n  - "))
	}
	return nil
}
