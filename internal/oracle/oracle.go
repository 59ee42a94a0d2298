// Package oracle implements the DisasterOracle feature: it turns a
// disaster report emitted on-chain into an ABI reply backed by PredictHQ.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/admission"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/codec"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/dedup"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/feature"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/message"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/metrics"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/provider"
)

const (
	DefaultFeatureID   uint32 = 1
	FeatureName               = "DisasterOracle"
	FeatureDescription        = "Oracle for fetching disaster data from PredictHQ"
)

// ErrConfiguration wraps every reason New refuses to build an oracle.
var ErrConfiguration = errors.New("oracle: configuration error")

// Fetcher returns the record for a disaster. Implementations must not fail;
// see provider.Client.
type Fetcher interface {
	Fetch(ctx context.Context, disasterType, location string) codec.EventRecord
}

// Config holds the settings New needs. All fields are fixed for the
// lifetime of the oracle.
type Config struct {
	ContractAddress string
	FeatureID       uint32
	Provider        provider.Config
	DedupRetention  time.Duration // 0 = never forget
}

// Option customizes an oracle beyond Config.
type Option func(*DisasterOracle)

// WithFetcher replaces the PredictHQ client.
func WithFetcher(f Fetcher) Option {
	return func(o *DisasterOracle) { o.fetcher = f }
}

// WithDedup supplies the deduplication store.
func WithDedup(s *dedup.Store) Option {
	return func(o *DisasterOracle) { o.dedup = s }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *DisasterOracle) { o.log = l }
}

// DisasterOracle implements feature.Feature.
type DisasterOracle struct {
	id       uint32
	contract string
	fetcher  Fetcher
	dedup    *dedup.Store
	log      *slog.Logger
}

var (
	_ feature.Feature = (*DisasterOracle)(nil)
	_ feature.Tracker = (*DisasterOracle)(nil)
)

// New returns a fully configured oracle or an error wrapping ErrConfiguration.
func New(cfg Config, opts ...Option) (*DisasterOracle, error) {
	var errs []error
	addr := strings.TrimSpace(cfg.ContractAddress)
	switch {
	case addr == "":
		errs = append(errs, fmt.Errorf("%w: EmergencyFund contract address not set", ErrConfiguration))
	case !common.IsHexAddress(addr):
		errs = append(errs, fmt.Errorf("%w: contract address %q is not a hex address", ErrConfiguration, addr))
	}
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		errs = append(errs, fmt.Errorf("%w: PredictHQ API key not set", ErrConfiguration))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	o := &DisasterOracle{
		id:       cfg.FeatureID,
		contract: addr,
		log:      slog.Default(),
	}
	if o.id == 0 {
		o.id = DefaultFeatureID
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("feature", FeatureName)

	if o.fetcher == nil {
		c, err := provider.New(cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		o.fetcher = c
	}
	if o.dedup == nil {
		o.dedup = dedup.New(dedup.WithRetention(cfg.DedupRetention))
	}
	return o, nil
}

func (o *DisasterOracle) ID() uint32          { return o.id }
func (o *DisasterOracle) Name() string        { return FeatureName }
func (o *DisasterOracle) Description() string { return FeatureDescription }

// IsSenderValid reports whether sender is the configured contract.
func (o *DisasterOracle) IsSenderValid(sender string) bool {
	return admission.IsValid(sender, o.contract)
}

// IsMessageValid implements feature.Feature.
func (o *DisasterOracle) IsMessageValid(_ context.Context, msg *message.Message) bool {
	if msg == nil {
		return false
	}
	return o.IsSenderValid(msg.Sender)
}

// Process implements feature.Feature. Each transaction id is handled at
// most once; duplicates and undecodable payloads return msg unchanged.
// Provider failures still produce an (unconfirmed) reply.
func (o *DisasterOracle) Process(ctx context.Context, msg *message.Message) (*message.Message, feature.Outcome) {
	log := o.log.With("tx_id", msg.TransactionID)
	log.Info("processing request")

	if o.dedup.CheckAndMark(msg.TransactionID) == dedup.AlreadyProcessed {
		log.Info("already processed request, skipping")
		return msg, feature.OutcomeDuplicate
	}
	metrics.DedupEntries.Set(float64(o.dedup.Len()))

	req, err := codec.DecodeRequest(msg.FeatureData)
	if err != nil {
		log.Error("cannot decode request payload", "err", err)
		return msg, feature.OutcomeDecodeFailed
	}
	log = log.With("request_id", req.RequestID.String())
	log.Info("decoded request", "disaster_type", req.DisasterType, "location", req.Location)

	rec := o.fetcher.Fetch(ctx, req.DisasterType, req.Location)

	reply, err := codec.EncodeReply(codec.NewReply(req, rec))
	if err != nil {
		log.Error("cannot encode reply", "err", err)
		return msg, feature.OutcomeDecodeFailed
	}
	log.Info("reply encoded", "confirmed", rec.IsConfirmed, "external_id", rec.ExternalID)
	return msg.WithReply(o.id, reply), feature.OutcomeReplied
}

// Processed implements feature.Tracker.
func (o *DisasterOracle) Processed(txID string) bool {
	return o.dedup.Seen(txID)
}

// Dedup exposes the store for health reporting.
func (o *DisasterOracle) Dedup() *dedup.Store {
	return o.dedup
}
