package config

import "time"

// Config is the top-level YAML structure.
type Config struct {
	Oracle   OracleConf   `yaml:"oracle"`
	Provider ProviderConf `yaml:"provider"`
	Dedup    DedupConf    `yaml:"dedup"`
	Engine   EngineConf   `yaml:"engine"`
	Kafka    KafkaConf    `yaml:"kafka"`
}

// OracleConf identifies the contract this node answers for.
type OracleConf struct {
	ContractAddress string `yaml:"contract_address"`
	FeatureID       uint32 `yaml:"feature_id"`
}

// ProviderConf configures the PredictHQ client.
type ProviderConf struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	TimeoutMs     int     `yaml:"timeout_ms"`
	MaxConcurrent int     `yaml:"max_concurrent"`
	RatePerSec    float64 `yaml:"rate_per_sec"` // 0 = unlimited
	Burst         int     `yaml:"burst"`
}

// Timeout returns TimeoutMs as a duration.
func (p ProviderConf) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// DedupConf controls how long processed transaction ids are remembered.
type DedupConf struct {
	RetentionMs int64 `yaml:"retention_ms"` // 0 = process lifetime
}

// Retention returns RetentionMs as a duration.
func (d DedupConf) Retention() time.Duration {
	return time.Duration(d.RetentionMs) * time.Millisecond
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers          int `yaml:"workers"`
	QueueDepth       int `yaml:"queue_depth"`
	MessageTimeoutMs int `yaml:"message_timeout_ms"`
}

// KafkaConf configures the optional Kafka bridge.
type KafkaConf struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	GroupID      string   `yaml:"group_id"`
	InboundTopic string   `yaml:"inbound_topic"`
	ReplyTopic   string   `yaml:"reply_topic"`
}
