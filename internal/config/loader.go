package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads the YAML config file, overlays environment variables and
// watches the file for edits. The loaded Config is fixed for the life of
// the process; edits are only reported.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load. An empty path
// means environment variables and defaults only.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the configuration loaded at startup.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked with the re-read file contents
// whenever the config file is edited.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that reports edits to the config file.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, fmt.Errorf("config watcher: no config file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Unreadable edit; keep running on the startup config.
						continue
					}
					l.mu.RLock()
					callbacks := make([]func(*Config), len(l.onChange))
					copy(callbacks, l.onChange)
					l.mu.RUnlock()
					for _, fn := range callbacks {
						fn(cfg)
					}
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

func (l *Loader) load() (*Config, error) {
	var cfg Config
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv lets deployment secrets and endpoints override the file.
func applyEnv(cfg *Config) {
	cfg.Oracle.ContractAddress = getenv("ORACLE_CONTRACT_ADDRESS", cfg.Oracle.ContractAddress)
	cfg.Provider.APIKey = getenv("PREDICTHQ_API_KEY", cfg.Provider.APIKey)
	cfg.Provider.BaseURL = getenv("PREDICTHQ_BASE_URL", cfg.Provider.BaseURL)
	cfg.Provider.TimeoutMs = getenvInt("PROVIDER_TIMEOUT_MS", cfg.Provider.TimeoutMs)
	cfg.Provider.MaxConcurrent = getenvInt("PROVIDER_MAX_CONCURRENT", cfg.Provider.MaxConcurrent)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Oracle.FeatureID == 0 {
		cfg.Oracle.FeatureID = 1
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.predicthq.com"
	}
	if cfg.Provider.TimeoutMs == 0 {
		cfg.Provider.TimeoutMs = 10000
	}
	if cfg.Provider.MaxConcurrent == 0 {
		cfg.Provider.MaxConcurrent = 4
	}
	if cfg.Provider.Burst == 0 {
		cfg.Provider.Burst = 1
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 8
	}
	if cfg.Engine.QueueDepth == 0 {
		cfg.Engine.QueueDepth = 1000
	}
	if cfg.Engine.MessageTimeoutMs == 0 {
		cfg.Engine.MessageTimeoutMs = 30000
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "disaster-oracle"
	}
	if cfg.Kafka.InboundTopic == "" {
		cfg.Kafka.InboundTopic = "oracle.requests"
	}
	if cfg.Kafka.ReplyTopic == "" {
		cfg.Kafka.ReplyTopic = "oracle.replies"
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
