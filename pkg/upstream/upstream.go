package upstream

import (
	"github.com/oscarmunoz1/trazo-back-sub000/internal/access"
	"github.com/oscarmunoz1/trazo-back-sub000/internal/config"
)

// New creates an access layer with default configuration.
func New(opts ...ManagerOption) (Access, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromConfig creates an access layer from configuration.
func NewFromConfig(cfg *config.Config, opts ...ManagerOption) (Access, error) {
	managerOpts := &ManagerOptions{}
	for _, opt := range opts {
		opt(managerOpts)
	}
	return access.New(cfg, managerOpts)
}

// NewFromFile creates an access layer from a config file, with TRAZO_
// environment variables overriding file values.
func NewFromFile(path string, opts ...ManagerOption) (Access, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewMemoryOnly creates an access layer whose cache uses only the in-memory
// tier. Breaker state stays local to the process.
func NewMemoryOnly(opts ...ManagerOption) (Access, error) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false
	cfg.Breaker.Store.Enabled = false
	cfg.Defaults.Level = "memory-only"
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration that can be modified before creating
// an access layer.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}
