package config

import (
	"github.com/yndnr/ttlstash/internal/infra/confloader"
)

// Load reads the configuration from path (optional), the environment and
// overrides, then verifies it.
func Load(path string, overrides map[string]any) (*Config, error) {
	l := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithDefaults(Defaults()),
		confloader.WithOverrides(overrides),
	)
	cfg := &Config{}
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
