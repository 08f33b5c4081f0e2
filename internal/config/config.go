package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the relay configuration, read from the environment. Only the
// port is required and it has a default; everything else is optional.
type Config struct {
	Port        int    `mapstructure:"RELAY_PORT"`
	TokenSecret string `mapstructure:"RELAY_TOKEN_SECRET"`
	ListingURL  string `mapstructure:"RELAY_LISTING_URL"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("RELAY_PORT", 3000)
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface unset keys to Unmarshal.
	for _, key := range []string{"RELAY_PORT", "RELAY_TOKEN_SECRET", "RELAY_LISTING_URL"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
