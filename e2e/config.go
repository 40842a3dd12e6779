package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_LOG_LEVEL is the engine log level during scenarios
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"WARN"`
	// E2E_QUIET_INTERVAL shortens the typing decay so scenarios stay fast
	QuietInterval time.Duration `envconfig:"E2E_QUIET_INTERVAL" default:"150ms"`
	// E2E_WAIT bounds every eventual assertion
	Wait time.Duration `envconfig:"E2E_WAIT" default:"3s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
