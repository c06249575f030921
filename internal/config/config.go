package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the whole application configuration. Defaults are applied
// via struct tags, then a YAML file (optional), then environment
// variables for secrets and deploy-time overrides.
type Config struct {
	Environment string `yaml:"environment" default:"dev" validate:"oneof=dev staging prod"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"logging"`

	Provider struct {
		BaseURL      string        `yaml:"base_url" default:"https://api.coingecko.com/api/v3" validate:"required,url"`
		APIKey       string        `yaml:"api_key"`
		MinInterval  time.Duration `yaml:"min_interval" default:"1.2s"`
		MaxRetries   int           `yaml:"max_retries" default:"5" validate:"gte=0"`
		InitialDelay time.Duration `yaml:"initial_delay" default:"600ms"`
		MaxDelay     time.Duration `yaml:"max_delay" default:"30s"`
		MaxNarrow    int           `yaml:"max_narrow" default:"4" validate:"gte=0"`
	} `yaml:"provider"`

	Ingest struct {
		AssetIDs []string `yaml:"asset_ids" default:"[\"bitcoin\",\"ethereum\",\"solana\",\"dogecoin\",\"tron\",\"ethena\",\"arbitrum\",\"optimism\",\"wormhole\"]" validate:"min=1"`
		DaysBack int      `yaml:"days_back" default:"365" validate:"gt=0"`
	} `yaml:"ingest"`

	Store struct {
		Backend       string `yaml:"backend" default:"postgres" validate:"oneof=postgres clickhouse memory"`
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"store"`

	Metrics struct {
		// Disabled turns the /metrics endpoint off; an empty Addr does too.
		Disabled bool   `yaml:"disabled"`
		Addr     string `yaml:"addr" default:":9090"`
	} `yaml:"metrics"`

	Analytics struct {
		CorrelationMinOverlap int           `yaml:"correlation_min_overlap" default:"10" validate:"gt=0"`
		CacheTTL              time.Duration `yaml:"cache_ttl" default:"5m"`
	} `yaml:"analytics"`
}

// Load builds the configuration from an optional YAML file plus
// environment overrides. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	applyEnv(&c)

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// applyEnv overrides config values from the environment. Secrets never
// live in the YAML file.
func applyEnv(c *Config) {
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_URL"); v != "" {
		c.Store.ClickhouseDSN = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("ASSET_IDS"); v != "" {
		ids := []string{}
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			c.Ingest.AssetIDs = ids
		}
	}
}
