package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/developkariyer/IWApim/config/values"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/media"
	"github.com/developkariyer/IWApim/internal/wisersell"
)

type AppConfig struct {
	Postgres  PostgresConfig        `yaml:"postgres"`
	Redis     RedisConfig           `yaml:"redis"`
	Cache     values.CacheValues    `yaml:"cache"`
	Sync      values.SyncValues     `yaml:"sync"`
	Currency  values.CurrencyValues `yaml:"currency"`
	Report    values.ReportValues   `yaml:"report"`
	Wisersell wisersell.Config      `yaml:"wisersell"`
	Media     media.Config          `yaml:"media"`
	Metrics   values.MetricsValues  `yaml:"metrics"`
	Logging   values.LoggingValues  `yaml:"logging"`
}

// LoadEnv reads .env style files; missing files are ignored.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: env file %s: %v", core.ErrConfig, f, err)
		}
	}
	return nil
}

// LoadConfig decodes the YAML file, applies environment overrides and
// validates the result. An empty filename means environment only.
func LoadConfig(filename string) (*AppConfig, error) {
	config := &AppConfig{}
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfig, err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", core.ErrConfig, filename, err)
		}
	}
	config.applyEnv()
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfig, err)
	}
	return nil
}
