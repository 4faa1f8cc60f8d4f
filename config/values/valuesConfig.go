package values

import "time"

// SyncValues are the pass tunables shared by every marketplace.
type SyncValues struct {
	Workers      int           `yaml:"workers" validate:"gte=0,lte=64"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	BackoffStep  time.Duration `yaml:"backoff_step"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0"`
	PollInterval time.Duration `yaml:"poll_interval"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	// BaseURLs overrides adapter endpoints by marketplace type (sandboxes).
	BaseURLs map[string]string `yaml:"base_urls"`
}

type CacheValues struct {
	Dir         string        `yaml:"dir" validate:"required"`
	ListingsTTL time.Duration `yaml:"listings_ttl"`
}

type CurrencyValues struct {
	Precision *int32 `yaml:"precision" validate:"omitempty,gte=0,lte=8"`
}

type ReportValues struct {
	// Encodings is the candidate order for exports without a BOM.
	Encodings []string `yaml:"encodings"`
}

type MetricsValues struct {
	Addr string `yaml:"addr"`
}

type LoggingValues struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}
