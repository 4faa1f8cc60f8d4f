package config

import (
	"os"
)

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// applyEnv overrides secrets and connection fields from the environment.
func (c *AppConfig) applyEnv() {
	c.Postgres.applyEnv()
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Wisersell.BaseURL = getEnv("WISERSELL_URL", c.Wisersell.BaseURL)
	c.Wisersell.Email = getEnv("WISERSELL_USER", c.Wisersell.Email)
	c.Wisersell.Password = getEnv("WISERSELL_PASSWORD", c.Wisersell.Password)
	c.Media.Bucket = getEnv("MEDIA_BUCKET", c.Media.Bucket)
	c.Media.AccessKey = getEnv("MEDIA_ACCESS_KEY", c.Media.AccessKey)
	c.Media.SecretKey = getEnv("MEDIA_SECRET_KEY", c.Media.SecretKey)
	c.Cache.Dir = getEnv("CACHE_DIR", c.Cache.Dir)
}

func (c *AppConfig) applyDefaults() {
	if c.Cache.Dir == "" {
		c.Cache.Dir = "tmp/marketplaces"
	}
	// precision: 0 is a valid setting (whole units), default only when absent
	if c.Currency.Precision == nil {
		precision := int32(2)
		c.Currency.Precision = &precision
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}
