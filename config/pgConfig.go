package config

import (
	"fmt"
)

type DbConfig interface {
	GetConnectionString() string
}

// PostgresConfig represents the configuration needed to connect to a PostgreSQL database
type PostgresConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     string `yaml:"port" validate:"required,numeric"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required"`
	SSLMode  string `yaml:"sslmode"`
}

func (pc *PostgresConfig) GetConnectionString() string {
	sslMode := pc.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, sslMode)
}

// applyEnv lets POSTGRES_* variables override the file.
func (pc *PostgresConfig) applyEnv() {
	pc.Host = getEnv("POSTGRES_HOST", orDefault(pc.Host, "localhost"))
	pc.Port = getEnv("POSTGRES_PORT", orDefault(pc.Port, "5432"))
	pc.User = getEnv("POSTGRES_USER", orDefault(pc.User, "postgres"))
	pc.Password = getEnv("POSTGRES_PASSWORD", pc.Password)
	pc.DBName = getEnv("POSTGRES_NAME", orDefault(pc.DBName, "postgres"))
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

func (rc *RedisConfig) Enabled() bool {
	return rc.Addr != ""
}
