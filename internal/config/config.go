// Package config loads service configuration from the environment, with an
// optional .env file, into a Config carrying defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration. Each key is the environment
// variable that sets it.
type Config struct {
	Server     Server     `mapstructure:",squash"`
	Storage    Storage    `mapstructure:",squash"`
	Blob       Blob       `mapstructure:",squash"`
	Storelight Storelight `mapstructure:",squash"`
	Redis      Redis      `mapstructure:",squash"`
	Notify     Notify     `mapstructure:",squash"`
	Log        Log        `mapstructure:",squash"`
}

type Server struct {
	ServiceName string `mapstructure:"SERVICE_NAME" default:"Tissuecore"`
	Port        int    `mapstructure:"WEB_PORT" default:"8080"`
	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
}

type Storage struct {
	Driver      string `mapstructure:"TISSUECORE_STORAGE_DRIVER" default:"sqlite"`
	SQLitePath  string `mapstructure:"TISSUECORE_SQLITE_PATH" default:"tissuecore.db"`
	PostgresDSN string `mapstructure:"TISSUECORE_POSTGRES_DSN"`
}

type Blob struct {
	Driver         string `mapstructure:"TISSUECORE_BLOB_DRIVER" default:"fs"`
	FSRoot         string `mapstructure:"TISSUECORE_BLOB_FS_ROOT" default:"./blobdata"`
	S3Bucket       string `mapstructure:"TISSUECORE_BLOB_S3_BUCKET"`
	S3Region       string `mapstructure:"TISSUECORE_BLOB_S3_REGION" default:"us-east-1"`
	S3Endpoint     string `mapstructure:"TISSUECORE_BLOB_S3_ENDPOINT"`
	S3AccessKey    string `mapstructure:"TISSUECORE_BLOB_S3_ACCESS_KEY"`
	S3SecretKey    string `mapstructure:"TISSUECORE_BLOB_S3_SECRET_KEY"`
	S3UsePathStyle bool   `mapstructure:"TISSUECORE_BLOB_S3_PATH_STYLE"`
}

type Storelight struct {
	// URL of the storelight GraphQL endpoint. Empty disables unstore calls.
	URL         string        `mapstructure:"STORELIGHT_URL"`
	APIKey      string        `mapstructure:"STORELIGHT_APIKEY"`
	Timeout     time.Duration `mapstructure:"STORELIGHT_TIMEOUT" default:"10s"`
	MaxFailures uint32        `mapstructure:"STORELIGHT_MAX_FAILURES" default:"5"`
}

type Redis struct {
	Addr     string `mapstructure:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB" default:"0"`
}

type Notify struct {
	// Flags is memory or redis.
	Flags string `mapstructure:"NOTIFY_FLAGS" default:"memory"`
	// Enabled names the notifications switched on at start-up.
	Enabled []string `mapstructure:"NOTIFY_ENABLED" default:"[\"unstore_failure\"]"`
}

type Log struct {
	// Path of the rotated log file. Empty logs to stderr.
	Path  string `mapstructure:"LOG_PATH"`
	Level string `mapstructure:"LOG_LEVEL" default:"info"`
}

// Load reads envFiles (missing files are skipped), then the environment, on
// top of the defaults.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.AutomaticEnv()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
