// Package config loads service configuration from the environment, an
// optional .env file and an optional config file.
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ErrMissingJWTSecret is returned by Load when no token signing key is set.
var ErrMissingJWTSecret = errors.New("config: jwt.secret (JWT_SECRET) is required")

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BusConfig struct {
	// Driver is "redis" or "nats".
	Driver string `mapstructure:"driver"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type ChatConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	// ArchiveGrace is how much longer the message log outlives the chat
	// metadata. It must exceed the cleanup interval.
	ArchiveGrace time.Duration `mapstructure:"archive_grace"`
}

type LockConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type CleanupConfig struct {
	Schedule string `mapstructure:"schedule"`
}

type MatchConfig struct {
	Schedule string `mapstructure:"schedule"`
}

type ComplaintConfig struct {
	Schedule  string        `mapstructure:"schedule"`
	Retention time.Duration `mapstructure:"retention"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Bus       BusConfig       `mapstructure:"bus"`
	NATS      NATSConfig      `mapstructure:"nats"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	S3        S3Config        `mapstructure:"s3"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Lock      LockConfig      `mapstructure:"lock"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Match     MatchConfig     `mapstructure:"match"`
	Complaint ComplaintConfig `mapstructure:"complaint"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("postgres.dsn", "host=localhost user=user password=password dbname=matchchat port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("bus.driver", "redis")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 72*time.Hour)
	v.SetDefault("s3.bucket", "matchchat-archive")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("chat.ttl", DefaultChatTTL)
	v.SetDefault("chat.archive_grace", DefaultArchiveGrace)
	v.SetDefault("lock.ttl", DefaultLockTTL)
	v.SetDefault("cleanup.schedule", "@every 15m")
	v.SetDefault("match.schedule", "@every 1h")
	v.SetDefault("complaint.schedule", "@every 6h")
	v.SetDefault("complaint.retention", DefaultComplaintRetention)
	v.SetDefault("log.development", false)
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the
// environment. Nested keys map to env vars with "_", e.g. REDIS_ADDR.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: error loading .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Chat.TTL <= 0 {
		cfg.Chat.TTL = DefaultChatTTL
	}
	if cfg.Chat.ArchiveGrace <= 0 {
		cfg.Chat.ArchiveGrace = DefaultArchiveGrace
	}
	if cfg.Lock.TTL <= 0 {
		cfg.Lock.TTL = DefaultLockTTL
	}
	if cfg.JWT.Secret == "" {
		return nil, ErrMissingJWTSecret
	}
	return &cfg, nil
}
