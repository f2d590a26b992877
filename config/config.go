package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/activity-point/api-go/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	XP       XPConfig       `mapstructure:"xp"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Workers  WorkersConfig  `mapstructure:"workers"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// StorageConfig describes the S3-compatible bucket holding user avatars.
type StorageConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	PublicURL        string `mapstructure:"public_url"`
	UsePathStyle     bool   `mapstructure:"use_path_style"`
	DefaultAvatarURL string `mapstructure:"default_avatar_url"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type XPConfig struct {
	PerLevel             int `mapstructure:"per_level"`
	CreateActivity       int `mapstructure:"create_activity"`
	ConfirmPresence      int `mapstructure:"confirm_presence"`
	ParticipantConfirmed int `mapstructure:"participant_confirmed"`
	CompleteActivity     int `mapstructure:"complete_activity"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type WorkersConfig struct {
	GrantRetryInterval time.Duration `mapstructure:"grant_retry_interval"`
	GrantMaxAttempts   int           `mapstructure:"grant_max_attempts"`
	GrantBackoffBase   time.Duration `mapstructure:"grant_backoff_base"`
}

// Policy converts the configured rewards into the ledger's table.
func (c XPConfig) Policy() types.XPConfig {
	return types.XPConfig{
		PerLevel: c.PerLevel,
		Rewards: map[types.XPAction]int{
			types.ActionCreateActivity:       c.CreateActivity,
			types.ActionConfirmPresence:      c.ConfirmPresence,
			types.ActionParticipantConfirmed: c.ParticipantConfirmed,
			types.ActionCompleteActivity:     c.CompleteActivity,
		},
	}
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// Load reads .env (if present), an optional config.yaml and the environment.
// Keys map to env vars with dots replaced by underscores (database.host ->
// DATABASE_HOST).
func Load(configPath string) (*Config, error) {
	// Missing .env is fine in production.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.XP.PerLevel <= 0 {
		return fmt.Errorf("xp.per_level must be positive, got %d", c.XP.PerLevel)
	}
	rewards := []struct {
		key   string
		value int
	}{
		{"xp.create_activity", c.XP.CreateActivity},
		{"xp.confirm_presence", c.XP.ConfirmPresence},
		{"xp.participant_confirmed", c.XP.ParticipantConfirmed},
		{"xp.complete_activity", c.XP.CompleteActivity},
	}
	for _, r := range rewards {
		if r.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", r.key, r.value)
		}
	}
	if c.Workers.GrantRetryInterval <= 0 {
		return fmt.Errorf("workers.grant_retry_interval must be positive, got %s", c.Workers.GrantRetryInterval)
	}
	if c.Kafka.Enabled() && c.Kafka.PollInterval <= 0 {
		return fmt.Errorf("kafka.poll_interval must be positive, got %s", c.Kafka.PollInterval)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "activity-point-api")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "activity_point")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "avatars")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.public_url", "")
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.default_avatar_url", "https://cdn.activitypoint.app/defaults/avatar.png")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "activity-point")
	v.SetDefault("auth.token_ttl", time.Hour)

	defaults := types.GetXPConfig()
	v.SetDefault("xp.per_level", defaults.PerLevel)
	v.SetDefault("xp.create_activity", defaults.Reward(types.ActionCreateActivity))
	v.SetDefault("xp.confirm_presence", defaults.Reward(types.ActionConfirmPresence))
	v.SetDefault("xp.participant_confirmed", defaults.Reward(types.ActionParticipantConfirmed))
	v.SetDefault("xp.complete_activity", defaults.Reward(types.ActionCompleteActivity))

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "activity-point.events")
	v.SetDefault("kafka.poll_interval", 2*time.Second)
	v.SetDefault("kafka.batch_size", 100)

	v.SetDefault("workers.grant_retry_interval", 30*time.Second)
	v.SetDefault("workers.grant_max_attempts", 10)
	v.SetDefault("workers.grant_backoff_base", 5*time.Second)
}

// bindLegacyEnv keeps the short variable names used by existing .env files.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("http.port", "HTTP_PORT", "PORT")
	_ = v.BindEnv("database.host", "DATABASE_HOST", "DB_HOST")
	_ = v.BindEnv("database.port", "DATABASE_PORT", "DB_PORT")
	_ = v.BindEnv("database.user", "DATABASE_USER", "DB_USER")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "DATABASE_NAME", "DB_NAME")
	_ = v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
}

// NewLogger builds the process logger for the configured environment.
func NewLogger(cfg AppConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Env == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc.Level = level
	return zc.Build(zap.Fields(zap.String("service", cfg.Name)))
}
