package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-legacy-name")
	t.Setenv("PORT", "9090")
	t.Setenv("XP_PER_LEVEL", "200")
	t.Setenv("XP_COMPLETE_ACTIVITY", "50")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("WORKERS_GRANT_RETRY_INTERVAL", "45s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-legacy-name", cfg.Auth.JWTSecret)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 200, cfg.XP.PerLevel)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 45*time.Second, cfg.Workers.GrantRetryInterval)

	policy := cfg.XP.Policy()
	assert.Equal(t, 200, policy.PerLevel)
	assert.Equal(t, 3, policy.LevelFor(400))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.XP.PerLevel)
	assert.Equal(t, 15, cfg.XP.CreateActivity)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Auth: AuthConfig{JWTSecret: "s"},
		XP: XPConfig{
			PerLevel:             100,
			CreateActivity:       15,
			ConfirmPresence:      20,
			ParticipantConfirmed: 10,
			CompleteActivity:     25,
		},
		Database: DatabaseConfig{Driver: "sqlite"},
		Workers:  WorkersConfig{GrantRetryInterval: time.Second},
	}
	require.NoError(t, valid.Validate())

	missingSecret := valid
	missingSecret.Auth.JWTSecret = ""
	assert.Error(t, missingSecret.Validate())

	zeroLevel := valid
	zeroLevel.XP.PerLevel = 0
	assert.Error(t, zeroLevel.Validate())

	badDriver := valid
	badDriver.Database.Driver = "mysql"
	assert.Error(t, badDriver.Validate())

	zeroReward := valid
	zeroReward.XP.ParticipantConfirmed = 0
	assert.ErrorContains(t, zeroReward.Validate(), "xp.participant_confirmed")

	negativeReward := valid
	negativeReward.XP.CreateActivity = -5
	assert.ErrorContains(t, negativeReward.Validate(), "xp.create_activity")

	noRetryInterval := valid
	noRetryInterval.Workers.GrantRetryInterval = 0
	assert.ErrorContains(t, noRetryInterval.Validate(), "workers.grant_retry_interval")

	kafkaNoPoll := valid
	kafkaNoPoll.Kafka = KafkaConfig{Brokers: []string{"kafka:9092"}}
	assert.ErrorContains(t, kafkaNoPoll.Validate(), "kafka.poll_interval")

	kafkaOff := valid
	kafkaOff.Kafka = KafkaConfig{}
	assert.NoError(t, kafkaOff.Validate())
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(AppConfig{Name: "test", Env: "development", LogLevel: "loud"})
	assert.Error(t, err)

	logger, err := NewLogger(AppConfig{Name: "test", Env: "production", LogLevel: "warn"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
