package config

import (
	"fmt"
	"time"

	"github.com/pointride/dispatch/pkg/configparser"
	"github.com/pointride/dispatch/pkg/postgres"
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Database DatabaseConfig
		Redis    RedisConfig
		RabbitMQ RabbitMQConfig
		HTTP     HTTPConfig
		Auth     Auth
		Dispatch DispatchConfig
		Notify   NotifyConfig
		Recovery RecoveryConfig
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"pointride_user"`
		Password string `env:"DATABASE_PASSWORD" default:"pointride_pass"`
		Database string `env:"DATABASE_DATABASE" default:"pointride_db"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	RedisConfig struct {
		Host     string `env:"REDIS_HOST" default:"localhost"`
		Port     string `env:"REDIS_PORT" default:"6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" default:"0"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	HTTPConfig struct {
		Host string `env:"HTTP_HOST" default:"0.0.0.0"`
		Port string `env:"HTTP_PORT" default:"3000"`
	}

	Auth struct {
		JWTSecret      string        `env:"AUTH_JWT_SECRET" default:"supersecretkey"`
		OperatorTokTTL time.Duration `env:"AUTH_OPERATOR_TOKEN_TTL" default:"12h"`
	}

	DispatchConfig struct {
		CommissionRate       float64 `env:"DISPATCH_COMMISSION_RATE" default:"0.20"`
		DefaultPaymentMethod string  `env:"DISPATCH_DEFAULT_PAYMENT_METHOD" default:"cash"`
		MinutesPerRide       int     `env:"DISPATCH_MINUTES_PER_RIDE" default:"5"`
	}

	NotifyConfig struct {
		AckWait      time.Duration `env:"NOTIFY_ACK_WAIT" default:"5s"`
		RetryDelay   time.Duration `env:"NOTIFY_RETRY_DELAY" default:"2s"`
		MaxAttempts  int           `env:"NOTIFY_MAX_ATTEMPTS" default:"3"`
		OfflineLimit int           `env:"NOTIFY_OFFLINE_LIMIT" default:"50"`
	}

	RecoveryConfig struct {
		Interval        time.Duration `env:"RECOVERY_INTERVAL" default:"10m"`
		PendingTimeout  time.Duration `env:"RECOVERY_PENDING_TIMEOUT" default:"30m"`
		AssignedTimeout time.Duration `env:"RECOVERY_ASSIGNED_TIMEOUT" default:"15m"`
		StartedTimeout  time.Duration `env:"RECOVERY_STARTED_TIMEOUT" default:"60m"`
		EndedTimeout    time.Duration `env:"RECOVERY_ENDED_TIMEOUT" default:"60m"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// PoolSettings hands the pool bounds to the postgres client.
func (c DatabaseConfig) PoolSettings() postgres.PoolSettings {
	return postgres.PoolSettings{
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func (c RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadYamlFile(filepath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := configparser.ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
