package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// IdempotencyFailOpen controls behavior when the idempotency cache is
	// unreachable: true lets dispatches proceed and accepts the double-send
	// risk, false rejects them with a system error.
	IdempotencyFailOpen bool `env:"IDEMPOTENCY_FAIL_OPEN,default=true"`

	ProviderTimeoutSeconds int `env:"PROVIDER_TIMEOUT_SECONDS,default=10"`
	WebhookConcurrency     int `env:"WEBHOOK_CONCURRENCY,default=8"`

	SavannaURL    string `env:"SAVANNA_URL,required=true"`
	SavannaAPIKey string `env:"SAVANNA_API_KEY,required=true"`
	NexoraURL     string `env:"NEXORA_URL,required=true"`
	NexoraAPIKey  string `env:"NEXORA_API_KEY,required=true"`
	MailbridgeURL string `env:"MAILBRIDGE_URL,required=true"`
	MailbridgeKey string `env:"MAILBRIDGE_API_KEY,required=true"`
	TopupgoURL    string `env:"TOPUPGO_URL,required=true"`
	TopupgoAPIKey string `env:"TOPUPGO_API_KEY,required=true"`
	AirtouchURL   string `env:"AIRTOUCH_URL,required=true"`
	AirtouchKey   string `env:"AIRTOUCH_API_KEY,required=true"`

	// Operator alerting uses a sending path separate from customer traffic so
	// a provider outage cannot suppress the alert about itself.
	AlertSMSURL    string `env:"ALERT_SMS_URL"`
	AlertSMSAPIKey string `env:"ALERT_SMS_API_KEY"`
	AlertEmailURL  string `env:"ALERT_EMAIL_URL"`
	AlertEmailKey  string `env:"ALERT_EMAIL_API_KEY"`
	AlertPhone     string `env:"ALERT_PHONE"`
	AlertEmail     string `env:"ALERT_EMAIL"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
