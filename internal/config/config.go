package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"delivery"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"delivery"`
	DBName     string `env:"DB_NAME" envDefault:"delivery"`

	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	// Number the formatted WhatsApp notifications are addressed to.
	WhatsAppRecipient string `env:"WHATSAPP_RECIPIENT" envDefault:"0557808626"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
