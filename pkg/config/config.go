package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	AI       AIConfig
	Email    EmailConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
}

type StorageConfig struct {
	Bucket string
	Region string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/payments/success"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/payments/cancelled"),
		},
		AI: AIConfig{
			APIKey:  getEnv("AI_API_KEY", ""),
			Model:   getEnv("AI_MODEL", "claude-3-5-sonnet-latest"),
			BaseURL: getEnv("AI_BASE_URL", "https://api.anthropic.com"),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("EMAIL_FROM", "PeiPlan <no-reply@peiplan.app>"),
		},
		Storage: StorageConfig{
			Bucket: getEnv("S3_BUCKET", "peiplan-uploads"),
			Region: getEnv("S3_REGION", "sa-east-1"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
