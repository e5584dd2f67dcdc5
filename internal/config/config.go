package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity provider (Clerk)
	ClerkIssuer        string
	ClerkJWKSURL       string // 未設定の場合はissuerから導出する
	ClerkWebhookSecret string // 未設定の場合、webhookエンドポイントは500を返す

	// OpenAI
	OpenAIAPIKey string
	OpenAIModel  string

	// Google Places
	PlacesAPIKey  string
	PlacesTimeout time.Duration

	// S3 (画像アップロード用presigned URL。未設定の場合この機能は無効)
	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string

	// Domain verification
	VerifyTimeout time.Duration

	// Rate Limit (req/min/user)
	RateLimitGeneral int
	RateLimitAIGen   int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ClerkIssuer = os.Getenv("CLERK_ISSUER")
	if cfg.ClerkIssuer == "" {
		missing = append(missing, "CLERK_ISSUER")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ClerkJWKSURL = getEnvString("CLERK_JWKS_URL", "")
	cfg.ClerkWebhookSecret = getEnvString("CLERK_WEBHOOK_SECRET", "")
	cfg.OpenAIAPIKey = getEnvString("OPENAI_API_KEY", "")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.PlacesAPIKey = getEnvString("GOOGLE_PLACES_API_KEY", "")
	cfg.PlacesTimeout = getEnvDuration("PLACES_TIMEOUT", 5*time.Second)
	cfg.S3Bucket = getEnvString("S3_BUCKET", "")
	cfg.S3Region = getEnvString("S3_REGION", "ap-southeast-2")
	cfg.S3AccessKey = getEnvString("S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvString("S3_SECRET_KEY", "")
	cfg.S3BaseEndpoint = getEnvString("S3_BASE_ENDPOINT", "")
	cfg.VerifyTimeout = getEnvDuration("VERIFY_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAIGen = getEnvInt("RATE_LIMIT_AI_GEN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
