package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the support API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	EventChannelBase    string
	JWTSecret           string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	FCMServerKey        string
	FCMEndpoint         string
	PushTimeout         time.Duration
	MaxUploadMB         int
	OpenAIAPIKey        string
	AIModel             string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LUMORA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Lumora Support API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.channel_base", "lumora")
	v.SetDefault("cloudinary.folder", "lumora/support")
	v.SetDefault("push.timeout", "10s")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("ai.model", "gpt-4o-mini")

	pushTimeout, err := time.ParseDuration(v.GetString("push.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid push timeout: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		EventChannelBase:    v.GetString("event.channel_base"),
		JWTSecret:           v.GetString("jwt.secret"),
		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:    v.GetString("cloudinary.folder"),
		FCMServerKey:        v.GetString("fcm.server_key"),
		FCMEndpoint:         v.GetString("fcm.endpoint"),
		PushTimeout:         pushTimeout,
		MaxUploadMB:         v.GetInt("upload.max_mb"),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		AIModel:             v.GetString("ai.model"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}

	return cfg, nil
}
