package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventChannel           string
	JWTSecret              string
	SendgridAPIKey         string
	MailFromName           string
	MailFromAddress        string
	ScorerProvider         string
	ScorerURL              string
	ScorerTimeout          time.Duration
	OpenAIAPIKey           string
	OpenAIModel            string
	OpenAIBaseURL          string
	AlertSchedule          string // empty selects the scheduler's built-in weekly trigger
	AlertScheduleEnabled   bool
	UploadDispatchDelay    time.Duration
	UploadMaxSizeMB        int
	UploadRateLimit        int
	DispatchWorkers        int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether roster archiving credentials were supplied.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RISK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Student Risk API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "5000")
	v.SetDefault("events.channel", "risk")
	v.SetDefault("mail.from_name", "Student Success Team")
	v.SetDefault("scorer.provider", "http")
	v.SetDefault("scorer.url", "http://localhost:5001")
	v.SetDefault("scorer.timeout", "5s")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("alerts.schedule_enabled", false)
	v.SetDefault("alerts.upload_delay", "10s")
	v.SetDefault("alerts.workers", 2)
	v.SetDefault("upload.max_size_mb", 5)
	v.SetDefault("upload.rate_limit", 10)
	v.SetDefault("cloudinary.folder", "risk/rosters")

	scorerTimeout, err := parseDuration(v, "scorer.timeout", 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid scorer timeout: %w", err)
	}

	uploadDelay, err := parseDuration(v, "alerts.upload_delay", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid upload dispatch delay: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventChannel:           v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		SendgridAPIKey:         v.GetString("sendgrid.api_key"),
		MailFromName:           v.GetString("mail.from_name"),
		MailFromAddress:        v.GetString("mail.from_address"),
		ScorerProvider:         strings.ToLower(strings.TrimSpace(v.GetString("scorer.provider"))),
		ScorerURL:              strings.TrimRight(v.GetString("scorer.url"), "/"),
		ScorerTimeout:          scorerTimeout,
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIModel:            v.GetString("openai.model"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		AlertSchedule:          strings.TrimSpace(v.GetString("alerts.schedule")),
		AlertScheduleEnabled:   v.GetBool("alerts.schedule_enabled"),
		UploadDispatchDelay:    uploadDelay,
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		UploadRateLimit:        v.GetInt("upload.rate_limit"),
		DispatchWorkers:        v.GetInt("alerts.workers"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.DispatchWorkers <= 0 {
		cfg.DispatchWorkers = 2
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 5
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	return time.ParseDuration(raw)
}
