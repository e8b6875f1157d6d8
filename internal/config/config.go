package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		LeaderboardSize int    `yaml:"leaderboard_size"`
		LeaderboardTTL  string `yaml:"leaderboard_ttl"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret   string   `yaml:"jwt_secret"`
		ResetSecret string   `yaml:"reset_secret"`
		TokenTTL    string   `yaml:"token_ttl"`
		ResetTTL    string   `yaml:"reset_ttl"`
		AdminEmails []string `yaml:"admin_emails"`
	} `yaml:"auth"`
	Mail struct {
		SendGridKey string `yaml:"sendgrid_key"`
		From        string `yaml:"from"`
		FromName    string `yaml:"from_name"`
	} `yaml:"mail"`
}

// Load reads YAML config from path. A .env file in the working directory is
// loaded first and environment variables override secrets and endpoints.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Auth.ResetSecret, "RESET_SECRET")
	override(&cfg.Mail.SendGridKey, "SENDGRID_API_KEY")
	override(&cfg.Mail.From, "EMAIL_SENDER")
	if admins := os.Getenv("ADMIN_EMAILS"); admins != "" {
		cfg.Auth.AdminEmails = strings.Split(admins, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Quiz.LeaderboardSize <= 0 {
		cfg.Quiz.LeaderboardSize = 10
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "quiz:events"
	}
	if cfg.Mail.FromName == "" {
		cfg.Mail.FromName = "Roots Quiz"
	}
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
