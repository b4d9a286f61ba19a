package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env           string
	Port          string
	DatabaseURL   string
	RedisURL      string
	JWTSecret     string
	CORSOrigins   []string
	InviteBaseURL string

	// Owner seed: the single root member created on first boot.
	OwnerName     string
	OwnerPhone    string
	OwnerEmail    string
	OwnerPassword string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	secret := viper.GetString("JWT_SECRET")
	if secret == "" {
		secret = viper.GetString("JWT_SECRET_KEY")
	}

	return &Config{
		Env:           env,
		Port:          port,
		DatabaseURL:   viper.GetString("DATABASE_URL"),
		RedisURL:      viper.GetString("REDIS_URL"),
		JWTSecret:     secret,
		CORSOrigins:   corsOrigins(viper.GetString("CORS_ORIGINS")),
		InviteBaseURL: inviteBaseURL(viper.GetString("INVITE_BASE_URL")),
		OwnerName:     defaultString(viper.GetString("OWNER_NAME"), "Team Owner"),
		OwnerPhone:    defaultString(viper.GetString("OWNER_PHONE"), "+91-9876543210"),
		OwnerEmail:    defaultString(viper.GetString("OWNER_EMAIL"), "owner@khpl.app"),
		OwnerPassword: viper.GetString("OWNER_PASSWORD"),
	}, nil
}

func corsOrigins(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func inviteBaseURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimRight(s, "/")
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
