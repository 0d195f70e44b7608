package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the full runtime configuration of the media API.
// Everything is environment-provided with sensible fallbacks; only the
// transfer credential is required (fail-fast like the rest of the stack).
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	CORSOrigins     []string
	RateLimitPerMin int

	// "ftp" (default) or "minio"
	StorageDriver string

	FTPHost        string
	FTPPort        int
	FTPUser        string
	FTPPassword    string
	FTPExplicitTLS bool
	FTPDialTimeout time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Base URL the uploaded assets are publicly served from.
	PublicBaseURL string

	// Origins the stream relay is permitted to contact (exact hostnames).
	AllowedStreamHosts []string

	// Cron spec for the background remote-store connectivity probe.
	ProbeSchedule string
}

// LoadConfig reads configuration from the environment (and an optional
// .env file in the working directory).
func LoadConfig() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("port", "8085")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", "")
	v.SetDefault("rate_limit_per_min", 120)

	v.SetDefault("storage_driver", "ftp")

	v.SetDefault("ftp_host", "storage.guidecms.com")
	v.SetDefault("ftp_port", 21)
	v.SetDefault("ftp_user", "media")
	v.SetDefault("ftp_password", "")
	v.SetDefault("ftp_explicit_tls", false)
	v.SetDefault("ftp_dial_timeout", "15s")

	v.SetDefault("minio_endpoint", "127.0.0.1:9000")
	v.SetDefault("minio_access_key", "minioadmin")
	v.SetDefault("minio_secret_key", "minioadmin")
	v.SetDefault("minio_bucket", "media-assets")
	v.SetDefault("minio_use_ssl", false)

	v.SetDefault("public_base_url", "https://assets.guidecms.com")
	v.SetDefault("allowed_stream_hosts", "assets.guidecms.com")

	v.SetDefault("probe_schedule", "*/15 * * * *")

	v.AutomaticEnv()

	cfg := &Config{
		Port:        v.GetString("port"),
		Environment: v.GetString("environment"),
		LogLevel:    v.GetString("log_level"),

		CORSOrigins:     splitList(v.GetString("cors_origins")),
		RateLimitPerMin: v.GetInt("rate_limit_per_min"),

		StorageDriver: strings.ToLower(v.GetString("storage_driver")),

		FTPHost:        v.GetString("ftp_host"),
		FTPPort:        v.GetInt("ftp_port"),
		FTPUser:        v.GetString("ftp_user"),
		FTPPassword:    v.GetString("ftp_password"),
		FTPExplicitTLS: v.GetBool("ftp_explicit_tls"),
		FTPDialTimeout: v.GetDuration("ftp_dial_timeout"),

		MinioEndpoint:  v.GetString("minio_endpoint"),
		MinioAccessKey: v.GetString("minio_access_key"),
		MinioSecretKey: v.GetString("minio_secret_key"),
		MinioBucket:    v.GetString("minio_bucket"),
		MinioUseSSL:    v.GetBool("minio_use_ssl"),

		PublicBaseURL: strings.TrimRight(v.GetString("public_base_url"), "/"),

		AllowedStreamHosts: splitList(v.GetString("allowed_stream_hosts")),

		ProbeSchedule: v.GetString("probe_schedule"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case "ftp":
		if c.FTPPassword == "" {
			return fmt.Errorf("CRITICAL: FTP_PASSWORD is required when STORAGE_DRIVER is ftp")
		}
	case "minio":
		if c.MinioSecretKey == "" {
			return fmt.Errorf("CRITICAL: MINIO_SECRET_KEY is required when STORAGE_DRIVER is minio")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (expected ftp or minio)", c.StorageDriver)
	}

	if c.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must not be empty")
	}

	return nil
}

// splitList parses a comma-separated env value into a trimmed slice.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
