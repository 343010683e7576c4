package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field maps 1:1 to an env var.
type Config struct {
	// Local API served to the dashboard
	Port        int      `mapstructure:"PORT"`
	Env         string   `mapstructure:"APP_ENV"` // development | production
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Remote back-office API
	APIBaseURL string        `mapstructure:"API_BASE_URL"`
	APIToken   string        `mapstructure:"API_TOKEN"`
	APITimeout time.Duration `mapstructure:"API_TIMEOUT"`

	// Circuit breaker in front of session open/close
	CBFailureThreshold int           `mapstructure:"CB_FAILURE_THRESHOLD"`
	CBOpenTimeout      time.Duration `mapstructure:"CB_OPEN_TIMEOUT"`

	// Connectivity probe
	ProbeInterval time.Duration `mapstructure:"PROBE_INTERVAL"`
	ProbeTimeout  time.Duration `mapstructure:"PROBE_TIMEOUT"`

	// Offline queue
	QueueMaxRetries  int    `mapstructure:"QUEUE_MAX_RETRIES"`
	QueueReplayOrder string `mapstructure:"QUEUE_REPLAY_ORDER"` // fifo | reverse

	// Cash sessions
	SessionQueryFailOpen bool   `mapstructure:"SESSION_QUERY_FAIL_OPEN"`
	Locale               string `mapstructure:"LOCALE"`

	// Durable local storage
	StoreDriver string `mapstructure:"STORE_DRIVER"` // badger | sqlite | redis | memory
	StorePath   string `mapstructure:"STORE_PATH"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	// Mirror dead letters on a redis list for back-office monitoring
	DLQMirrorRedis bool `mapstructure:"DLQ_MIRROR_REDIS"`

	// SMTP alerts for dead-lettered requests
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	AlertEmail   string `mapstructure:"ALERT_EMAIL"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	// Optional .env file for local development; does not fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.QueueReplayOrder = strings.ToLower(strings.TrimSpace(cfg.QueueReplayOrder))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8090)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("API_BASE_URL", "http://localhost:8000/api")
	v.SetDefault("API_TOKEN", "")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("CB_FAILURE_THRESHOLD", 5)
	v.SetDefault("CB_OPEN_TIMEOUT", "30s")
	v.SetDefault("PROBE_INTERVAL", "5s")
	v.SetDefault("PROBE_TIMEOUT", "3s")
	v.SetDefault("QUEUE_MAX_RETRIES", 3)
	v.SetDefault("QUEUE_REPLAY_ORDER", "fifo")
	v.SetDefault("SESSION_QUERY_FAIL_OPEN", true)
	v.SetDefault("LOCALE", "en-US")
	v.SetDefault("STORE_DRIVER", "badger")
	v.SetDefault("STORE_PATH", "/var/lib/dutyfreepos/store")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("DLQ_MIRROR_REDIS", false)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("ALERT_EMAIL", "")
}

// splitList accepts both a proper list and a single comma separated value,
// which is what a plain env var produces.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// SMTPEnabled reports whether dead-letter alerts can be mailed.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.AlertEmail != ""
}
