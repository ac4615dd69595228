package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/nyaruka/phonenumbers"
)

// Prefix namespaces every environment variable read by Load.
const Prefix = "BOOKINGCORE"

// Config captures environment driven configuration values for the booking core.
type Config struct {
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"ENV" default:"dev"`

	DatabaseDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseDSN    string `envconfig:"DB_DSN" default:"file:bookingcore.db"`

	// PublicBaseURL is the externally visible origin of the webhook, used to
	// reconstruct the signed URL behind proxies.
	PublicBaseURL      string `envconfig:"PUBLIC_BASE_URL"`
	TransportAuthToken string `envconfig:"TRANSPORT_AUTH_TOKEN"`

	// PhoneRegion is the ISO 3166 region used to read sender numbers that
	// carry no country code.
	PhoneRegion string `envconfig:"PHONE_REGION" default:"US"`

	TimeZone string         `envconfig:"TIME_ZONE" default:"UTC"`
	Location *time.Location `ignored:"true"`

	RemindAfter      time.Duration `envconfig:"REMIND_AFTER" default:"1h"`
	EscalateAfter    time.Duration `envconfig:"ESCALATE_AFTER" default:"2h"`
	AutoDeclineAfter time.Duration `envconfig:"AUTO_DECLINE_AFTER" default:"6h"`
	SeriesMinFuture  int           `envconfig:"SERIES_MIN_FUTURE" default:"4"`

	TrackerScanSpec string        `envconfig:"TRACKER_SCAN_SPEC" default:"@every 10m"`
	SeriesTopUpSpec string        `envconfig:"SERIES_TOP_UP_SPEC" default:"@daily"`
	JobTimeout      time.Duration `envconfig:"JOB_TIMEOUT" default:"5m"`

	RedisURL     string `envconfig:"REDIS_URL"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"bookingcore.notifications"`

	AccessCipher string `envconfig:"ACCESS_CIPHER" default:"age"`
	AccessKey    string `envconfig:"ACCESS_KEY"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
}

// Load parses configuration values from the current process environment.
//
// Defaults come from struct tags. Missing required values and unparseable or
// out of range values are reported together in one error, one clause per
// group.
func Load() (Config, error) {
	var cfg Config
	invalid := make([]string, 0, 2)

	parsed := true
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		var parseErr *envconfig.ParseError
		if !errors.As(err, &parseErr) {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		invalid = append(invalid, parseErr.KeyName)
		parsed = false
	}

	// envconfig stops at the first parse error, so required keys are read
	// from the environment directly.
	missing := make([]string, 0, 2)
	for _, name := range requiredKeys {
		if value, ok := os.LookupEnv(key(name)); !ok || strings.TrimSpace(value) == "" {
			missing = append(missing, key(name))
		}
	}

	if parsed {
		invalid = append(invalid, cfg.validate()...)
	}

	problems := make([]string, 0, 2)
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		problems = append(problems, fmt.Sprintf("環境変数の値が不正です: %s", strings.Join(invalid, ", ")))
	}
	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

var requiredKeys = []string{"TRANSPORT_AUTH_TOKEN", "ACCESS_KEY"}

func (c *Config) validate() []string {
	var invalid []string
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, key("HTTP_PORT"))
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		invalid = append(invalid, key("DB_DRIVER"))
	}
	if c.PublicBaseURL != "" {
		if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid = append(invalid, key("PUBLIC_BASE_URL"))
		}
	}
	c.PhoneRegion = strings.ToUpper(strings.TrimSpace(c.PhoneRegion))
	if phonenumbers.GetCountryCodeForRegion(c.PhoneRegion) == 0 {
		invalid = append(invalid, key("PHONE_REGION"))
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		invalid = append(invalid, key("TIME_ZONE"))
	} else {
		c.Location = loc
	}
	if c.RemindAfter <= 0 || c.EscalateAfter <= c.RemindAfter || c.AutoDeclineAfter <= c.EscalateAfter {
		invalid = append(invalid, key("REMIND_AFTER"), key("ESCALATE_AFTER"), key("AUTO_DECLINE_AFTER"))
	}
	if c.SeriesMinFuture <= 0 {
		invalid = append(invalid, key("SERIES_MIN_FUTURE"))
	}
	if c.JobTimeout <= 0 {
		invalid = append(invalid, key("JOB_TIMEOUT"))
	}
	switch c.AccessCipher {
	case "age", "box":
	default:
		invalid = append(invalid, key("ACCESS_CIPHER"))
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		invalid = append(invalid, key("LOG_LEVEL"))
	}
	return invalid
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	return logLevels[strings.ToLower(c.LogLevel)]
}

func key(name string) string {
	return Prefix + "_" + name
}
