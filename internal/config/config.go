package config

import (
	"strings"
	"time"
	_ "time/tzdata" // report timestamps need zone data on slim images

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

type Config struct {
	Addr     string // API bind address, e.g. ":8080"
	LogDir   string // rotating log directory; empty logs to stdout only
	LogLevel string

	CheckInterval time.Duration // timer period; 0 disables scheduled cycles
	BindingsFile  string        // optional YAML file of database bindings
	AppName       string        // application_name sent to every database

	StatusLang string // "en" | "zh"
	Timezone   string // zone used for report timestamps

	SlackWebhook    string
	AlertCooldown   time.Duration
	AlertOnRecovery bool

	TracingExporter string // none | stdout | otlp

	RunAPIKeys     []string // empty leaves POST /run-checks open
	RunRPM         int      // manual trigger rate limit per IP, 0 disables
	RunBurst       int
	AllowedOrigins []string
}

// FromEnv reads the service configuration from the process environment.
// Retry tuning (RETRY_COUNT, RETRY_DELAY) is not part of it: those values
// travel with the check-cycle environment, see LoadEnvironment.
func FromEnv() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CHECK_INTERVAL", "5m")
	v.SetDefault("APP_NAME", "DB-KeepAlive/3.0")
	v.SetDefault("STATUS_LANG", "en")
	v.SetDefault("TIMEZONE", "Asia/Shanghai")
	v.SetDefault("ALERT_COOLDOWN", "30m")
	v.SetDefault("ALERT_ON_RECOVERY", true)
	v.SetDefault("RUN_RPM", 0)
	v.SetDefault("RUN_BURST", 5)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("TRACING_EXPORTER", "none")

	cfg := Config{
		Addr:            strings.TrimSpace(v.GetString("ADDR")),
		LogDir:          strings.TrimSpace(v.GetString("LOG_DIR")),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		CheckInterval:   v.GetDuration("CHECK_INTERVAL"),
		BindingsFile:    strings.TrimSpace(v.GetString("BINDINGS_FILE")),
		AppName:         v.GetString("APP_NAME"),
		StatusLang:      strings.ToLower(strings.TrimSpace(v.GetString("STATUS_LANG"))),
		Timezone:        strings.TrimSpace(v.GetString("TIMEZONE")),
		SlackWebhook:    strings.TrimSpace(v.GetString("SLACK_WEBHOOK_URL")),
		AlertCooldown:   v.GetDuration("ALERT_COOLDOWN"),
		AlertOnRecovery: v.GetBool("ALERT_ON_RECOVERY"),
		TracingExporter: strings.ToLower(strings.TrimSpace(v.GetString("TRACING_EXPORTER"))),
		RunAPIKeys:      splitCSV(v.GetString("RUN_API_KEYS")),
		RunRPM:          v.GetInt("RUN_RPM"),
		RunBurst:        v.GetInt("RUN_BURST"),
		AllowedOrigins:  splitCSV(v.GetString("ALLOWED_ORIGINS")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.CheckInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.StatusLang, validation.In("en", "zh")),
		validation.Field(&c.Timezone, validation.Required, validation.By(validateTimezone)),
		validation.Field(&c.SlackWebhook, is.URL),
		validation.Field(&c.AlertCooldown, validation.Min(time.Duration(0))),
		validation.Field(&c.TracingExporter, validation.In("none", "stdout", "otlp")),
		validation.Field(&c.RunRPM, validation.Min(0)),
		validation.Field(&c.RunBurst, validation.Min(0)),
	)
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validateTimezone(value interface{}) error {
	tz, _ := value.(string)
	if _, err := time.LoadLocation(tz); err != nil {
		return validation.NewError("validation_invalid_timezone", "must be an IANA time zone name")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
