package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

const (
	DefaultSMTPHost = "smtp.mail.ru"
	DefaultSMTPPort = 465
	DefaultLookback = time.Hour
)

type DatabaseConfig struct {
	DSN      string `json:"dsn" toml:"dsn"`
	Host     string `json:"host" toml:"host" validate:"required_without=DSN"`
	Port     int    `json:"port" toml:"port"`
	DBName   string `json:"dbname" toml:"dbname"`
	User     string `json:"user" toml:"user"`
	Password string `json:"password" toml:"password"`
	SSLMode  string `json:"sslmode" toml:"sslmode"`
	Table    string `json:"table" toml:"table"`
}

type EmailConfig struct {
	Sender    string `json:"sender" toml:"sender" validate:"required"`
	Password  string `json:"password" toml:"password"`
	Recipient string `json:"recipient" toml:"recipient" validate:"required"`
	SMTPHost  string `json:"smtp_host" toml:"smtp_host"`
	SMTPPort  int    `json:"smtp_port" toml:"smtp_port"`
}

type GoogleSheetsConfig struct {
	CredsPath     string `json:"creds_path" toml:"creds_path" validate:"required"`
	SheetName     string `json:"sheet_name" toml:"sheet_name" validate:"required_without=SpreadsheetID"`
	SpreadsheetID string `json:"spreadsheet_id" toml:"spreadsheet_id"`
}

type APIConfig struct {
	Client    string `json:"client" toml:"client"`
	ClientKey string `json:"client_key" toml:"client_key"`
	URL       string `json:"url" toml:"url" validate:"required"`
}

type WindowConfig struct {
	Start string `json:"start" toml:"start" validate:"required_with=End"`
	End   string `json:"end" toml:"end" validate:"required_with=Start"`
}

type ScheduleConfig struct {
	Cron     string `json:"cron" toml:"cron"`
	Lookback string `json:"lookback" toml:"lookback"`
}

type MetricsConfig struct {
	PushgatewayURL string `json:"pushgateway_url" toml:"pushgateway_url"`
	Job            string `json:"job" toml:"job"`
	Listen         string `json:"listen" toml:"listen"`
}

type RedisConfig struct {
	URL     string `json:"url" toml:"url"`
	Prefix  string `json:"prefix" toml:"prefix"`
	History int    `json:"history" toml:"history"`
}

// Config mirrors the config document. The four pointer sections are
// mandatory; the rest is optional.
type Config struct {
	Database     *DatabaseConfig     `json:"database" toml:"database" validate:"required"`
	Email        *EmailConfig        `json:"email" toml:"email" validate:"required"`
	GoogleSheets *GoogleSheetsConfig `json:"google_sheets" toml:"google_sheets" validate:"required"`
	API          *APIConfig          `json:"api_config" toml:"api_config" validate:"required"`

	ReportWindow WindowConfig   `json:"report_window" toml:"report_window"`
	Schedule     ScheduleConfig `json:"schedule" toml:"schedule"`
	Metrics      MetricsConfig  `json:"metrics" toml:"metrics"`
	Redis        RedisConfig    `json:"redis" toml:"redis"`
}

var ErrMissingSection = errors.New("missing required configuration section")

// LoadConfig reads a JSON document, or TOML when the file ends in .toml,
// and checks that every required section is present.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &config)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&config)
	}
	if err != nil {
		return nil, fmt.Errorf("error decoding config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrMissingSection, strings.Join(fields, ", "))
}

func (c *Config) applyDefaults() {
	if c.Email.SMTPHost == "" {
		c.Email.SMTPHost = DefaultSMTPHost
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = DefaultSMTPPort
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "attemptlog"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "attemptlog"
	}
	if c.Redis.History <= 0 {
		c.Redis.History = 30
	}
}

// ConnectionString returns the configured DSN, or builds a lib/pq keyword DSN from the
// individual connection parameters.
func (d *DatabaseConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}

	var parts []string
	add := func(key, value string) {
		if value == "" {
			return
		}
		parts = append(parts, key+"="+quoteDSNValue(value))
	}
	add("host", d.Host)
	if d.Port != 0 {
		add("port", fmt.Sprint(d.Port))
	}
	add("dbname", d.DBName)
	add("user", d.User)
	add("password", d.Password)
	add("sslmode", d.SSLMode)
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Window resolves the report window: explicit start/end win over the
// report_window section, which wins over the hour ending at now.
func (c *Config) Window(start, end string, now time.Time) (models.Window, error) {
	switch {
	case start != "" || end != "":
		if start == "" || end == "" {
			return models.Window{}, fmt.Errorf("both window start and end must be given")
		}
		return models.ParseWindow(start, end)
	case c.ReportWindow.Start != "":
		return models.ParseWindow(c.ReportWindow.Start, c.ReportWindow.End)
	default:
		return models.LastWindow(now, DefaultLookback), nil
	}
}

// Lookback is how far back a scheduled run reaches.
func (c *Config) Lookback() (time.Duration, error) {
	if c.Schedule.Lookback == "" {
		return DefaultLookback, nil
	}
	d, err := time.ParseDuration(c.Schedule.Lookback)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule lookback %q: %w", c.Schedule.Lookback, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("schedule lookback must be positive, got %s", d)
	}
	return d, nil
}

// Redacted returns a copy suitable for logging.
func (c *Config) Redacted() Config {
	out := *c
	db := *c.Database
	db.Password = redact(db.Password)
	db.DSN = redactURL(db.DSN)
	out.Database = &db

	email := *c.Email
	email.Password = redact(email.Password)
	out.Email = &email

	api := *c.API
	api.ClientKey = redact(api.ClientKey)
	out.API = &api

	out.Redis.URL = redactURL(c.Redis.URL)
	return out
}

// String renders the redacted config as JSON for startup logs.
func (c *Config) String() string {
	data, err := json.Marshal(c.Redacted())
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "xxxxx"
}
