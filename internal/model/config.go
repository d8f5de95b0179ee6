package model

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// MailServerConfig describes one IMAP or SMTP endpoint.
type MailServerConfig struct {
	Server   string `mapstructure:"server" yaml:"server"`
	Port     int    `mapstructure:"port" yaml:"port"`
	AuthType string `mapstructure:"authtype" yaml:"authtype"`
	User     string `mapstructure:"user" yaml:"user"`
	Secret   string `mapstructure:"secret" yaml:"secret"`
	Helo     string `mapstructure:"helo" yaml:"helo"`
	From     string `mapstructure:"from" yaml:"from"`
}

// Configured reports whether a server host has been set.
func (c MailServerConfig) Configured() bool {
	return c.Server != ""
}

// Addr returns host:port.
func (c MailServerConfig) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// MailConfig holds the mailbox and relay settings.
type MailConfig struct {
	// From is the address showbot sends mail as.
	From string `mapstructure:"from" yaml:"from"`

	// NewTaskAddress is the address friends send promo codes to.
	NewTaskAddress string `mapstructure:"new_task_address" yaml:"new_task_address"`

	// Mailbox is the IMAP mailbox scanned for inbound messages.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// Keep leaves handled messages in the mailbox instead of deleting them.
	Keep bool `mapstructure:"keep" yaml:"keep"`

	// PollIntervalSec is the delay between mailbox scans.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// NotifyWinners sends a confirmation mail to the sender of a redeemed code.
	NotifyWinners bool `mapstructure:"notify_winners" yaml:"notify_winners"`

	Outgoing MailServerConfig `mapstructure:"outgoing" yaml:"outgoing"`
	Incoming MailServerConfig `mapstructure:"incoming" yaml:"incoming"`
}

// CohumanConfig holds the API endpoint, OAuth credentials and the ids of
// the promo project and the showbot user.
type CohumanConfig struct {
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	APISecret         string  `mapstructure:"api_secret" yaml:"api_secret"`
	AccessToken       string  `mapstructure:"access_token" yaml:"access_token"`
	AccessSecret      string  `mapstructure:"access_secret" yaml:"access_secret"`
	ProjectID         int64   `mapstructure:"project_id" yaml:"project_id"`
	ShowbotUserID     int64   `mapstructure:"showbot_user_id" yaml:"showbot_user_id"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// HasConsumer reports whether the OAuth consumer key and secret are set.
func (c CohumanConfig) HasConsumer() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// StoreConfig holds the SQLite database location.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Environment string        `mapstructure:"-" yaml:"-"`
	Server      ServerConfig  `mapstructure:"server" yaml:"server"`
	Store       StoreConfig   `mapstructure:"store" yaml:"store"`
	Cohuman     CohumanConfig `mapstructure:"cohuman" yaml:"cohuman"`
	Mail        MailConfig    `mapstructure:"mail" yaml:"mail"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
}

// Environment returns the active environment name from SHOWBOT_ENV,
// defaulting to "development".
func Environment() string {
	if env := os.Getenv("SHOWBOT_ENV"); env != "" {
		return env
	}
	return "development"
}

// DefaultConfigPath returns ~/.config/showbot/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "showbot", "config.yaml")
}

// DefaultConfig returns the built-in profile for env.
func DefaultConfig(env string) (*AppConfig, error) {
	cfg := &AppConfig{
		Environment: env,
		Server:      ServerConfig{Listen: ":4567"},
		Store:       StoreConfig{Path: defaultStorePath()},
		Cohuman: CohumanConfig{
			BaseURL:           "http://api.sandbox.cohuman.com",
			ProjectID:         1,
			ShowbotUserID:     2,
			RequestsPerSecond: 5,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}

	switch env {
	case "production", "development":
		cfg.Mail = MailConfig{
			From:            "showbotapp@gmail.com",
			NewTaskAddress:  "showbotapp@gmail.com",
			Mailbox:         "INBOX",
			Keep:            true,
			PollIntervalSec: 20,
			Outgoing: MailServerConfig{
				Server:   "smtp.sendgrid.net",
				Port:     587,
				AuthType: "plain",
			},
			Incoming: MailServerConfig{
				Server:   "imap.gmail.com",
				Port:     993,
				AuthType: "plain",
			},
		}
	case "test":
		cfg.Store.Path = ":memory:"
		cfg.Mail = MailConfig{
			From:            "app@example.com",
			NewTaskAddress:  "new@example.com",
			Mailbox:         "INBOX",
			Keep:            true,
			PollIntervalSec: 20,
			Outgoing: MailServerConfig{
				Server:   "smtp.example.com",
				Port:     587,
				AuthType: "plain",
				User:     "testuser",
				Secret:   "password",
				Helo:     "example.com",
			},
			Incoming: MailServerConfig{
				Server: "imap.example.com",
				Port:   993,
				User:   "testuser",
				Secret: "password",
			},
		}
	default:
		return nil, fmt.Errorf("missing email config for environment %s", env)
	}

	return cfg, nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "showbot.db"
	}
	return filepath.Join(home, ".config", "showbot", "showbot.db")
}

// LoadConfig reads configuration for env from the YAML file at path using
// Viper, layered over the environment profile. SHOWBOT_* variables override
// file values (SHOWBOT_MAIL_INCOMING_USER for mail.incoming.user). A
// missing file is not an error.
func LoadConfig(path, env string) (*AppConfig, error) {
	if env == "" {
		env = Environment()
	}

	cfg, err := DefaultConfig(env)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SHOWBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, isPathErr := err.(*os.PathError)
			_, isNotFound := err.(viper.ConfigFileNotFoundError)
			if !isPathErr && !isNotFound {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Environment = env

	applyLegacyEnv(cfg)

	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *AppConfig) {
	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("cohuman.base_url", cfg.Cohuman.BaseURL)
	v.SetDefault("cohuman.api_key", cfg.Cohuman.APIKey)
	v.SetDefault("cohuman.api_secret", cfg.Cohuman.APISecret)
	v.SetDefault("cohuman.access_token", cfg.Cohuman.AccessToken)
	v.SetDefault("cohuman.access_secret", cfg.Cohuman.AccessSecret)
	v.SetDefault("cohuman.project_id", cfg.Cohuman.ProjectID)
	v.SetDefault("cohuman.showbot_user_id", cfg.Cohuman.ShowbotUserID)
	v.SetDefault("cohuman.requests_per_second", cfg.Cohuman.RequestsPerSecond)

	v.SetDefault("mail.from", cfg.Mail.From)
	v.SetDefault("mail.new_task_address", cfg.Mail.NewTaskAddress)
	v.SetDefault("mail.mailbox", cfg.Mail.Mailbox)
	v.SetDefault("mail.keep", cfg.Mail.Keep)
	v.SetDefault("mail.poll_interval_sec", cfg.Mail.PollIntervalSec)
	v.SetDefault("mail.notify_winners", cfg.Mail.NotifyWinners)

	for prefix, srv := range map[string]MailServerConfig{
		"mail.outgoing": cfg.Mail.Outgoing,
		"mail.incoming": cfg.Mail.Incoming,
	} {
		v.SetDefault(prefix+".server", srv.Server)
		v.SetDefault(prefix+".port", srv.Port)
		v.SetDefault(prefix+".authtype", srv.AuthType)
		v.SetDefault(prefix+".user", srv.User)
		v.SetDefault(prefix+".secret", srv.Secret)
		v.SetDefault(prefix+".helo", srv.Helo)
		v.SetDefault(prefix+".from", srv.From)
	}
}

// applyLegacyEnv honours the variable names used by the hosted deployment.
func applyLegacyEnv(cfg *AppConfig) {
	if v := os.Getenv("COHUMAN_API_KEY"); v != "" {
		cfg.Cohuman.APIKey = v
	}
	if v := os.Getenv("COHUMAN_API_SECRET"); v != "" {
		cfg.Cohuman.APISecret = v
	}
	if cfg.Environment == "test" {
		return
	}
	if v := os.Getenv("INCOMING_EMAIL_USER"); v != "" {
		cfg.Mail.Incoming.User = v
	}
	if v := os.Getenv("INCOMING_EMAIL_SECRET"); v != "" {
		cfg.Mail.Incoming.Secret = v
	}
}

// Missing lists the settings that are required for the mailbox and API
// but still empty.
func (c *AppConfig) Missing() []string {
	var missing []string
	if c.Cohuman.APIKey == "" {
		missing = append(missing, "COHUMAN_API_KEY")
	}
	if c.Cohuman.APISecret == "" {
		missing = append(missing, "COHUMAN_API_SECRET")
	}
	if c.Mail.Incoming.Configured() {
		if c.Mail.Incoming.User == "" {
			missing = append(missing, "INCOMING_EMAIL_USER")
		}
		if c.Mail.Incoming.Secret == "" {
			missing = append(missing, "INCOMING_EMAIL_SECRET")
		}
	}
	return missing
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Secrets are not written; they
// belong in the keyring.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	redacted := *cfg
	redacted.Cohuman.APISecret = ""
	redacted.Cohuman.AccessToken = ""
	redacted.Cohuman.AccessSecret = ""
	redacted.Mail.Incoming.Secret = ""
	redacted.Mail.Outgoing.Secret = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", redacted.Server)
	v.Set("store", redacted.Store)
	v.Set("cohuman", redacted.Cohuman)
	v.Set("mail", redacted.Mail)
	v.Set("log", redacted.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
