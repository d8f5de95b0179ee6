// Package setup is the interactive first-run form behind "showbot setup".
package setup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/showbot/internal/credential"
	"github.com/nhle/showbot/internal/model"
)

// Values holds the form fields as typed.
type Values struct {
	BaseURL   string
	APIKey    string
	APISecret string
	ProjectID string

	NewTaskAddress string
	IncomingUser   string
	IncomingSecret string

	OutgoingServer string
	OutgoingPort   string
	OutgoingUser   string
	OutgoingSecret string
}

// ValuesFrom prefills the form from cfg. Secrets are left blank so that an
// empty answer keeps the stored one.
func ValuesFrom(cfg *model.AppConfig) Values {
	return Values{
		BaseURL:        cfg.Cohuman.BaseURL,
		ProjectID:      strconv.FormatInt(cfg.Cohuman.ProjectID, 10),
		NewTaskAddress: cfg.Mail.NewTaskAddress,
		IncomingUser:   cfg.Mail.Incoming.User,
		OutgoingServer: cfg.Mail.Outgoing.Server,
		OutgoingPort:   strconv.Itoa(cfg.Mail.Outgoing.Port),
		OutgoingUser:   cfg.Mail.Outgoing.User,
	}
}

// NewForm builds the setup form bound to v.
func NewForm(v *Values) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cohuman API URL").
				Placeholder("http://api.sandbox.cohuman.com").
				Value(&v.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API Key").
				Description("Consumer key for the showbot app; leave blank to keep the stored one").
				EchoMode(huh.EchoModePassword).
				Value(&v.APIKey),
			huh.NewInput().
				Title("API Secret").
				EchoMode(huh.EchoModePassword).
				Value(&v.APISecret),
			huh.NewInput().
				Title("Promo project id").
				Description("Project whose tasks hold the promo codes").
				Value(&v.ProjectID).
				Validate(validateNumber("Project id")),
		).Title("Cohuman"),
		huh.NewGroup(
			huh.NewInput().
				Title("Promo address").
				Description("Where friends send their codes").
				Placeholder("showbotapp@gmail.com").
				Value(&v.NewTaskAddress).
				Validate(validateRequired("Promo address")),
			huh.NewInput().
				Title("IMAP user").
				Value(&v.IncomingUser).
				Validate(validateRequired("IMAP user")),
			huh.NewInput().
				Title("IMAP password").
				EchoMode(huh.EchoModePassword).
				Value(&v.IncomingSecret),
		).Title("Incoming mail"),
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP server").
				Placeholder("smtp.sendgrid.net").
				Value(&v.OutgoingServer),
			huh.NewInput().
				Title("SMTP port").
				Value(&v.OutgoingPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP user").
				Value(&v.OutgoingUser),
			huh.NewInput().
				Title("SMTP password").
				EchoMode(huh.EchoModePassword).
				Value(&v.OutgoingSecret),
		).Title("Outgoing mail"),
	).WithTheme(huh.ThemeCharm())
}

// Apply copies the answers into cfg and stores non-empty secrets in vault.
func Apply(v Values, cfg *model.AppConfig, vault credential.Vault) error {
	projectID, err := strconv.ParseInt(strings.TrimSpace(v.ProjectID), 10, 64)
	if err != nil {
		return fmt.Errorf("project id: %w", err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(v.OutgoingPort))
	if err != nil {
		return fmt.Errorf("SMTP port: %w", err)
	}

	cfg.Cohuman.BaseURL = strings.TrimSpace(v.BaseURL)
	cfg.Cohuman.ProjectID = projectID
	cfg.Mail.NewTaskAddress = strings.TrimSpace(v.NewTaskAddress)
	cfg.Mail.Incoming.User = strings.TrimSpace(v.IncomingUser)
	cfg.Mail.Outgoing.Server = strings.TrimSpace(v.OutgoingServer)
	cfg.Mail.Outgoing.Port = port
	cfg.Mail.Outgoing.User = strings.TrimSpace(v.OutgoingUser)

	secrets := []struct {
		key   string
		value string
		field *string
	}{
		{credential.KeyCohumanAPIKey, v.APIKey, &cfg.Cohuman.APIKey},
		{credential.KeyCohumanAPISecret, v.APISecret, &cfg.Cohuman.APISecret},
		{credential.KeyIncomingSecret, v.IncomingSecret, &cfg.Mail.Incoming.Secret},
		{credential.KeyOutgoingSecret, v.OutgoingSecret, &cfg.Mail.Outgoing.Secret},
	}
	for _, s := range secrets {
		if s.value == "" {
			continue
		}
		if err := vault.Set(s.key, s.value); err != nil {
			return err
		}
		*s.field = s.value
	}

	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validateNumber(fieldName string) func(string) error {
	return func(s string) error {
		if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
			return fmt.Errorf("%s must be a number", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
