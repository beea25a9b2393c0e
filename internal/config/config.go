package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr       string
	Password         string
	WebhookToken     string
	AnthropicBaseURL string
	AnthropicAPIKey  string
	ExtractModel     string
	HubSpotBaseURL   string
	HubSpotToken     string
	HubSpotPortalID  string
	GranolaBaseURL   string
	GranolaAPIToken  string
	GranolaCachePath string
	RequestTimeout   time.Duration
	ExtractTimeout   time.Duration
	LookupTimeout    time.Duration
	MaxJSONBodyBytes int64
	LogLevel         string
}

type envConfig struct {
	ListenAddr            string `env:"LISTEN_ADDR" envDefault:":8080"`
	Password              string `env:"PASSWORD"`
	WebhookToken          string `env:"WEBHOOK_TOKEN"`
	AnthropicBaseURL      string `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com/v1"`
	AnthropicAPIKey       string `env:"ANTHROPIC_API_KEY"`
	ExtractModel          string `env:"EXTRACT_MODEL" envDefault:"claude-sonnet-4-20250514"`
	HubSpotBaseURL        string `env:"HUBSPOT_BASE_URL" envDefault:"https://api.hubapi.com"`
	HubSpotToken          string `env:"HUBSPOT_ACCESS_TOKEN"`
	HubSpotPortalID       string `env:"HUBSPOT_PORTAL_ID" envDefault:"8634406"`
	GranolaBaseURL        string `env:"GRANOLA_BASE_URL" envDefault:"https://api.granola.ai"`
	GranolaAPIToken       string `env:"GRANOLA_API_TOKEN"`
	GranolaCachePath      string `env:"GRANOLA_CACHE_PATH"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	ExtractTimeoutSeconds int    `env:"EXTRACT_TIMEOUT_SECONDS" envDefault:"60"`
	LookupTimeoutSeconds  int    `env:"LOOKUP_TIMEOUT_SECONDS" envDefault:"30"`
	MaxJSONBodyBytes      int64  `env:"MAX_JSON_BODY_BYTES" envDefault:"10485760"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:       strings.TrimSpace(raw.ListenAddr),
		Password:         strings.TrimSpace(raw.Password),
		WebhookToken:     strings.TrimSpace(raw.WebhookToken),
		AnthropicBaseURL: strings.TrimRight(strings.TrimSpace(raw.AnthropicBaseURL), "/"),
		AnthropicAPIKey:  strings.TrimSpace(raw.AnthropicAPIKey),
		ExtractModel:     strings.TrimSpace(raw.ExtractModel),
		HubSpotBaseURL:   strings.TrimRight(strings.TrimSpace(raw.HubSpotBaseURL), "/"),
		HubSpotToken:     strings.TrimSpace(raw.HubSpotToken),
		HubSpotPortalID:  strings.TrimSpace(raw.HubSpotPortalID),
		GranolaBaseURL:   strings.TrimRight(strings.TrimSpace(raw.GranolaBaseURL), "/"),
		GranolaAPIToken:  strings.TrimSpace(raw.GranolaAPIToken),
		GranolaCachePath: strings.TrimSpace(raw.GranolaCachePath),
		RequestTimeout:   time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		ExtractTimeout:   time.Duration(raw.ExtractTimeoutSeconds) * time.Second,
		LookupTimeout:    time.Duration(raw.LookupTimeoutSeconds) * time.Second,
		MaxJSONBodyBytes: raw.MaxJSONBodyBytes,
		LogLevel:         strings.ToLower(strings.TrimSpace(raw.LogLevel)),
	}

	// The webhook shares the operator secret unless given its own.
	if cfg.WebhookToken == "" {
		cfg.WebhookToken = cfg.Password
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.Password == "" {
		return errors.New("PASSWORD must not be empty")
	}
	if c.AnthropicAPIKey == "" {
		return errors.New("ANTHROPIC_API_KEY must not be empty")
	}
	if c.AnthropicBaseURL == "" {
		return errors.New("ANTHROPIC_BASE_URL must not be empty")
	}
	if c.ExtractModel == "" {
		return errors.New("EXTRACT_MODEL must not be empty")
	}
	if c.HubSpotToken == "" {
		return errors.New("HUBSPOT_ACCESS_TOKEN must not be empty")
	}
	if c.HubSpotBaseURL == "" {
		return errors.New("HUBSPOT_BASE_URL must not be empty")
	}
	if c.HubSpotPortalID == "" {
		return errors.New("HUBSPOT_PORTAL_ID must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.ExtractTimeout <= 0 {
		return errors.New("EXTRACT_TIMEOUT_SECONDS must be > 0")
	}
	if c.LookupTimeout <= 0 {
		return errors.New("LOOKUP_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxJSONBodyBytes <= 0 {
		return errors.New("MAX_JSON_BODY_BYTES must be > 0")
	}
	return nil
}
