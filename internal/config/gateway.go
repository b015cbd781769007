package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/iliyamo/kids-class-booking/internal/tpay"
)

// GatewayConfig carries the Tpay credentials and the public URL used to
// build return and notification addresses.
type GatewayConfig struct {
	Env          string        `envconfig:"TPAY_ENV" default:"sandbox"`
	BaseURL      string        `envconfig:"TPAY_BASE_URL"`
	ClientID     string        `envconfig:"TPAY_CLIENT_ID"`
	ClientSecret string        `envconfig:"TPAY_CLIENT_SECRET"`
	MD5Secret    string        `envconfig:"TPAY_MD5_SECRET"`
	AppURL       string        `envconfig:"APP_URL" default:"http://localhost:8080"`
	MaxAttempts  uint          `envconfig:"TPAY_MAX_ATTEMPTS" default:"3"`
	Timeout      time.Duration `envconfig:"TPAY_TIMEOUT" default:"15s"`
}

// LoadGateway processes the TPAY_* variables.
func LoadGateway() (GatewayConfig, error) {
	var cfg GatewayConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return GatewayConfig{}, err
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return cfg, nil
}

// Enabled reports whether online payments can be started. Without
// credentials checkout endpoints answer 503.
func (g GatewayConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// WebhookEnabled reports whether notifications can be verified.
func (g GatewayConfig) WebhookEnabled() bool {
	return g.MD5Secret != ""
}

// ResolvedBaseURL returns TPAY_BASE_URL when set, otherwise the endpoint
// for TPAY_ENV.
func (g GatewayConfig) ResolvedBaseURL() string {
	if g.BaseURL != "" {
		return strings.TrimRight(g.BaseURL, "/")
	}
	if strings.EqualFold(g.Env, "production") || strings.EqualFold(g.Env, "prod") {
		return tpay.ProductionBaseURL
	}
	return tpay.SandboxBaseURL
}
