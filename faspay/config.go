package faspay

import (
	"os"

	"oasis-billing/utils"
)

// Config holds the merchant credentials and endpoints for one Faspay account.
// It is built once at startup and passed by value into the signers and client;
// nothing in this package reads the environment after construction.
type Config struct {
	MerchantID string
	Password   string // shared secret, acts as the SNAP client secret
	UserID     string
	PartnerID  string
	ChannelID  string
	BaseURL    string
	Origin     string

	// SimulationMode makes the client synthesize payment instruments without
	// any network call. Opt-in only, never entered as a fallback.
	SimulationMode bool

	// AllowFallbackLookup enables the degraded-mode admin lookup when a
	// callback references an unknown order id.
	AllowFallbackLookup bool
}

func ConfigFromEnv() Config {
	return Config{
		MerchantID:          utils.Getenv("FASPAY_MERCHANT_ID", "36619"),
		Password:            utils.Getenv("FASPAY_PASSWORD_KEY", "p@ssw0rd"),
		UserID:              utils.Getenv("FASPAY_USER_ID", "bot36619"),
		PartnerID:           utils.Getenv("FASPAY_PARTNER_ID", "36619"),
		ChannelID:           utils.Getenv("FASPAY_CHANNEL_ID", "77001"),
		BaseURL:             utils.Getenv("FASPAY_BASE_URL", "https://debit-sandbox.faspay.co.id/api"),
		Origin:              utils.Getenv("FASPAY_ORIGIN", "www.oasis-bi-pro.web.id"),
		SimulationMode:      os.Getenv("FASPAY_SIMULATION_MODE") == "true",
		AllowFallbackLookup: os.Getenv("FASPAY_ALLOW_FALLBACK_LOOKUP") != "false",
	}
}
