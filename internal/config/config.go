package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config collects every tunable the services read, resolved once
// from the environment (with .env support). Matching thresholds are
// handed to the matcher as an explicit struct by the caller, so the
// engine itself never touches the environment.
type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	CatalogAPIBaseURL    string
	CatalogAPIToken      string
	CatalogRateLimitRPS  int
	CatalogTimeoutMs     int
	CatalogLookbackHours int
	CatalogLookbackDays  int

	MatchOKThreshold     float64
	MatchReviewThreshold float64
	MatchGapThreshold    float64

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	ListenerProvider     string
	ListenerLabel        string
	ListenerIntervalSec  int
	ListenerFetchMax     int
	ListenerProcessBatch int
	ListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	return Config{
		DBPath:     envStr("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: envStr("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  envStr("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CatalogAPIBaseURL:    envStr("CATALOG_API_BASE_URL", "https://online.el-com.ru/api/v1"),
		CatalogAPIToken:      envStr("CATALOG_API_TOKEN", ""),
		CatalogRateLimitRPS:  envInt("CATALOG_RATE_LIMIT_RPS", 5),
		CatalogTimeoutMs:     envInt("CATALOG_TIMEOUT_MS", 30000),
		CatalogLookbackHours: envInt("CATALOG_INCREMENTAL_HOURS", 24),
		CatalogLookbackDays:  envInt("CATALOG_INCREMENTAL_DAYS", 2),

		MatchOKThreshold:     envFloat("MATCH_OK_THRESHOLD", 0.90),
		MatchReviewThreshold: envFloat("MATCH_REVIEW_THRESHOLD", 0.72),
		MatchGapThreshold:    envFloat("MATCH_GAP_THRESHOLD", 0.08),

		GmailClientID:     envStr("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: envStr("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  envStr("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: envStr("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     envStr("IMAP_HOST", ""),
		IMAPPort:     envInt("IMAP_PORT", 993),
		IMAPSecure:   envBool("IMAP_SECURE", true),
		IMAPUser:     envStr("IMAP_USER", ""),
		IMAPPassword: envStr("IMAP_PASSWORD", ""),
		IMAPMarkSeen: envBool("IMAP_MARK_SEEN", false),

		ListenerProvider:     envStr("LISTENER_PROVIDER", "gmail"),
		ListenerLabel:        envStr("LISTENER_LABEL", "INBOX"),
		ListenerIntervalSec:  envInt("LISTENER_INTERVAL_SEC", 30),
		ListenerFetchMax:     envInt("LISTENER_FETCH_MAX", 20),
		ListenerProcessBatch: envInt("LISTENER_PROCESS_BATCH", 20),
		ListenerAutoExport:   envBool("LISTENER_AUTO_EXPORT", true),
	}, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func envStr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := envStr(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := envStr(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(envStr(key, ""))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
