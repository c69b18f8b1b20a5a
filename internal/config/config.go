package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"weighocr/internal/util"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	InboxDir   string
	VocabPath  string
	HTTPAddr   string
	Verbose    bool

	Thresholds Thresholds

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailQuery        string
	GmailRPS          float64
	GmailBurst        int

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	// IMAPSinceDays limits the unseen search to recent mail; 0 searches the whole mailbox.
	IMAPSinceDays int

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
	MailListenerWatchInbox   bool
}

// Thresholds are read once at startup and shared read-only by every parse.
type Thresholds struct {
	NetToleranceKg float64
	MaxWeightKg    float64
	MinWeightKg    float64
	Fuzzy          util.FuzzyThresholds

	// Confidence penalties; the score is 1 minus their sum, clamped to [0, 1].
	LabelInferencePenalty float64
	NetInferencePenalty   float64
	MismatchPenalty       float64
	FieldMissingPenalty   float64

	LowConfidence float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		NetToleranceKg:        1.0,
		MaxWeightKg:           100000.0,
		MinWeightKg:           0.0,
		Fuzzy:                 util.DefaultFuzzyThresholds,
		LabelInferencePenalty: 0.05,
		NetInferencePenalty:   0.03,
		MismatchPenalty:       0.10,
		FieldMissingPenalty:   0.05,
		LowConfidence:         0.8,
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	def := DefaultThresholds()
	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "weighocr.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		InboxDir:   getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		VocabPath:  getEnv("VOCAB_PATH", ""),
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		Verbose:    getEnvBool("LOG_VERBOSE", false),

		Thresholds: Thresholds{
			NetToleranceKg: getEnvFloat("NET_WEIGHT_TOLERANCE_KG", def.NetToleranceKg),
			MaxWeightKg:    getEnvFloat("MAX_WEIGHT_KG", def.MaxWeightKg),
			MinWeightKg:    getEnvFloat("MIN_WEIGHT_KG", def.MinWeightKg),
			Fuzzy: util.FuzzyThresholds{
				Long:        getEnvFloat("LABEL_FUZZY_THRESHOLD", def.Fuzzy.Long),
				Short:       getEnvFloat("SHORT_LABEL_THRESHOLD", def.Fuzzy.Short),
				ShortLength: getEnvInt("SHORT_LABEL_LENGTH", def.Fuzzy.ShortLength),
			},
			LabelInferencePenalty: def.LabelInferencePenalty,
			NetInferencePenalty:   def.NetInferencePenalty,
			MismatchPenalty:       def.MismatchPenalty,
			FieldMissingPenalty:   def.FieldMissingPenalty,
			LowConfidence:         getEnvFloat("LOW_CONFIDENCE_THRESHOLD", def.LowConfidence),
		},

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailQuery:        getEnv("GMAIL_QUERY", "has:attachment"),
		GmailRPS:          getEnvFloat("GMAIL_RPS", 2.0),
		GmailBurst:        getEnvInt("GMAIL_BURST", 5),

		IMAPHost:      getEnv("IMAP_HOST", ""),
		IMAPPort:      getEnvInt("IMAP_PORT", 993),
		IMAPSecure:    getEnvBool("IMAP_SECURE", true),
		IMAPUser:      getEnv("IMAP_USER", ""),
		IMAPPassword:  getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen:  getEnvBool("IMAP_MARK_SEEN", false),
		IMAPSinceDays: getEnvInt("IMAP_SINCE_DAYS", 0),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
		MailListenerWatchInbox:   getEnvBool("MAIL_LISTENER_WATCH_INBOX", false),
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects threshold combinations that would make every record fail or pass.
func (t Thresholds) Validate() error {
	if t.MinWeightKg < 0 || t.MaxWeightKg <= t.MinWeightKg {
		return fmt.Errorf("invalid weight range: min=%v max=%v", t.MinWeightKg, t.MaxWeightKg)
	}
	if t.NetToleranceKg < 0 {
		return fmt.Errorf("invalid NET_WEIGHT_TOLERANCE_KG: %v", t.NetToleranceKg)
	}
	for name, v := range map[string]float64{
		"LABEL_FUZZY_THRESHOLD":    t.Fuzzy.Long,
		"SHORT_LABEL_THRESHOLD":    t.Fuzzy.Short,
		"LOW_CONFIDENCE_THRESHOLD": t.LowConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid %s: %v", name, v)
		}
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Vocabulary returns the built-in tables, overlaid with VOCAB_PATH when it is set.
func (c Config) Vocabulary() (Vocabulary, error) {
	if strings.TrimSpace(c.VocabPath) == "" {
		return DefaultVocabulary(), nil
	}
	return LoadVocabulary(c.VocabPath)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
