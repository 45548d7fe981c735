package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel string
	Storage  string

	TelegramToken   string
	TelegramChatIDs []int64

	Settings Settings
}

// Settings are the accounting rules handed to the core explicitly.
type Settings struct {
	WithdrawalCommission decimal.Decimal
	MinWithdrawal        decimal.Decimal
	WithdrawalCooldown   time.Duration
	ClaimCooldown        time.Duration
	// ReferralRates holds the commission per depth, nearest referrer first.
	ReferralRates []decimal.Decimal
}

// DefaultSettings returns the production accounting constants.
func DefaultSettings() Settings {
	return Settings{
		WithdrawalCommission: decimal.RequireFromString("5.00"),
		MinWithdrawal:        decimal.RequireFromString("10.00"),
		WithdrawalCooldown:   12 * time.Hour,
		ClaimCooldown:        30 * time.Second,
		ReferralRates: []decimal.Decimal{
			decimal.RequireFromString("0.09"),
			decimal.RequireFromString("0.03"),
			decimal.RequireFromString("0.01"),
		},
	}
}

// Validate checks the settings are usable by the core.
func (s Settings) Validate() error {
	if s.WithdrawalCommission.IsNegative() {
		return fmt.Errorf("withdrawal commission must not be negative")
	}
	if s.MinWithdrawal.IsNegative() {
		return fmt.Errorf("minimum withdrawal must not be negative")
	}
	if s.WithdrawalCooldown < 0 || s.ClaimCooldown < 0 {
		return fmt.Errorf("cool-downs must not be negative")
	}
	if len(s.ReferralRates) != 3 {
		return fmt.Errorf("expected 3 referral rates, got %d", len(s.ReferralRates))
	}
	for i, r := range s.ReferralRates {
		if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("referral rate %d out of range: %s", i+1, r)
		}
	}
	return nil
}

func Load() (*Config, error) {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	storage := getEnv("STORAGE", StoragePostgres)
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("unknown STORAGE %q", storage)
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" && storage == StoragePostgres {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	chatIDs, err := parseChatIDs(os.Getenv("TELEGRAM_CHAT_IDS"))
	if err != nil {
		return nil, err
	}

	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	return &Config{
		DBSource:        dbSource,
		Port:            getEnv("SERVER_PORT", "8080"),
		Env:             getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Storage:         storage,
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatIDs: chatIDs,
		Settings:        settings,
	}, nil
}

func loadSettings() (Settings, error) {
	s := DefaultSettings()
	var err error

	if s.WithdrawalCommission, err = getEnvDecimal("WITHDRAWAL_COMMISSION", s.WithdrawalCommission); err != nil {
		return s, err
	}
	if s.MinWithdrawal, err = getEnvDecimal("MIN_WITHDRAWAL", s.MinWithdrawal); err != nil {
		return s, err
	}
	if s.WithdrawalCooldown, err = getEnvDuration("WITHDRAWAL_COOLDOWN", s.WithdrawalCooldown); err != nil {
		return s, err
	}
	if s.ClaimCooldown, err = getEnvDuration("CLAIM_COOLDOWN", s.ClaimCooldown); err != nil {
		return s, err
	}
	if raw := os.Getenv("REFERRAL_RATES"); raw != "" {
		rates := []decimal.Decimal{}
		for _, part := range strings.Split(raw, ",") {
			r, err := decimal.NewFromString(strings.TrimSpace(part))
			if err != nil {
				return s, fmt.Errorf("REFERRAL_RATES: %w", err)
			}
			rates = append(rates, r)
		}
		s.ReferralRates = rates
	}

	return s, s.Validate()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseChatIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_IDS: invalid chat id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
