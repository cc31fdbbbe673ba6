package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	TickEvery    time.Duration
	HistoryDepth int
	SeedCatalog  bool

	VaultCap             int
	ShippingCap          int
	TradeInCooldown      time.Duration
	StartingBalanceCoins int64
	TradeInHaircut       float64

	ShotLimitPerMinute  int
	CoachLimitPerMinute int

	AdvisorBaseURL     string
	AdvisorAPIKey      string
	AdvisorModel       string
	AdvisorOutboundRPS float64
	AdvisorTemperature float64
	AdvisorMaxTokens   int
}

type SimConfig struct {
	DatabaseURL  string
	Seed         string
	Steps        int
	TickEvery    time.Duration
	HistoryDepth int
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() APIConfig {
	addr := strings.TrimSpace(os.Getenv("PORT"))
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("PRICEHUNT_API_ADDR", ":8080")
	}

	return APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  envIntDefault("PRICEHUNT_DB_MAX_CONNS", 16),
		DBMinConns:  envIntDefault("PRICEHUNT_DB_MIN_CONNS", 2),

		TickEvery:    envDurationDefault("PRICEHUNT_TICK_EVERY", 250*time.Millisecond),
		HistoryDepth: envIntDefault("PRICEHUNT_HISTORY_DEPTH", 64),
		SeedCatalog:  envBoolDefault("PRICEHUNT_SEED_CATALOG", true),

		VaultCap:             envIntDefault("PRICEHUNT_VAULT_CAP", 20),
		ShippingCap:          envIntDefault("PRICEHUNT_SHIPPING_CAP", 3),
		TradeInCooldown:      envDurationDefault("PRICEHUNT_TRADE_IN_COOLDOWN", 60*time.Second),
		StartingBalanceCoins: int64(envIntDefault("PRICEHUNT_STARTING_BALANCE_COINS", 500)),
		TradeInHaircut:       envFloatDefault("PRICEHUNT_TRADE_IN_HAIRCUT", 0.10),

		ShotLimitPerMinute:  envIntDefault("PRICEHUNT_SHOT_LIMIT_PER_MINUTE", 30),
		CoachLimitPerMinute: envIntDefault("PRICEHUNT_COACH_LIMIT_PER_MINUTE", 8),

		AdvisorBaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("PRICEHUNT_ADVISOR_URL")), "/"),
		AdvisorAPIKey:      strings.TrimSpace(os.Getenv("PRICEHUNT_ADVISOR_API_KEY")),
		AdvisorModel:       envDefault("PRICEHUNT_ADVISOR_MODEL", "coach-small"),
		AdvisorOutboundRPS: envFloatDefault("PRICEHUNT_ADVISOR_OUTBOUND_RPS", 1.0),
		AdvisorTemperature: envFloatDefault("PRICEHUNT_ADVISOR_TEMPERATURE", 0.4),
		AdvisorMaxTokens:   envIntDefault("PRICEHUNT_ADVISOR_MAX_TOKENS", 256),
	}
}

func LoadSimFromEnv() SimConfig {
	return SimConfig{
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Seed:         envDefault("PRICEHUNT_SIM_SEED", "pricehunt"),
		Steps:        envIntDefault("PRICEHUNT_SIM_STEPS", 2000),
		TickEvery:    envDurationDefault("PRICEHUNT_SIM_TICK_EVERY", 250*time.Millisecond),
		HistoryDepth: envIntDefault("PRICEHUNT_HISTORY_DEPTH", 64),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("PHT_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
