package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/trader"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Duration accepts "5s"-style strings in config.json.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(raw []byte) error {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type Config struct {
	Pair   string
	Source string

	InitialBalances struct {
		Base  decimal.Decimal
		Quote decimal.Decimal
	}

	Trader struct {
		MakeRatio   decimal.Decimal
		Span        decimal.Decimal
		Bids        int
		Asks        int
		MinAmount   decimal.Decimal
		PricePlaces int32
		BasePlaces  int32
		QuotePlaces int32
	}

	RefreshInterval Duration
	DisplayInterval Duration
	// FetchTimeout bounds one snapshot fetch. Zero means the refresh interval.
	FetchTimeout Duration

	Deversifi struct {
		BaseUrl           string
		Depth             int
		RequestsPerSecond float64
	}

	Luno struct {
		ApiKey    string
		ApiSecret string
	}

	Discord struct {
		WebhookUrl string
	}

	Server struct {
		Enabled bool
		Port    int
	}

	Journal struct {
		Path string
	}

	LogDir string
}

// Default mirrors the constants the bot has always shipped with.
func Default() *Config {
	cfg := &Config{
		Pair:            "ETH:USDT",
		Source:          "deversifi",
		RefreshInterval: Duration(5 * time.Second),
		DisplayInterval: Duration(30 * time.Second),
		LogDir:          "logs",
	}

	cfg.InitialBalances.Base = decimal.NewFromInt(10)
	cfg.InitialBalances.Quote = decimal.NewFromInt(2000)

	params := trader.DefaultParams()
	cfg.Trader.MakeRatio = params.MakeRatio
	cfg.Trader.Span = params.Span
	cfg.Trader.Bids = params.MaintainBids
	cfg.Trader.Asks = params.MaintainAsks
	cfg.Trader.MinAmount = params.MinAmount
	cfg.Trader.PricePlaces = params.PricePlaces
	cfg.Trader.BasePlaces = params.BasePlaces
	cfg.Trader.QuotePlaces = params.QuotePlaces

	cfg.Deversifi.BaseUrl = "https://api.deversifi.com"
	cfg.Deversifi.Depth = 25
	cfg.Deversifi.RequestsPerSecond = 1

	cfg.Server.Port = 8080
	cfg.Journal.Path = "data/journal.db"

	return cfg
}

// Load reads a .env file if present, then path over the defaults, then environment overrides.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	configBytes, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(configBytes, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	if value := os.Getenv("PAIR"); value != "" {
		cfg.Pair = value
	}
	if value := os.Getenv("MARKET_SOURCE"); value != "" {
		cfg.Source = value
	}
	if value := os.Getenv("LUNO_API_KEY"); value != "" {
		cfg.Luno.ApiKey = value
	}
	if value := os.Getenv("LUNO_API_SECRET"); value != "" {
		cfg.Luno.ApiSecret = value
	}
	if value := os.Getenv("DISCORD_WEBHOOK_URL"); value != "" {
		cfg.Discord.WebhookUrl = value
	}
	if value := os.Getenv("PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", value, err)
		}
		cfg.Server.Port = port
		cfg.Server.Enabled = true
	}
	return nil
}

func (cfg *Config) Validate() error {
	if cfg.Pair == "" {
		return errors.New("pair must be set")
	}
	if _, err := domain.ParseSource(cfg.Source); err != nil {
		return err
	}
	if cfg.InitialBalances.Base.IsNegative() || cfg.InitialBalances.Quote.IsNegative() {
		return errors.New("initial balances must not be negative")
	}
	if cfg.RefreshInterval <= 0 || cfg.DisplayInterval <= 0 {
		return errors.New("refresh and display intervals must be positive")
	}
	if cfg.FetchTimeout < 0 {
		return errors.New("fetch timeout must not be negative")
	}
	if cfg.Server.Enabled && (cfg.Server.Port <= 0 || cfg.Server.Port > 65535) {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return cfg.TraderParams().Validate()
}

func (cfg *Config) SourceEnum() domain.SourceEnum {
	source, _ := domain.ParseSource(cfg.Source)
	return source
}

func (cfg *Config) InitialBalancesValue() domain.Balances {
	return domain.Balances{Base: cfg.InitialBalances.Base, Quote: cfg.InitialBalances.Quote}
}

func (cfg *Config) TraderParams() trader.Params {
	return trader.Params{
		Span:         cfg.Trader.Span,
		MakeRatio:    cfg.Trader.MakeRatio,
		MaintainBids: cfg.Trader.Bids,
		MaintainAsks: cfg.Trader.Asks,
		MinAmount:    cfg.Trader.MinAmount,
		PricePlaces:  cfg.Trader.PricePlaces,
		BasePlaces:   cfg.Trader.BasePlaces,
		QuotePlaces:  cfg.Trader.QuotePlaces,
	}
}

func (cfg *Config) FetchTimeoutValue() time.Duration {
	if cfg.FetchTimeout == 0 {
		return time.Duration(cfg.RefreshInterval)
	}
	return time.Duration(cfg.FetchTimeout)
}
