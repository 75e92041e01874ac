package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"market_sim/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedEntry is one resting order of the initial book.
type SeedEntry struct {
	ID       string          `yaml:"id"`
	Price    decimal.Decimal `yaml:"price"`
	Quantity decimal.Decimal `yaml:"quantity"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		InitialPrice decimal.Decimal `yaml:"initial_price"`
		Supply       decimal.Decimal `yaml:"supply"`
		Seed         struct {
			Bids []SeedEntry `yaml:"bids"`
			Asks []SeedEntry `yaml:"asks"`
		} `yaml:"seed"`
	} `yaml:"market"`

	Engine struct {
		InboxSize int    `yaml:"inbox_size"`
		DumpPath  string `yaml:"dump_path"`
	} `yaml:"engine"`

	Activity struct {
		Capacity int    `yaml:"capacity"`
		DBPath   string `yaml:"db_path"` // empty disables the journal
	} `yaml:"activity"`

	Feed struct {
		ListenAddr string `yaml:"listen_addr"` // empty disables the feed
	} `yaml:"feed"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the stock simulation: price 10, supply 1000 and a
// three-level book on each side.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "market_sim"
	cfg.App.Version = "dev"

	cfg.Market.InitialPrice = decimal.NewFromInt(10)
	cfg.Market.Supply = decimal.NewFromInt(1000)
	cfg.Market.Seed.Bids = []SeedEntry{
		{ID: "b1", Price: decimal.NewFromInt(9), Quantity: decimal.NewFromInt(50)},
		{ID: "b2", Price: decimal.NewFromInt(8), Quantity: decimal.NewFromInt(30)},
		{ID: "b3", Price: decimal.NewFromInt(7), Quantity: decimal.NewFromInt(20)},
	}
	cfg.Market.Seed.Asks = []SeedEntry{
		{ID: "a1", Price: decimal.NewFromInt(11), Quantity: decimal.NewFromInt(25)},
		{ID: "a2", Price: decimal.NewFromInt(12), Quantity: decimal.NewFromInt(35)},
		{ID: "a3", Price: decimal.NewFromInt(13), Quantity: decimal.NewFromInt(40)},
	}

	cfg.Engine.InboxSize = 256
	cfg.Engine.DumpPath = "panic_dump.json"
	cfg.Activity.Capacity = 50
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// Keys missing from the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func invalid(field, msg string) error {
	return &domain.ConfigError{Field: field, Err: errors.New(msg)}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !c.Market.InitialPrice.IsPositive() {
		return invalid("market.initial_price", "must be positive")
	}
	if !c.Market.Supply.IsPositive() {
		return invalid("market.supply", "must be positive")
	}
	if err := validateSeed("market.seed.bids", c.Market.Seed.Bids); err != nil {
		return err
	}
	if err := validateSeed("market.seed.asks", c.Market.Seed.Asks); err != nil {
		return err
	}
	// The opening book must not cross the opening price.
	for i, e := range c.Market.Seed.Bids {
		if !e.Price.LessThan(c.Market.InitialPrice) {
			return invalid(fmt.Sprintf("market.seed.bids[%d].price", i), "must be below market.initial_price")
		}
	}
	for i, e := range c.Market.Seed.Asks {
		if !e.Price.GreaterThan(c.Market.InitialPrice) {
			return invalid(fmt.Sprintf("market.seed.asks[%d].price", i), "must be above market.initial_price")
		}
	}

	if c.Engine.InboxSize <= 0 {
		return invalid("engine.inbox_size", "must be positive")
	}
	if c.Activity.Capacity <= 0 {
		return invalid("activity.capacity", "must be positive")
	}
	if addr := c.Feed.ListenAddr; addr != "" && !strings.Contains(addr, ":") {
		return invalid("feed.listen_addr", fmt.Sprintf("%q is not host:port", addr))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	return nil
}

func validateSeed(field string, entries []SeedEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		f := fmt.Sprintf("%s[%d]", field, i)
		if e.ID == "" {
			return invalid(f+".id", "is required")
		}
		if _, dup := seen[e.ID]; dup {
			return invalid(f+".id", fmt.Sprintf("duplicate id %q", e.ID))
		}
		seen[e.ID] = struct{}{}
		if !e.Price.IsPositive() {
			return invalid(f+".price", "must be positive")
		}
		if !e.Quantity.IsPositive() {
			return invalid(f+".quantity", "must be positive")
		}
	}
	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if level := os.Getenv("MARKETSIM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if addr := os.Getenv("MARKETSIM_FEED_ADDR"); addr != "" {
		cfg.Feed.ListenAddr = addr
	}
	if db := os.Getenv("MARKETSIM_ACTIVITY_DB"); db != "" {
		cfg.Activity.DBPath = db
	}
}
