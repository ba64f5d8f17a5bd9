package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"positionScope/internal/pricing"
)

// EnvPrefix prefixes every environment variable, e.g. POSITIONS_RPC.
const EnvPrefix = "POSITIONS"

// Flare mainnet deployment of the Enosys concentrated liquidity DEX.
var (
	DefaultRPCURLs = []string{
		"https://flare.flr.finance/ext/bc/C/rpc",
		"https://flare.public-rpc.com",
		"https://rpc-enosys.flare.network",
		"https://1rpc.io/flare",
	}
	DefaultPositionManager = "0xD9770b1C7A6ccd33C75b5bcB1c0078f46bE46657"
	DefaultFactory         = "0x17AA157AC8C54034381b840Cb8f6bf7Fc355f0de"
	DefaultRewardToken     = "0xffA188493C15DfAf2C206c97D8633377847b6a52"
	DefaultStableTokens    = []string{
		"0x96B41289D90444B8adD57e6F265DB5aE8651DF29", // eUSDT
		"0xe7cd86e13AC4309349F30B3435a9d337750fC82D", // USD₮0
	}
)

// PriceSourceConfig is one price source as written in configuration.
type PriceSourceConfig struct {
	Type  string  `mapstructure:"type" json:"type"`
	USD   float64 `mapstructure:"usd" json:"usd"`
	Pool  string  `mapstructure:"pool" json:"pool"`
	Base  string  `mapstructure:"base" json:"base"`
	Quote string  `mapstructure:"quote" json:"quote"`
	URL   string  `mapstructure:"url" json:"url"`
	Field string  `mapstructure:"field" json:"field"`
}

// TokenPriceConfig lists the price sources of one token.
type TokenPriceConfig struct {
	Token   string              `mapstructure:"token" json:"token"`
	Sources []PriceSourceConfig `mapstructure:"sources" json:"sources"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURLs            []string
	PositionManager    string
	Factory            string
	Wallets            []string
	Concurrency        int
	DiscoveryBatchSize int
	ChainTimeout       time.Duration
	PositionTimeout    time.Duration
	ExplorerTimeout    time.Duration
	OracleTimeout      time.Duration
	ExplorerV1URL      string
	ExplorerV2URL      string
	ExplorerRPS        float64
	RewardURL          string
	RewardToken        string
	StableTokens       []string
	Prices             []TokenPriceConfig
	PriceTTL           time.Duration
	CreationDate       bool
	Out                string
	PGDSN              string
	Schedule           string
	MetricsAddr        string
	LogLevel           string
	Refresh            bool
	Sort               string
	Order              string
	Status             string
}

func defaultPrices() []map[string]any {
	return []map[string]any{
		{
			// rFLR
			"token":   DefaultRewardToken,
			"sources": []map[string]any{{"type": pricing.KindFixed, "usd": 0.01758}},
		},
		{
			// FXRP via the FXRP/USD₮0 pool
			"token": "0xAd552A648C74D49E10027AB8a618A3ad4901c5bE",
			"sources": []map[string]any{{
				"type":  pricing.KindPool,
				"pool":  "0x686f53F0950Ef193C887527eC027E6A574A4DbE1",
				"quote": "0xe7cd86e13AC4309349F30B3435a9d337750fC82D",
			}},
		},
		{
			// APS via the eUSDT/APS pool
			"token": "0xfF56Eb5b1a7FAa972291117E5E9565dA29bc808d",
			"sources": []map[string]any{{
				"type":  pricing.KindPool,
				"pool":  "0xcF93d54E7Fea895375667Fa071d5b48C81E76d7d",
				"quote": "0x96B41289D90444B8adD57e6F265DB5aE8651DF29",
			}},
		},
	}
}

// Load merges config file, environment variables, and flags into Config.
// A .env file in the working directory is loaded first when present.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", DefaultRPCURLs)
	v.SetDefault("position-manager", DefaultPositionManager)
	v.SetDefault("factory", DefaultFactory)
	v.SetDefault("concurrency", 5)
	v.SetDefault("discovery-batch-size", 10)
	v.SetDefault("chain-timeout", 10*time.Second)
	v.SetDefault("position-timeout", 15*time.Second)
	v.SetDefault("explorer-timeout", 30*time.Second)
	v.SetDefault("oracle-timeout", 10*time.Second)
	v.SetDefault("explorer-v1-url", "https://flare-explorer.flare.network/api")
	v.SetDefault("explorer-v2-url", "https://flare-explorer.flare.network/api/v2")
	v.SetDefault("explorer-rps", 2.0)
	v.SetDefault("reward-url", "https://v3.dex.enosys.global/api/flr/v2/stats/rflr")
	v.SetDefault("reward-token", DefaultRewardToken)
	v.SetDefault("stable-tokens", DefaultStableTokens)
	v.SetDefault("prices", defaultPrices())
	v.SetDefault("price-ttl", 30*time.Second)
	v.SetDefault("out", "./data/positions.jsonl")
	v.SetDefault("sort", "tvl")
	v.SetDefault("order", "desc")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	prices, err := getPrices(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURLs:            getStringSlice(v, "rpc"),
		PositionManager:    v.GetString("position-manager"),
		Factory:            v.GetString("factory"),
		Wallets:            getStringSlice(v, "wallet"),
		Concurrency:        v.GetInt("concurrency"),
		DiscoveryBatchSize: v.GetInt("discovery-batch-size"),
		ChainTimeout:       v.GetDuration("chain-timeout"),
		PositionTimeout:    v.GetDuration("position-timeout"),
		ExplorerTimeout:    v.GetDuration("explorer-timeout"),
		OracleTimeout:      v.GetDuration("oracle-timeout"),
		ExplorerV1URL:      v.GetString("explorer-v1-url"),
		ExplorerV2URL:      v.GetString("explorer-v2-url"),
		ExplorerRPS:        v.GetFloat64("explorer-rps"),
		RewardURL:          v.GetString("reward-url"),
		RewardToken:        v.GetString("reward-token"),
		StableTokens:       getStringSlice(v, "stable-tokens"),
		Prices:             prices,
		PriceTTL:           v.GetDuration("price-ttl"),
		CreationDate:       v.GetBool("creation-date"),
		Out:                v.GetString("out"),
		PGDSN:              v.GetString("pg-dsn"),
		Schedule:           v.GetString("schedule"),
		MetricsAddr:        v.GetString("metrics-addr"),
		LogLevel:           v.GetString("log-level"),
		Refresh:            v.GetBool("refresh"),
		Sort:               v.GetString("sort"),
		Order:              v.GetString("order"),
		Status:             v.GetString("status"),
	}

	return cfg, nil
}

// getPrices accepts the structured form of a config file or a JSON string
// from the environment.
func getPrices(v *viper.Viper) ([]TokenPriceConfig, error) {
	var prices []TokenPriceConfig
	if raw, ok := v.Get("prices").(string); ok {
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(raw), &prices); err != nil {
			return nil, fmt.Errorf("parse prices: %w", err)
		}
		return prices, nil
	}
	if err := v.UnmarshalKey("prices", &prices); err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}
	return prices, nil
}

// Validate checks the values every command needs.
func (c Config) Validate() error {
	var errs []error
	if len(c.RPCURLs) == 0 {
		errs = append(errs, errors.New("at least one rpc endpoint is required"))
	}
	if !common.IsHexAddress(c.PositionManager) {
		errs = append(errs, fmt.Errorf("invalid position-manager %q", c.PositionManager))
	}
	if !common.IsHexAddress(c.Factory) {
		errs = append(errs, fmt.Errorf("invalid factory %q", c.Factory))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be > 0, got %d", c.Concurrency))
	}
	if c.DiscoveryBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("discovery-batch-size must be > 0, got %d", c.DiscoveryBatchSize))
	}
	if c.ExplorerRPS <= 0 {
		errs = append(errs, fmt.Errorf("explorer-rps must be > 0, got %v", c.ExplorerRPS))
	}
	if c.RewardToken != "" && !common.IsHexAddress(c.RewardToken) {
		errs = append(errs, fmt.Errorf("invalid reward-token %q", c.RewardToken))
	}
	switch strings.ToLower(c.Order) {
	case "", "asc", "desc":
	default:
		errs = append(errs, fmt.Errorf("order must be asc or desc, got %q", c.Order))
	}
	switch strings.ToLower(c.Sort) {
	case "", "tvl", "rewards", "fees", "id":
	default:
		errs = append(errs, fmt.Errorf("sort must be tvl, rewards, fees or id, got %q", c.Sort))
	}
	return errors.Join(errs...)
}

// WalletAddresses parses the configured wallets.
func (c Config) WalletAddresses() ([]common.Address, error) {
	return parseAddresses("wallet", c.Wallets)
}

// PricingConfig converts the price section into a registry configuration.
func (c Config) PricingConfig() (pricing.Config, error) {
	stable, err := parseAddresses("stable-tokens", c.StableTokens)
	if err != nil {
		return pricing.Config{}, err
	}
	out := pricing.Config{
		StableTokens:  stable,
		TTL:           c.PriceTTL,
		OracleTimeout: c.OracleTimeout,
	}
	for _, entry := range c.Prices {
		token, err := parseAddress("prices.token", entry.Token)
		if err != nil {
			return pricing.Config{}, err
		}
		ts := pricing.TokenSources{Token: token}
		for i, src := range entry.Sources {
			source, err := src.toSource()
			if err != nil {
				return pricing.Config{}, fmt.Errorf("prices %s source %d: %w", entry.Token, i, err)
			}
			ts.Sources = append(ts.Sources, source)
		}
		out.Tokens = append(out.Tokens, ts)
	}
	return out, nil
}

func (s PriceSourceConfig) toSource() (pricing.Source, error) {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case pricing.KindFixed:
		return pricing.Fixed{USD: s.USD}, nil
	case pricing.KindPool:
		pool, err := parseAddress("pool", s.Pool)
		if err != nil {
			return nil, err
		}
		quote, err := parseAddress("quote", s.Quote)
		if err != nil {
			return nil, err
		}
		src := pricing.Pool{Pool: pool, Quote: quote}
		if s.Base != "" {
			if src.Base, err = parseAddress("base", s.Base); err != nil {
				return nil, err
			}
		}
		return src, nil
	case pricing.KindOracle:
		if strings.TrimSpace(s.URL) == "" {
			return nil, errors.New("oracle source needs a url")
		}
		return pricing.Oracle{URL: s.URL, Field: s.Field}, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", s.Type)
	}
}

func parseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAddresses(field string, values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, value := range values {
		addr, err := parseAddress(field, value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
