package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"token-launcher/internal/clients"
	"token-launcher/internal/launch"
	"token-launcher/internal/utils"
)

// Config application configuration structure
type Config struct {
	// Network selects built-in RPC and AMM defaults ("celo", "alfajores", "localhost").
	Network  string         `yaml:"network"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Launch   LaunchConfig   `yaml:"launch"`
}

// ServerConfig status API configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowedIPs may read the API besides localhost (IPs or CIDRs).
	AllowedIPs []string `yaml:"allowedIPs"`
}

// DatabaseConfig postgres configuration. An empty DSN selects the local store.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime string `yaml:"connMaxLifetime"`
}

// StoreConfig local pebble store
type StoreConfig struct {
	Path string `yaml:"path"`
}

// NATSConfig event stream configuration. An empty URL disables publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subjectPrefix"`
	Timeout       int    `yaml:"timeout"` // seconds
}

// MetricsConfig pushgateway configuration for one-shot commands
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	Job            string `yaml:"job"`
}

// LoggingConfig logrus configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// LedgerConfig RPC and signer configuration
type LedgerConfig struct {
	RPCURL             string `yaml:"rpcUrl"`
	ChainID            int64  `yaml:"chainId"`
	PrivateKey         string `yaml:"privateKey"`
	GasPrice           string `yaml:"gasPrice"` // wei, or "auto"
	GasPriceMultiplier int64  `yaml:"gasPriceMultiplier"`
	EstimateMultiplier uint64 `yaml:"estimateMultiplier"`
	ReceiptTimeout     string `yaml:"receiptTimeout"`
	ArtifactsDir       string `yaml:"artifactsDir"`
}

// GasConfig per-step gas limits
type GasConfig struct {
	Deploy        uint64 `yaml:"deploy"`
	FactoryDeploy uint64 `yaml:"factoryDeploy"`
	Burn          uint64 `yaml:"burn"`
	CreatePair    uint64 `yaml:"createPair"`
	Approve       uint64 `yaml:"approve"`
	AddLiquidity  uint64 `yaml:"addLiquidity"`
}

// LaunchConfig pipeline parameters. Amounts are decimal strings in native units.
type LaunchConfig struct {
	DeployMode         string    `yaml:"deployMode"`
	TokenArtifact      string    `yaml:"tokenArtifact"`
	FactoryArtifact    string    `yaml:"factoryArtifact"`
	LaunchFactory      string    `yaml:"launchFactory"`
	FactoryDeployValue string    `yaml:"factoryDeployValue"`
	AMMFactory         string    `yaml:"ammFactory"`
	Router             string    `yaml:"router"`
	ReserveAsset       string    `yaml:"reserveAsset"`
	DeadAddress        string    `yaml:"deadAddress"`
	ShareRecipient     string    `yaml:"shareRecipient"`
	LiquidityFraction  string    `yaml:"liquidityFraction"`
	ReserveAmount      string    `yaml:"reserveAmount"`
	MinTokenAmount     string    `yaml:"minTokenAmount"`
	MinReserveAmount   string    `yaml:"minReserveAmount"`
	DeadlineWindow     string    `yaml:"deadlineWindow"`
	Gas                GasConfig `yaml:"gas"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	celo, _ := utils.GlobalChainRegistry.GetByKey("celo")
	return Config{
		Network:  celo.Key,
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: "1h"},
		Store:    StoreConfig{Path: "data/launches"},
		NATS:     NATSConfig{Stream: "LAUNCHES", SubjectPrefix: "launch", Timeout: 10},
		Metrics:  MetricsConfig{Job: "token_launcher"},
		Logging:  LoggingConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Ledger: LedgerConfig{
			GasPrice:           "auto",
			GasPriceMultiplier: 120,
			EstimateMultiplier: 2,
			ArtifactsDir:       "artifacts",
		},
		Launch: LaunchConfig{
			DeployMode:         string(launch.DeployModeDirect),
			TokenArtifact:      "JazmeenToken",
			FactoryArtifact:    "JazmeenFactory",
			FactoryDeployValue: "0",
			DeadAddress:        utils.DeadAddress.Hex(),
			LiquidityFraction:  "0.1",
			ReserveAmount:      "2",
			MinTokenAmount:     "0",
			MinReserveAmount:   "0",
			DeadlineWindow:     "10m",
			Gas: GasConfig{
				Deploy:        7_000_000,
				FactoryDeploy: 5_000_000,
				Burn:          1_000_000,
				CreatePair:    7_000_000,
				Approve:       1_000_000,
				AddLiquidity:  7_000_000,
			},
		},
	}
}

// LoadConfig loads .env, the YAML file and environment overrides, in
// increasing order of precedence. An empty path tries config.local.yaml then
// config.yaml; a missing default file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	case explicit || !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	overrideFromEnv(&cfg)
	cfg.applyNetworkDefaults()
	return &cfg, nil
}

// overrideFromEnv environment variables win over the file
func overrideFromEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	str("NETWORK", &cfg.Network)
	str("RPC_URL", &cfg.Ledger.RPCURL)
	str("PRIVATE_KEY", &cfg.Ledger.PrivateKey)
	str("GAS_PRICE", &cfg.Ledger.GasPrice)
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Ledger.ChainID = id
		}
	}

	str("DATABASE_DSN", &cfg.Database.DSN)
	str("STORE_PATH", &cfg.Store.Path)
	str("NATS_URL", &cfg.NATS.URL)
	str("PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	str("DEPLOY_MODE", &cfg.Launch.DeployMode)
	str("ROUTER_ADDRESS", &cfg.Launch.Router)
	str("AMM_FACTORY_ADDRESS", &cfg.Launch.AMMFactory)
	str("RESERVE_ASSET_ADDRESS", &cfg.Launch.ReserveAsset)
	str("LAUNCH_FACTORY_ADDRESS", &cfg.Launch.LaunchFactory)
	str("DEAD_ADDRESS", &cfg.Launch.DeadAddress)
	str("RESERVE_AMOUNT", &cfg.Launch.ReserveAmount)
	str("LIQUIDITY_FRACTION", &cfg.Launch.LiquidityFraction)
}

// applyNetworkDefaults fills RPC and AMM addresses left empty from the
// network registry.
func (c *Config) applyNetworkDefaults() {
	chain, ok := utils.GlobalChainRegistry.GetByKey(c.Network)
	if !ok {
		return
	}
	if c.Ledger.RPCURL == "" && len(chain.RPCEndpoints) > 0 {
		c.Ledger.RPCURL = chain.RPCEndpoints[0]
	}
	if c.Ledger.ChainID == 0 {
		c.Ledger.ChainID = chain.ChainID
	}
	if c.Launch.Router == "" {
		c.Launch.Router = chain.Router
	}
	if c.Launch.AMMFactory == "" {
		c.Launch.AMMFactory = chain.AMMFactory
	}
	if c.Launch.ReserveAsset == "" {
		c.Launch.ReserveAsset = chain.ReserveAsset
	}
}

// Chain returns the registry entry for the configured network, if any.
func (c *Config) Chain() *utils.ChainInfo {
	if chain, ok := utils.GlobalChainRegistry.GetByKey(c.Network); ok {
		return chain
	}
	if chain, ok := utils.GlobalChainRegistry.GetByChainID(c.Ledger.ChainID); ok {
		return chain
	}
	return nil
}

// Settings validates the launch section and builds the immutable settings
// the orchestrator runs with.
func (c *Config) Settings() (launch.Settings, error) {
	l := c.Launch
	var (
		s   launch.Settings
		err error
	)

	s.DeployMode = launch.DeployMode(strings.ToLower(strings.TrimSpace(l.DeployMode)))
	s.TokenArtifact = l.TokenArtifact

	if s.Router, err = utils.ParseNonZeroAddress("router", l.Router); err != nil {
		return s, err
	}
	if s.AMMFactory, err = utils.ParseNonZeroAddress("AMM factory", l.AMMFactory); err != nil {
		return s, err
	}
	if s.ReserveAsset, err = utils.ParseNonZeroAddress("reserve asset", l.ReserveAsset); err != nil {
		return s, err
	}
	if s.DeadAddress, err = utils.ParseNonZeroAddress("dead address", l.DeadAddress); err != nil {
		return s, err
	}
	if s.LaunchFactory, err = optionalAddress("launch factory", l.LaunchFactory); err != nil {
		return s, err
	}
	if s.ShareRecipient, err = optionalAddress("share recipient", l.ShareRecipient); err != nil {
		return s, err
	}

	if s.LiquidityFraction, err = utils.ParseFraction(l.LiquidityFraction); err != nil {
		return s, fmt.Errorf("liquidity fraction: %w", err)
	}
	if s.ReserveAmount, err = utils.ParseEther(l.ReserveAmount); err != nil {
		return s, fmt.Errorf("reserve amount: %w", err)
	}
	if s.FactoryDeployValue, err = parseOptionalEther(l.FactoryDeployValue); err != nil {
		return s, fmt.Errorf("factory deploy value: %w", err)
	}
	// minimums are in the token's base units for the token side and wei for the reserve side
	if s.MinTokenAmount, err = parseOptionalUnits(l.MinTokenAmount); err != nil {
		return s, fmt.Errorf("min token amount: %w", err)
	}
	if s.MinReserveAmount, err = parseOptionalEther(l.MinReserveAmount); err != nil {
		return s, fmt.Errorf("min reserve amount: %w", err)
	}
	if s.DeadlineWindow, err = time.ParseDuration(l.DeadlineWindow); err != nil {
		return s, fmt.Errorf("deadline window: %w", err)
	}

	s.Gas = launch.GasLimits{
		Deploy:        l.Gas.Deploy,
		FactoryDeploy: l.Gas.FactoryDeploy,
		Burn:          l.Gas.Burn,
		CreatePair:    l.Gas.CreatePair,
		Approve:       l.Gas.Approve,
		AddLiquidity:  l.Gas.AddLiquidity,
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// LedgerOptions builds the ledger client options.
func (c *Config) LedgerOptions() (clients.LedgerOptions, error) {
	opts := clients.LedgerOptions{
		ChainID:            c.Ledger.ChainID,
		GasPrice:           c.Ledger.GasPrice,
		GasPriceMultiplier: c.Ledger.GasPriceMultiplier,
		EstimateMultiplier: c.Ledger.EstimateMultiplier,
		ArtifactsDir:       c.Ledger.ArtifactsDir,
	}
	if c.Ledger.ReceiptTimeout != "" {
		d, err := time.ParseDuration(c.Ledger.ReceiptTimeout)
		if err != nil {
			return opts, fmt.Errorf("receipt timeout: %w", err)
		}
		opts.ReceiptTimeout = d
	}
	return opts, nil
}

// ConnLifetime parses the pool connection lifetime; invalid values disable it.
func (d DatabaseConfig) ConnLifetime() time.Duration {
	v, err := time.ParseDuration(d.ConnMaxLifetime)
	if err != nil {
		return 0
	}
	return v
}

// Addr is the status API listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func optionalAddress(name, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	addr, err := utils.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

func parseOptionalEther(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return new(big.Int), nil
	}
	return utils.ParseEther(value)
}

func parseOptionalUnits(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return new(big.Int), nil
	}
	return utils.ParseUnits(value, 0)
}
