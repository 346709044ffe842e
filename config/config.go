package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hypernovachain_go/consensus"
	"hypernovachain_go/utils"
)

// Node roles
const (
	RoleValidator = "validator"
	RoleFull      = "full"
)

const (
	EnvPrefix = "HYPERNOVA"

	DefaultDataDir       = "data"
	DefaultRole          = RoleFull
	DefaultAPIPort       = 3002
	DefaultMaxPeers      = 50
	DefaultMaxPending    = 10000
	DefaultBlockInterval = 5 * time.Second
	DefaultMaxBodyBytes  = 1 << 20

	// DefaultConsensusType is shared by every role so that full nodes accept
	// the blocks validators produce.
	DefaultConsensusType = consensus.DPOS
)

// ConsensusConfig selects and tunes the consensus engine
type ConsensusConfig struct {
	Type                 string            `mapstructure:"type"` // POAI or DPOS; empty means DefaultConsensusType
	OracleEndpoint       string            `mapstructure:"oracle_endpoint"`
	OracleTimeout        time.Duration     `mapstructure:"oracle_timeout"`
	ConfidenceThreshold  float64           `mapstructure:"confidence_threshold"`
	AttestationRule      string            `mapstructure:"attestation_rule"`
	ModelID              string            `mapstructure:"model_id"`
	Roster               []string          `mapstructure:"roster"`
	ValidatorCount       int               `mapstructure:"validator_count"`
	MinStake             uint64            `mapstructure:"min_stake"`
	Stakes               map[string]uint64 `mapstructure:"stakes"`
	MaxBlockTransactions int               `mapstructure:"max_block_transactions"`
}

// Config holds all startup configuration
type Config struct {
	DataDir       string          `mapstructure:"data_dir"`
	Role          string          `mapstructure:"role"`
	APIPort       int             `mapstructure:"api_port"`
	Verbose       bool            `mapstructure:"verbose"`
	KeyPassphrase string          `mapstructure:"key_passphrase"`
	MaxPeers      int             `mapstructure:"max_peers"`
	MaxPending    int             `mapstructure:"max_pending"`
	MaxBodyBytes  int64           `mapstructure:"max_body_bytes"`
	SeedNodes     []string        `mapstructure:"seed_nodes"`
	BlockInterval time.Duration   `mapstructure:"block_interval"`
	Consensus     ConsensusConfig `mapstructure:"consensus"`
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"datadir":         "data_dir",
	"role":            "role",
	"port":            "api_port",
	"verbose":         "verbose",
	"nodekeypass":     "key_passphrase",
	"max-peers":       "max_peers",
	"max-pending":     "max_pending",
	"max-body":        "max_body_bytes",
	"seed":            "seed_nodes",
	"block-interval":  "block_interval",
	"consensus":       "consensus.type",
	"oracle-endpoint": "consensus.oracle_endpoint",
	"confidence":      "consensus.confidence_threshold",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("role", DefaultRole)
	v.SetDefault("api_port", DefaultAPIPort)
	v.SetDefault("verbose", false)
	v.SetDefault("key_passphrase", "")
	v.SetDefault("max_peers", DefaultMaxPeers)
	v.SetDefault("max_pending", DefaultMaxPending)
	v.SetDefault("max_body_bytes", DefaultMaxBodyBytes)
	v.SetDefault("seed_nodes", []string{})
	v.SetDefault("block_interval", DefaultBlockInterval)

	v.SetDefault("consensus.type", string(DefaultConsensusType))
	v.SetDefault("consensus.oracle_endpoint", "")
	v.SetDefault("consensus.oracle_timeout", consensus.DefaultOracleTimeout)
	v.SetDefault("consensus.confidence_threshold", consensus.DefaultConfidenceThreshold)
	v.SetDefault("consensus.attestation_rule", consensus.DefaultAttestationRule)
	v.SetDefault("consensus.model_id", consensus.DefaultModelID)
	v.SetDefault("consensus.roster", []string{})
	v.SetDefault("consensus.validator_count", consensus.DefaultValidatorCount)
	v.SetDefault("consensus.min_stake", consensus.DefaultMinStake)
	v.SetDefault("consensus.stakes", map[string]uint64{})
	v.SetDefault("consensus.max_block_transactions", consensus.DefaultMaxBlockTransactions)
}

// RegisterFlags declares the node's CLI flags on cmd
func RegisterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "Path to a YAML config file")
	f.String("datadir", DefaultDataDir, "Directory for blockchain data and the node key")
	f.String("role", DefaultRole, "Node role: validator or full")
	f.Int("port", DefaultAPIPort, "Port for the HTTP API")
	f.Bool("verbose", false, "Enable detailed logging")
	f.String("nodekeypass", "", "Passphrase for the node's private key")
	f.Int("max-peers", DefaultMaxPeers, "Maximum number of registered peers (0 = unbounded)")
	f.Int("max-pending", DefaultMaxPending, "Maximum number of pending transactions (0 = unbounded)")
	f.Int64("max-body", DefaultMaxBodyBytes, "Maximum size in bytes of a submitted transaction or block")
	f.StringSlice("seed", nil, "Comma-separated list of seed nodes (host:port)")
	f.Duration("block-interval", DefaultBlockInterval, "Block production interval for validators")
	f.String("consensus", string(DefaultConsensusType), "Consensus engine: POAI or DPOS, the same on every node of a network")
	f.String("oracle-endpoint", "", "Base URL of the Proof of AI oracle service")
	f.Float64("confidence", consensus.DefaultConfidenceThreshold, "Minimum accepted oracle confidence")
}

/**
 * Load resolves the configuration. Later sources override earlier ones:
 * defaults, the YAML file named by --config, .env.test or .env, HYPERNOVA_*
 * environment variables, then flags set on cmd. cmd may be nil.
 */
func Load(cmd *cobra.Command) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			if flag := cmd.Flags().Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", path, err)
			}
			utils.LogInfo("Loaded config file %s", v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding configuration: %w", err)
	}
	cfg.Role = strings.ToLower(strings.TrimSpace(cfg.Role))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads .env.test if present, otherwise .env. Variables already
// set in the environment win.
func loadDotEnv() {
	for _, name := range []string{".env.test", ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			utils.LogError("Error loading %s file: %v", name, err)
		} else {
			utils.LogDebug("Successfully loaded %s file", name)
		}
		return
	}
}

// ConsensusType returns the configured engine. The role never changes it:
// a role only decides whether the node produces blocks.
func (c *Config) ConsensusType() (consensus.ConsensusType, error) {
	if strings.TrimSpace(c.Consensus.Type) == "" {
		return DefaultConsensusType, nil
	}
	return consensus.ParseConsensusType(c.Consensus.Type)
}

// ConsensusOptions converts the consensus section into engine options.
// Storage and Signer are left for the caller.
func (c *Config) ConsensusOptions() consensus.Options {
	opts := consensus.DefaultOptions()
	opts.OracleEndpoint = c.Consensus.OracleEndpoint
	if c.Consensus.OracleTimeout > 0 {
		opts.OracleTimeout = c.Consensus.OracleTimeout
	}
	if c.Consensus.ModelID != "" {
		opts.ModelID = c.Consensus.ModelID
	}
	opts.ConfidenceThreshold = c.Consensus.ConfidenceThreshold
	opts.AttestationRule = c.Consensus.AttestationRule
	opts.Roster = append([]string(nil), c.Consensus.Roster...)
	if c.Consensus.ValidatorCount > 0 {
		opts.ValidatorCount = c.Consensus.ValidatorCount
	}
	opts.MinStake = c.Consensus.MinStake
	if len(c.Consensus.Stakes) > 0 {
		opts.Stakes = make(map[string]uint64, len(c.Consensus.Stakes))
		for addr, stake := range c.Consensus.Stakes {
			opts.Stakes[addr] = stake
		}
	}
	if c.Consensus.MaxBlockTransactions > 0 {
		opts.MaxBlockTransactions = c.Consensus.MaxBlockTransactions
	}
	return opts
}

// Validate rejects configurations the node cannot start with
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	if c.Role != RoleValidator && c.Role != RoleFull {
		errs = append(errs, fmt.Errorf("unknown role %q (expected %s or %s)", c.Role, RoleValidator, RoleFull))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api_port %d out of range", c.APIPort))
	}
	if c.KeyPassphrase == "" {
		errs = append(errs, fmt.Errorf("node key passphrase not provided: set %s_KEY_PASSPHRASE or use --nodekeypass", EnvPrefix))
	}
	if c.MaxPeers < 0 {
		errs = append(errs, fmt.Errorf("max_peers cannot be negative"))
	}
	if c.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("max_pending cannot be negative"))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes cannot be negative"))
	}
	if c.BlockInterval <= 0 {
		errs = append(errs, fmt.Errorf("block_interval must be positive"))
	}
	if _, err := c.ConsensusType(); err != nil {
		errs = append(errs, err)
	}
	if t := c.Consensus.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("consensus.confidence_threshold %v outside [0,1]", t))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
