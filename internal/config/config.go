// Package config loads the environment configuration recognized by the
// buffer manager and the scheduler at construction time.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// MigrationPolicy controls when a page resident in the NUMA tier is
// promoted into the DRAM tier.
type MigrationPolicy string

const (
	// MigrationLazy promotes a page to DRAM on repeated access.
	MigrationLazy MigrationPolicy = "lazy"
	// MigrationEager promotes a page to DRAM on first miss.
	MigrationEager MigrationPolicy = "eager"
	// MigrationDramOnly pins all allocation to the DRAM tier; the NUMA
	// tier is never used, even if configured.
	MigrationDramOnly MigrationPolicy = "dram_only"
	// MigrationNumaOnly pins all allocation to the NUMA tier.
	MigrationNumaOnly MigrationPolicy = "numa_only"
)

func parseMigrationPolicy(s string) (MigrationPolicy, error) {
	switch MigrationPolicy(strings.ToLower(s)) {
	case MigrationLazy, "":
		return MigrationLazy, nil
	case MigrationEager:
		return MigrationEager, nil
	case MigrationDramOnly:
		return MigrationDramOnly, nil
	case MigrationNumaOnly:
		return MigrationNumaOnly, nil
	default:
		return "", fmt.Errorf("config: invalid migration_policy %q", s)
	}
}

// BufferConfig mirrors SPEC_FULL.md Section 6's buffer manager options.
type BufferConfig struct {
	DramBufferPoolSize int64           `mapstructure:"dram_buffer_pool_size"`
	NumaBufferPoolSize int64           `mapstructure:"numa_buffer_pool_size"`
	CPUNode            int             `mapstructure:"cpu_node"`
	EnableNuma         bool            `mapstructure:"enable_numa"`
	MigrationPolicy    MigrationPolicy `mapstructure:"migration_policy"`
	SSDPath            string          `mapstructure:"ssd_path"`
	EnableMprotect     bool            `mapstructure:"enable_mprotect"`
	Debug              bool            `mapstructure:"debug"`
}

// SchedulerConfig mirrors SPEC_FULL.md Section 6's scheduler topology.
type SchedulerConfig struct {
	NumNodes       int `mapstructure:"num_nodes"`
	WorkersPerNode int `mapstructure:"workers_per_node"`
}

// Config is the top-level configuration for the runtime core.
type Config struct {
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// DefaultConfig returns sensible defaults for local development and tests.
func DefaultConfig() *Config {
	return &Config{
		Buffer: BufferConfig{
			DramBufferPoolSize: 64 * 1024 * 1024,
			NumaBufferPoolSize: 0,
			CPUNode:            0,
			EnableNuma:         false,
			MigrationPolicy:    MigrationLazy,
			SSDPath:            "",
			EnableMprotect:     false,
			Debug:              false,
		},
		Scheduler: SchedulerConfig{
			NumNodes:       1,
			WorkersPerNode: 4,
		},
	}
}

// Load reads configuration from a YAML file at path, falling back to
// defaults for anything unset, and allows environment-variable overrides
// (e.g. NOVASQL_BUFFER_DRAM_BUFFER_POOL_SIZE).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("novasql")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	v.SetDefault("buffer.dram_buffer_pool_size", cfg.Buffer.DramBufferPoolSize)
	v.SetDefault("buffer.numa_buffer_pool_size", cfg.Buffer.NumaBufferPoolSize)
	v.SetDefault("buffer.cpu_node", cfg.Buffer.CPUNode)
	v.SetDefault("buffer.enable_numa", cfg.Buffer.EnableNuma)
	v.SetDefault("buffer.migration_policy", string(cfg.Buffer.MigrationPolicy))
	v.SetDefault("buffer.ssd_path", cfg.Buffer.SSDPath)
	v.SetDefault("buffer.enable_mprotect", cfg.Buffer.EnableMprotect)
	v.SetDefault("buffer.debug", cfg.Buffer.Debug)
	v.SetDefault("scheduler.num_nodes", cfg.Scheduler.NumNodes)
	v.SetDefault("scheduler.workers_per_node", cfg.Scheduler.WorkersPerNode)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	policy, err := parseMigrationPolicy(string(out.Buffer.MigrationPolicy))
	if err != nil {
		return nil, err
	}
	out.Buffer.MigrationPolicy = policy

	return &out, nil
}
