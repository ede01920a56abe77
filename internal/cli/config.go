package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/watchlist/internal/paths"
	"github.com/mesh-intelligence/watchlist/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "WATCHLIST"

	cfgKeyBackend = "backend"
	cfgKeyDataDir = "data_dir"
)

// envKeys are the config keys that WATCHLIST_* variables override. data_dir
// is resolved separately so the flag > config > env order holds.
var envKeys = []string{
	cfgKeyBackend,
	"table",
	"region",
	"endpoint",
	"access_key_id",
	"secret_access_key",
	"op_timeout",
	"max_in_flight",
	"tmdb_api_key",
	"poster_cache_size",
	"poster_cache_ttl",
	"listen",
}

// loadConfig reads config.yaml from configDir, applies WATCHLIST_* overrides
// and flags, and returns the effective configuration. A missing config.yaml
// is not an error.
func (a *app) loadConfig(cmd *cobra.Command, configDir string) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return types.Config{}, fmt.Errorf("bind env %s: %w", k, err)
		}
	}
	if f := cmd.Flags().Lookup("backend"); f != nil {
		if err := v.BindPFlag(cfgKeyBackend, f); err != nil {
			return types.Config{}, fmt.Errorf("bind flag: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}

	dataDir, err := paths.ResolveDataDir(a.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	return cfg.WithDefaults(), nil
}

// fileConfig is the config.yaml layout. Durations are kept as text so the
// file stays readable.
type fileConfig struct {
	Backend         string `yaml:"backend" json:"backend"`
	DataDir         string `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`
	Table           string `yaml:"table" json:"table"`
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
	OpTimeout       string `yaml:"op_timeout" json:"op_timeout"`
	MaxInFlight     int    `yaml:"max_in_flight" json:"max_in_flight"`
	TMDBAPIKey      string `yaml:"tmdb_api_key,omitempty" json:"tmdb_api_key,omitempty"`
	PosterCacheSize int    `yaml:"poster_cache_size" json:"poster_cache_size"`
	PosterCacheTTL  string `yaml:"poster_cache_ttl" json:"poster_cache_ttl"`
	Listen          string `yaml:"listen" json:"listen"`
}

func toFileConfig(cfg types.Config) fileConfig {
	return fileConfig{
		Backend:         cfg.Backend,
		DataDir:         cfg.DataDir,
		Table:           cfg.Table,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		OpTimeout:       cfg.OpTimeout.String(),
		MaxInFlight:     cfg.MaxInFlight,
		TMDBAPIKey:      cfg.TMDBAPIKey,
		PosterCacheSize: cfg.PosterCacheSize,
		PosterCacheTTL:  cfg.PosterCacheTTL.String(),
		Listen:          cfg.Listen,
	}
}

// writeConfigIfMissing creates config.yaml from cfg. An existing file is
// left alone and reported as not written.
func writeConfigIfMissing(path string, cfg types.Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(toFileConfig(cfg))
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// redacted masks secrets for display.
func redacted(cfg types.Config) fileConfig {
	fc := toFileConfig(cfg)
	for _, s := range []*string{&fc.AccessKeyID, &fc.SecretAccessKey, &fc.TMDBAPIKey} {
		if *s != "" {
			*s = "****"
		}
	}
	return fc
}

func (a *app) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOut {
				return a.printJSON(redacted(a.cfg))
			}
			out, err := yaml.Marshal(redacted(a.cfg))
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintln(a.out, "# config file:", paths.ConfigFile(a.configDirPath))
			_, err = a.out.Write(out)
			return err
		},
	}
}
