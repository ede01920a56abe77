package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for opening a watchlist.
// It is passed explicitly to the store constructors; nothing in the core reads
// process environment.
type Config struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir,omitempty" mapstructure:"data_dir"`

	// DynamoDB parameters.
	Table           string `json:"table" yaml:"table" mapstructure:"table"`
	Region          string `json:"region" yaml:"region,omitempty" mapstructure:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	AccessKeyID     string `json:"-" yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `json:"-" yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`

	// OpTimeout bounds each mirror operation, including time spent waiting
	// for the per-record lock.
	OpTimeout time.Duration `json:"op_timeout" yaml:"op_timeout,omitempty" mapstructure:"op_timeout"`
	// MaxInFlight bounds concurrent mutations across all records.
	MaxInFlight int `json:"max_in_flight" yaml:"max_in_flight,omitempty" mapstructure:"max_in_flight"`

	TMDBAPIKey      string        `json:"-" yaml:"tmdb_api_key,omitempty" mapstructure:"tmdb_api_key"`
	PosterCacheSize int           `json:"poster_cache_size" yaml:"poster_cache_size,omitempty" mapstructure:"poster_cache_size"`
	PosterCacheTTL  time.Duration `json:"poster_cache_ttl" yaml:"poster_cache_ttl,omitempty" mapstructure:"poster_cache_ttl"`

	Listen string `json:"listen" yaml:"listen,omitempty" mapstructure:"listen"`
}

// Supported backend names.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
)

// Defaults applied by WithDefaults.
const (
	DefaultTable           = "MovieWatchlist"
	DefaultOpTimeout       = 10 * time.Second
	DefaultMaxInFlight     = 64
	DefaultPosterCacheSize = 256
	DefaultPosterCacheTTL  = 24 * time.Hour
	DefaultListen          = ":8080"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrTableEmpty     = errors.New("table must not be empty")
	ErrRegionEmpty    = errors.New("region must not be empty for dynamodb without an endpoint")
	ErrTimeoutInvalid = errors.New("op timeout must be positive")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendDynamoDB: true,
	BackendSQLite:   true,
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.PosterCacheSize <= 0 {
		c.PosterCacheSize = DefaultPosterCacheSize
	}
	if c.PosterCacheTTL <= 0 {
		c.PosterCacheTTL = DefaultPosterCacheTTL
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	return c
}

// Validate checks that the Config is well-formed and returns one of the
// config errors above on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Table == "" {
		return ErrTableEmpty
	}
	if c.Backend == BackendDynamoDB && c.Region == "" && c.Endpoint == "" {
		return ErrRegionEmpty
	}
	if c.OpTimeout < 0 {
		return ErrTimeoutInvalid
	}
	return nil
}
