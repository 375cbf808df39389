package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
)

// Config represents the complete configuration for the CardanoIndexor.
type Config struct {
	// Source describes where raw blocks are read from
	Source SourceConfig `yaml:"source" json:"source" toml:"source"`

	// Database contains the SQLite configuration for the indexed data
	Database DatabaseConfig `yaml:"database" json:"database" toml:"database"`

	// Maintenance contains optional database maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`

	// Resolver configures the entity resolution cache
	Resolver ResolverConfig `yaml:"resolver" json:"resolver" toml:"resolver"`

	// Tasks selects which indexing tasks run for every block
	Tasks TasksConfig `yaml:"tasks" json:"tasks" toml:"tasks"`

	// Dex selects the exchange protocols whose events are extracted
	Dex DexConfig `yaml:"dex" json:"dex" toml:"dex"`

	// Retry controls how a block that failed on a transient store error is re-run
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API contains the query API configuration
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`
}

// SourceConfig represents the configuration of the block source.
type SourceConfig struct {
	// Path is the JSON-lines block dump, one {"type":N,"cbor":"<hex>"} object per line
	Path string `yaml:"path" json:"path" toml:"path"`

	// RateLimit caps the number of blocks read per second (0 = unlimited)
	RateLimit int `yaml:"rate_limit" json:"rate_limit" toml:"rate_limit" split_words:"true"`

	// DecodeWorkers is the number of blocks decoded ahead of the executor
	DecodeWorkers int `yaml:"decode_workers" json:"decode_workers" toml:"decode_workers" split_words:"true"`
}

// ApplyDefaults sets default values for optional source configuration fields.
func (s *SourceConfig) ApplyDefaults() {
	if s.DecodeWorkers == 0 {
		s.DecodeWorkers = 4
	}
}

// Validate checks if the source configuration is valid.
func (s *SourceConfig) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("source.rate_limit must not be negative")
	}
	if s.DecodeWorkers < 1 {
		return fmt.Errorf("source.decode_workers must be at least 1")
	}
	return nil
}

// RetryConfig represents block retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first one)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts" split_words:"true"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff" split_words:"true"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff" split_words:"true"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier" split_words:"true"` //nolint:lll
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode" split_words:"true"`

	// Synchronous sets the synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout" split_words:"true"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size" split_words:"true"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections" split_words:"true"` //nolint:lll

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections" split_words:"true"` //nolint:lll

	// EnableForeignKeys enables foreign key constraint enforcement
	EnableForeignKeys bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys" split_words:"true"` //nolint:lll

	// BatchRows is the maximum number of rows sent in one multi-row statement
	BatchRows int `yaml:"batch_rows" json:"batch_rows" toml:"batch_rows" split_words:"true"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
	if d.BatchRows == 0 {
		d.BatchRows = 500
	}
	// EnableForeignKeys defaults to false (zero value)
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if !slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("database.journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("database.synchronous must be one of: FULL, NORMAL, OFF")
	}

	if d.BatchRows < 1 {
		return fmt.Errorf("database.batch_rows must be at least 1")
	}

	return nil
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval" split_words:"true"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup" split_words:"true"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode" split_words:"true"` //nolint:lll
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("maintenance.wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// ResolverConfig configures the cross-block cache of resolved addresses and assets.
type ResolverConfig struct {
	// AddressCacheSize is the number of address ids kept between blocks
	AddressCacheSize int `yaml:"address_cache_size" json:"address_cache_size" toml:"address_cache_size" split_words:"true"` //nolint:lll

	// AssetCacheSize is the number of native asset ids kept between blocks
	AssetCacheSize int `yaml:"asset_cache_size" json:"asset_cache_size" toml:"asset_cache_size" split_words:"true"`
}

// ApplyDefaults sets default cache sizes.
func (r *ResolverConfig) ApplyDefaults() {
	if r.AddressCacheSize == 0 {
		r.AddressCacheSize = 200_000
	}
	if r.AssetCacheSize == 0 {
		r.AssetCacheSize = 50_000
	}
}

// Validate checks if the resolver configuration is valid.
func (r *ResolverConfig) Validate() error {
	if r.AddressCacheSize < 0 || r.AssetCacheSize < 0 {
		return fmt.Errorf("resolver cache sizes must not be negative")
	}
	return nil
}

// TasksConfig selects the indexing tasks.
type TasksConfig struct {
	// Enabled lists the task factories to run; empty means every registered factory
	Enabled []string `yaml:"enabled,omitempty" json:"enabled,omitempty" toml:"enabled,omitempty"`
}

// DexConfig selects the exchange protocols.
type DexConfig struct {
	// Protocols lists the protocols to extract events for
	// Options: wingriders_v1, sundaeswap_v1, minswap_v1, minswap_v2
	Protocols []string `yaml:"protocols" json:"protocols" toml:"protocols"`
}

// DefaultDexProtocols is used when no protocol list is configured.
var DefaultDexProtocols = []string{"wingriders_v1", "sundaeswap_v1", "minswap_v1", "minswap_v2"}

// ApplyDefaults sets default values for the DEX configuration.
func (d *DexConfig) ApplyDefaults() {
	if d.Protocols == nil {
		d.Protocols = slices.Clone(DefaultDexProtocols)
	}
	for i, p := range d.Protocols {
		d.Protocols[i] = common.ToLowerWithTrim(p)
	}
}

// Validate checks if the DEX configuration is valid.
func (d *DexConfig) Validate() error {
	seen := make(map[string]struct{}, len(d.Protocols))
	for _, p := range d.Protocols {
		if !slices.Contains(DefaultDexProtocols, p) {
			return fmt.Errorf("dex.protocols: unknown protocol '%s'", p)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("dex.protocols: duplicate protocol '%s'", p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level" split_words:"true"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components:
	//   - pipeline: block ingestion loop
	//   - source: block source reader
	//   - checkpoint: resumption point lookups
	//   - executor: per-block task execution
	//   - resolver: address, asset and spent output resolution
	//   - tasks: indexing tasks
	//   - dex: exchange protocol parsing
	//   - store: persistence adapter
	//   - maintenance: Database maintenance
	//   - api: query API
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty" split_words:"true"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if l == nil {
		return "info"
	}
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return l.GetDefaultLevel()
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	if l == nil || l.DefaultLevel == "" {
		return "info"
	}
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l != nil && l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address" split_words:"true"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins" split_words:"true"`
}

// APIConfig configures the query API server.
type APIConfig struct {
	Enabled       bool            `yaml:"enabled" json:"enabled" toml:"enabled"`
	ListenAddress string          `yaml:"listen_address" json:"listen_address" toml:"listen_address" split_words:"true"`
	ReadTimeout   common.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout" split_words:"true"`
	WriteTimeout  common.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout" split_words:"true"`
	IdleTimeout   common.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout" split_words:"true"`
	CORS          CORSConfig      `yaml:"cors" json:"cors" toml:"cors"`

	// MaxAddresses caps the number of addresses accepted by one query
	MaxAddresses int `yaml:"max_addresses" json:"max_addresses" toml:"max_addresses" split_words:"true"`

	// MaxLimit caps the page size of one query
	MaxLimit int `yaml:"max_limit" json:"max_limit" toml:"max_limit" split_words:"true"`
}

// ApplyDefaults sets default values for optional API configuration fields.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(10 * time.Second) //nolint:mnd
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(120 * time.Second) //nolint:mnd
	}
	if a.MaxAddresses == 0 {
		a.MaxAddresses = 100
	}
	if a.MaxLimit == 0 {
		a.MaxLimit = 1000
	}
}

// Validate checks if the API configuration is valid.
func (a *APIConfig) Validate() error {
	if a.Enabled && a.ListenAddress == "" {
		return fmt.Errorf("listen_address is required when the API is enabled")
	}
	if a.MaxAddresses < 1 || a.MaxLimit < 1 {
		return fmt.Errorf("max_addresses and max_limit must be positive")
	}
	return nil
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Source.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Resolver.ApplyDefaults()
	c.Dex.ApplyDefaults()

	if c.Maintenance != nil {
		c.Maintenance.ApplyDefaults()
	}

	if c.Retry != nil {
		c.Retry.ApplyDefaults()
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.ApplyDefaults()

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}

	if c.API != nil {
		c.API.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return err
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Maintenance != nil {
		if err := c.Maintenance.Validate(); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
	}

	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}

	if err := c.Dex.Validate(); err != nil {
		return err
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}
