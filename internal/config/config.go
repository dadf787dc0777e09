package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Project config file names, looked up in the project root. The .yaml
// form takes precedence.
const (
	ProjectConfigName    = ".semdex.yaml"
	ProjectConfigAltName = ".semdex.yml"
)

// Config represents the complete semdex configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Store       StoreConfig       `yaml:"store" json:"store"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Watch       WatchConfig       `yaml:"watch" json:"watch"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig configures search and chunking parameters.
// The lexical weight is configurable via:
//  1. User config (~/.config/semdex/config.yaml) - personal defaults
//  2. Project config (.semdex.yaml) - per-repo tuning
//  3. Env vars (SEMDEX_LEXICAL_WEIGHT) - highest priority
type SearchConfig struct {
	// LexicalWeight is the weight of the lexical score in hybrid search (0.0-1.0).
	// 0 disables lexical blending entirely; semantic score keeps weight 1-w.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// LexicalBackend selects the keyword index backend.
	// Options: "sqlite" (default, FTS5 with concurrent access) or "bleve".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`

	// MinScore drops results scoring below this cosine similarity (-1.0-1.0).
	MinScore float64 `yaml:"min_score" json:"min_score"`

	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
	MaxResults   int `yaml:"max_results" json:"max_results"`
}

// EmbeddingsConfig configures the embedding backend.
type EmbeddingsConfig struct {
	// Provider selects the backend: "gpu", "remote", "static", or "auto"/""
	// (probe gpu, then remote, then static, take the first that initializes).
	Provider string `yaml:"provider" json:"provider"`

	// Model names the embedding model. Empty uses the backend's default.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the vector width. 0 auto-detects from the backend.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize bounds texts per sub-batch in EmbedBatch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// MaxBatchConcurrency bounds sub-batches in flight at once.
	MaxBatchConcurrency int `yaml:"max_batch_concurrency" json:"max_batch_concurrency"`

	// MaxRetries bounds retry attempts per embedding call.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RemoteBaseURL points the remote backend at an OpenAI-compatible API.
	// Empty uses the OpenAI default; Ollama works via http://localhost:11434/v1.
	RemoteBaseURL string `yaml:"remote_base_url" json:"remote_base_url"`

	// RequestsPerSecond paces remote requests. 0 disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// SidecarEndpoint is the GPU sidecar address (default: http://localhost:8756).
	SidecarEndpoint string `yaml:"sidecar_endpoint" json:"sidecar_endpoint"`

	// ModelDownloadTimeout caps a single model artifact download.
	ModelDownloadTimeout time.Duration `yaml:"model_download_timeout" json:"model_download_timeout"`

	// CacheSize is the embedding LRU cache capacity in entries. 0 uses the
	// default; negative disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// StoreConfig configures the sharded vector store.
type StoreConfig struct {
	// Dir is the storage root. Empty resolves to <project>/.semdex.
	Dir string `yaml:"dir" json:"dir"`

	// ShardCount fixes the number of shards at index creation.
	// Changing it later requires a full re-index.
	ShardCount int `yaml:"shard_count" json:"shard_count"`

	// SQLiteCacheMB is the per-shard SQLite page cache size in MB.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// PerformanceConfig configures performance tuning options.
type PerformanceConfig struct {
	MaxFiles int `yaml:"max_files" json:"max_files"`

	// IndexWorkers sizes the worker pool. 0 means NumCPU-1, clamped to
	// the shard count.
	IndexWorkers int `yaml:"index_workers" json:"index_workers"`

	// MaxFileSizeKB skips files larger than this during scanning.
	MaxFileSizeKB int `yaml:"max_file_size_kb" json:"max_file_size_kb"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// Debounce is the window for coalescing rapid file events (e.g. "500ms").
	Debounce string `yaml:"debounce" json:"debounce"`
}

// TelemetryConfig configures local query telemetry.
type TelemetryConfig struct {
	// Enabled toggles the local metrics database. Nothing leaves the machine.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// FlushInterval is how often buffered metrics hit disk (e.g. "30s").
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/.semdex/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Search: SearchConfig{
			LexicalWeight:  0.35,
			LexicalBackend: "sqlite",
			MinScore:       0,
			ChunkSize:      2000,
			ChunkOverlap:   200,
			MaxResults:     20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:             "", // Empty triggers auto-detection: gpu -> remote -> static
			Model:                "",
			Dimensions:           0, // Auto-detect from embedder
			BatchSize:            32,
			MaxBatchConcurrency:  4,
			MaxRetries:           3,
			RemoteBaseURL:        "",
			RequestsPerSecond:    0,
			SidecarEndpoint:      "", // Empty uses default http://localhost:8756
			ModelDownloadTimeout: 10 * time.Minute,
			CacheSize:            4096,
		},
		Store: StoreConfig{
			Dir:           "",
			ShardCount:    8,
			SQLiteCacheMB: 64,
		},
		Performance: PerformanceConfig{
			MaxFiles:      100000,
			IndexWorkers:  0, // Auto: NumCPU-1 clamped to shard count
			MaxFileSizeKB: 1024,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			FlushInterval: "30s",
		},
	}
}

// DefaultStorageDir returns the default index storage directory for a project.
func DefaultStorageDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".semdex")
}

// StorageDir resolves the configured storage directory against a project root.
func (c *Config) StorageDir(projectRoot string) string {
	if c.Store.Dir != "" {
		if filepath.IsAbs(c.Store.Dir) {
			return c.Store.Dir
		}
		return filepath.Join(projectRoot, c.Store.Dir)
	}
	return DefaultStorageDir(projectRoot)
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/semdex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/semdex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "semdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "semdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "semdex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	// Check if file exists
	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	// Load the config
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/semdex/config.yaml)
//  3. Project config (.semdex.yaml in project root)
//  4. Environment variables (SEMDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .semdex.yaml or .semdex.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ProjectConfigName)
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ProjectConfigAltName)
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Use a temporary struct for parsing to detect type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	// Search
	// Note: 0 disables lexical blending, but merging can't tell "unset" from
	// zero, so explicit zeros go through SEMDEX_LEXICAL_WEIGHT instead.
	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.LexicalBackend != "" {
		c.Search.LexicalBackend = other.Search.LexicalBackend
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.ChunkSize != 0 {
		c.Search.ChunkSize = other.Search.ChunkSize
	}
	if other.Search.ChunkOverlap != 0 {
		c.Search.ChunkOverlap = other.Search.ChunkOverlap
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.MaxBatchConcurrency != 0 {
		c.Embeddings.MaxBatchConcurrency = other.Embeddings.MaxBatchConcurrency
	}
	if other.Embeddings.MaxRetries != 0 {
		c.Embeddings.MaxRetries = other.Embeddings.MaxRetries
	}
	if other.Embeddings.RemoteBaseURL != "" {
		c.Embeddings.RemoteBaseURL = other.Embeddings.RemoteBaseURL
	}
	if other.Embeddings.RequestsPerSecond != 0 {
		c.Embeddings.RequestsPerSecond = other.Embeddings.RequestsPerSecond
	}
	if other.Embeddings.SidecarEndpoint != "" {
		c.Embeddings.SidecarEndpoint = other.Embeddings.SidecarEndpoint
	}
	if other.Embeddings.ModelDownloadTimeout != 0 {
		c.Embeddings.ModelDownloadTimeout = other.Embeddings.ModelDownloadTimeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Store
	if other.Store.Dir != "" {
		c.Store.Dir = other.Store.Dir
	}
	if other.Store.ShardCount != 0 {
		c.Store.ShardCount = other.Store.ShardCount
	}
	if other.Store.SQLiteCacheMB != 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	// Performance
	if other.Performance.MaxFiles != 0 {
		c.Performance.MaxFiles = other.Performance.MaxFiles
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.MaxFileSizeKB != 0 {
		c.Performance.MaxFileSizeKB = other.Performance.MaxFileSizeKB
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Watch
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Telemetry
	// Enabled is boolean - merge only when other telemetry config was set
	if other.Telemetry.FlushInterval != "" {
		c.Telemetry.Enabled = other.Telemetry.Enabled
		c.Telemetry.FlushInterval = other.Telemetry.FlushInterval
	}
}

// applyEnvOverrides applies SEMDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Search (env vars support explicit zero values, unlike YAML merging)
	if v := os.Getenv("SEMDEX_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("SEMDEX_MIN_SCORE"); v != "" {
		if s, err := parseFloat64(v); err == nil && s >= -1 && s <= 1 {
			c.Search.MinScore = s
		}
	}
	if v := os.Getenv("SEMDEX_LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}

	if v := os.Getenv("SEMDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// SEMDEX_EMBEDDER is an alias for SEMDEX_EMBEDDINGS_PROVIDER
	if v := os.Getenv("SEMDEX_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SEMDEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SEMDEX_REMOTE_BASE_URL"); v != "" {
		c.Embeddings.RemoteBaseURL = v
	}
	if v := os.Getenv("SEMDEX_SIDECAR_ENDPOINT"); v != "" {
		c.Embeddings.SidecarEndpoint = v
	}

	if v := os.Getenv("SEMDEX_SHARD_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Store.ShardCount = n
		}
	}
	if v := os.Getenv("SEMDEX_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Performance.IndexWorkers = n
		}
	}

	if v := os.Getenv("SEMDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SEMDEX_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}

	if v := os.Getenv("SEMDEX_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// DetectProjectType detects the project type based on marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt
func DetectProjectType(dir string) ProjectType {
	// Check for Go project
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}

	// Check for Node.js project
	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}

	// Check for Python project
	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}

	return ProjectTypeUnknown
}

// FindProjectRoot finds the project root directory.
// It looks for .git directory or .semdex.yaml/.yml file by walking up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		// Check for .git directory
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		// Check for .semdex.yaml or .semdex.yml
		if fileExists(filepath.Join(currentDir, ProjectConfigName)) ||
			fileExists(filepath.Join(currentDir, ProjectConfigAltName)) {
			return currentDir, nil
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs discovers common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"} // Next.js, etc.

	var found []string

	// Check common source directories
	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	// Check for framework-specific directories
	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}

	return found
}

// DiscoverDocsDirs discovers documentation directories in the project.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string

	// Check common doc directories
	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	// Check for README files
	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break // Only add one README
		}
	}

	return found
}

// isNextJS checks if the project is a Next.js project.
func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of ProjectType.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown returns true if the project type is known (not unknown).
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate validates the configuration and returns a validation error if invalid.
func (c *Config) Validate() error {
	// Validate search weights
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight), nil)
	}
	if c.Search.MinScore < -1 || c.Search.MinScore > 1 {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("min_score must be between -1 and 1, got %f", c.Search.MinScore), nil)
	}

	// Validate chunking
	if c.Search.MaxResults < 0 {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("max_results must be non-negative, got %d", c.Search.MaxResults), nil)
	}
	if c.Search.ChunkSize <= 0 {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("chunk_size must be positive, got %d", c.Search.ChunkSize), nil)
	}
	if c.Search.ChunkOverlap < 0 || c.Search.ChunkOverlap >= c.Search.ChunkSize {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("chunk_overlap must be in [0, chunk_size), got %d", c.Search.ChunkOverlap), nil)
	}

	// Validate lexical backend
	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Search.LexicalBackend)] {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("search.lexical_backend must be 'sqlite' or 'bleve', got %s", c.Search.LexicalBackend), nil)
	}

	// Validate provider (empty string allowed for auto-detection)
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"gpu": true, "remote": true, "static": true, "auto": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return semerrors.New(semerrors.ErrCodeInvalidInput,
				fmt.Sprintf("embeddings.provider must be 'gpu', 'remote', 'static', 'auto', or empty (auto-detect), got %s", c.Embeddings.Provider), nil)
		}
	}

	// Validate shard count
	if c.Store.ShardCount < 1 {
		return semerrors.New(semerrors.ErrCodeInvalidShard,
			fmt.Sprintf("store.shard_count must be at least 1, got %d", c.Store.ShardCount), nil)
	}

	// Validate transport
	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport), nil)
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return semerrors.New(semerrors.ErrCodeInvalidInput,
			fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}

	// Validate watch debounce parses if set
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return semerrors.New(semerrors.ErrCodeInvalidInput,
				fmt.Sprintf("watch.debounce must be a duration like '500ms', got %s", c.Watch.Debounce), nil)
		}
	}

	return nil
}

// WatchDebounce returns the parsed debounce window, falling back to 500ms.
func (c *Config) WatchDebounce() time.Duration {
	if c.Watch.Debounce == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// TelemetryFlushInterval returns the parsed flush interval, falling back to 30s.
func (c *Config) TelemetryFlushInterval() time.Duration {
	if c.Telemetry.FlushInterval == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.Telemetry.FlushInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.LexicalWeight == 0 {
		c.Search.LexicalWeight = defaults.Search.LexicalWeight
		added = append(added, "search.lexical_weight")
	}
	if c.Search.LexicalBackend == "" {
		c.Search.LexicalBackend = defaults.Search.LexicalBackend
		added = append(added, "search.lexical_backend")
	}

	if c.Embeddings.BatchSize == 0 {
		c.Embeddings.BatchSize = defaults.Embeddings.BatchSize
		added = append(added, "embeddings.batch_size")
	}
	if c.Embeddings.CacheSize == 0 {
		c.Embeddings.CacheSize = defaults.Embeddings.CacheSize
		added = append(added, "embeddings.cache_size")
	}

	if c.Store.ShardCount == 0 {
		c.Store.ShardCount = defaults.Store.ShardCount
		added = append(added, "store.shard_count")
	}
	if c.Store.SQLiteCacheMB == 0 {
		c.Store.SQLiteCacheMB = defaults.Store.SQLiteCacheMB
		added = append(added, "store.sqlite_cache_mb")
	}

	if c.Watch.Debounce == "" {
		c.Watch.Debounce = defaults.Watch.Debounce
		added = append(added, "watch.debounce")
	}
	if c.Telemetry.FlushInterval == "" {
		c.Telemetry.FlushInterval = defaults.Telemetry.FlushInterval
		added = append(added, "telemetry.flush_interval")
	}

	return added
}
