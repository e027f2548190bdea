package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment variables that override file configuration.
const (
	EnvRepo  = "TIMEOFME_REPO"
	EnvToken = "TIMEOFME_TOKEN"
)

// DefaultCacheTTLHours applies when cache_ttl_hours is not set.
const DefaultCacheTTLHours = 24

// DefaultCommonActivities is used until the config names its own list.
var DefaultCommonActivities = []string{"Sleep"}

// Config holds application configuration.
type Config struct {
	// Repo is the GitHub repository holding the backups, as "owner/name".
	Repo string `json:"repo" validate:"required,contains=/"`

	// BackupDir is the directory inside Repo that holds the *.json snapshots.
	BackupDir string `json:"backup_dir"`

	// APIBaseURL is the GitHub API root. Overridable for GitHub Enterprise and tests.
	APIBaseURL string `json:"api_base_url" validate:"required,url"`

	// CacheTTLHours is how long a cached backup listing is considered fresh.
	// 0 always asks the remote; stale listings are still served when the
	// remote listing fails. Nil means DefaultCacheTTLHours.
	CacheTTLHours *int `json:"cache_ttl_hours,omitempty" validate:"omitempty,gte=0,lte=8760"`

	// HTTPTimeoutSeconds bounds each listing or download request.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds" validate:"gte=0,lte=300"`

	// Timezone is the IANA zone used for day/week/month boundaries.
	// Empty means the machine's local zone.
	Timezone string `json:"timezone,omitempty"`

	// CommonActivities names activities hidden by the "exclude common" toggle
	// (sleep, meals, commute...). Matched case-insensitively. A list in the
	// config file replaces DefaultCommonActivities.
	CommonActivities []string `json:"common_activities,omitempty"`

	// ExportsDir overrides the default export directory (~/.timeofme/exports).
	ExportsDir string `json:"exports_dir,omitempty"`

	// AllowedPaths is an allowlist of extra directories for report exports.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for exports.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" validate:"gte=0"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" validate:"gte=0"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Debug switches logging to zap's development config.
	Debug bool `json:"debug,omitempty"`

	// Token is a GitHub token sent as bearer auth. Only read from TIMEOFME_TOKEN.
	Token string `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Repo:               "SuwonJ/timeofme",
		BackupDir:          "backups",
		APIBaseURL:         "https://api.github.com",
		CacheTTLHours:      IntPtr(DefaultCacheTTLHours),
		HTTPTimeoutSeconds: 15,
		CommonActivities:   append([]string(nil), DefaultCommonActivities...),
	}
}

// Load loads configuration from baseDir/config.json and applies environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.timeofme.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if cfg.ExportsDir == "" {
		cfg.ExportsDir = filepath.Join(baseDir, "exports")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

func applyEnv(cfg *Config) {
	if repo := strings.TrimSpace(os.Getenv(EnvRepo)); repo != "" {
		cfg.Repo = repo
	}
	if token := strings.TrimSpace(os.Getenv(EnvToken)); token != "" {
		cfg.Token = token
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that Timezone names a loadable zone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location returns the zone used for calendar ranges.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CacheTTL returns the listing cache freshness window.
func (c *Config) CacheTTL() time.Duration {
	hours := DefaultCacheTTLHours
	if c.CacheTTLHours != nil {
		hours = *c.CacheTTLHours
	}
	return time.Duration(hours) * time.Hour
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// HTTPTimeout returns the per-request timeout for remote calls.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; allowlists are merged and
// deduplicated; CommonActivities from overlay replaces base.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Repo = firstNonEmpty(overlay.Repo, base.Repo)
	result.BackupDir = firstNonEmpty(overlay.BackupDir, base.BackupDir)
	result.APIBaseURL = firstNonEmpty(overlay.APIBaseURL, base.APIBaseURL)
	result.Timezone = firstNonEmpty(overlay.Timezone, base.Timezone)
	result.ExportsDir = firstNonEmpty(overlay.ExportsDir, base.ExportsDir)
	result.Token = firstNonEmpty(overlay.Token, base.Token)

	// Pointer scalars: overlay wins when set, so an explicit 0 survives
	result.CacheTTLHours = base.CacheTTLHours
	if overlay.CacheTTLHours != nil {
		result.CacheTTLHours = IntPtr(*overlay.CacheTTLHours)
	}

	result.HTTPTimeoutSeconds = overlay.HTTPTimeoutSeconds
	if result.HTTPTimeoutSeconds == 0 {
		result.HTTPTimeoutSeconds = base.HTTPTimeoutSeconds
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.Debug = base.Debug || overlay.Debug

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	// Preference lists: overlay replaces base when it names anything
	result.CommonActivities = mergeStringSlice(nil, overlay.CommonActivities)
	if result.CommonActivities == nil {
		result.CommonActivities = mergeStringSlice(nil, base.CommonActivities)
	}
	return result
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
