// SPDX-License-Identifier: MIT

// Package config loads nfosync's settings from a YAML file, overlaid with
// NFOSYNC_* environment variables, matching the original addon's Kodi
// settings.xml surface (spec.md §6) plus the ambient additions SPEC_FULL.md
// §4.9 names (admin server, optional Redis cache, supplemental filesystem
// watch, logging). It is read-only at runtime except via Watch, which
// reloads on file change and invokes a callback (Service.onSettingsChanged
// in spec.md §4.4's terms).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sync mirrors spec.md §6's sync.* keys.
type Sync struct {
	ShouldClean       bool `yaml:"should_clean"`
	ShouldImport      bool `yaml:"should_import"`
	ShouldExport      bool `yaml:"should_export"`
	ShouldScan        bool `yaml:"should_scan"`
	ShouldImportFirst bool `yaml:"should_import_first"`
}

// Export mirrors spec.md §6's export.* keys.
type Export struct {
	CanCreateNfo               bool   `yaml:"can_create_nfo"`
	MovieNfoNaming             string `yaml:"movie_nfo_naming"` // movie | filename
	IsMinimal                  bool   `yaml:"is_minimal"`
	CanOverwrite               bool   `yaml:"can_overwrite"`
	ActorHandling              string `yaml:"actor_handling"` // leave | update | overwrite | merge
	ShouldExportPluginTrailers bool   `yaml:"should_export_plugin_trailers"`
}

// Triggers mirrors spec.md §6's triggers.* keys.
type Triggers struct {
	SyncOnStart      bool `yaml:"sync_on_start"`
	SyncOnScan       bool `yaml:"sync_on_scan"`
	ExportOnUpdate   bool `yaml:"export_on_update"`
	IgnoreAddUpdates bool `yaml:"ignores_add_updates"`
}

// Avoidance mirrors spec.md §6's avoidance.* keys.
type Avoidance struct {
	IsEnabled bool `yaml:"is_enabled"`
	WaitTime  int  `yaml:"wait_time"` // minutes
}

// Periodic mirrors spec.md §6's periodic.* keys.
type Periodic struct {
	IsEnabled bool `yaml:"is_enabled"`
	Period    int  `yaml:"period"` // minutes
}

// Scheduled mirrors spec.md §6's scheduled.* keys.
type Scheduled struct {
	IsEnabled      bool  `yaml:"is_enabled"`
	Time           string `yaml:"time"` // "HH:MM" local
	Days           []int  `yaml:"days"` // 0=Mon .. 6=Sun
	RunMissedSyncs bool   `yaml:"run_missed_syncs"`
}

// UI mirrors spec.md §6's ui.* keys.
type UI struct {
	ShouldShowSync          bool `yaml:"should_show_sync"`
	ShouldShowNotifications bool `yaml:"should_show_notifications"`
	IsLoggingVerbose        bool `yaml:"is_logging_verbose"`
}

// Server configures the ambient stack SPEC_FULL.md §4.9 adds: the admin
// HTTP surface and the optional shared Redis cache.
type Server struct {
	AdminAddr string `yaml:"admin_addr"`
	RedisAddr string `yaml:"redis_addr"`

	HostBaseURL     string `yaml:"host_base_url"`
	HostNotifyAddr  string `yaml:"host_notify_addr"`
}

// FSWatch configures the supplemental local filesystem watcher (SPEC_FULL.md §4.12).
type FSWatch struct {
	Enabled bool `yaml:"enabled"`
}

// Log configures structured logging verbosity/format, layered on top of
// ui.is_logging_verbose.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console; parsed but not passed to internal/log
}

// Telemetry configures the OpenTelemetry tracer provider (SPEC_FULL.md
// §4.9's observability ambient stack). Disabled by default: tracing is
// in-process instrumentation for HostClient/admin-surface spans, not a
// shipped exporter pipeline.
type Telemetry struct {
	Enabled      bool    `yaml:"enabled"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Profile is the directory persistent state (LastKnownStore, timestamps)
// is rooted at.
type Profile struct {
	Dir string `yaml:"dir"`
}

// Config is the full, strongly typed settings tree.
type Config struct {
	Sync      Sync      `yaml:"sync"`
	Export    Export    `yaml:"export"`
	Triggers  Triggers  `yaml:"triggers"`
	Avoidance Avoidance `yaml:"avoidance"`
	Periodic  Periodic  `yaml:"periodic"`
	Scheduled Scheduled `yaml:"scheduled"`
	UI        UI        `yaml:"ui"`
	Server    Server    `yaml:"server"`
	FSWatch   FSWatch   `yaml:"fswatch"`
	Log       Log       `yaml:"log"`
	Telemetry Telemetry `yaml:"telemetry"`
	Profile   Profile   `yaml:"profile"`
}

// Default returns the configuration the addon ships with out of the box,
// matching original_source/resources/settings.xml's shipped defaults
// where sensible for a headless Go service.
func Default() Config {
	return Config{
		Sync: Sync{
			ShouldClean:       true,
			ShouldImport:      true,
			ShouldExport:      true,
			ShouldScan:        true,
			ShouldImportFirst: false,
		},
		Export: Export{
			CanCreateNfo:   true,
			MovieNfoNaming: "movie",
			CanOverwrite:   true,
			ActorHandling:  "update",
		},
		Triggers: Triggers{
			SyncOnStart:    true,
			SyncOnScan:     true,
			ExportOnUpdate: true,
		},
		Avoidance: Avoidance{IsEnabled: true, WaitTime: 5},
		Periodic:  Periodic{IsEnabled: true, Period: 60},
		Scheduled: Scheduled{IsEnabled: false, Time: "03:00", Days: []int{0, 1, 2, 3, 4, 5, 6}},
		UI:        UI{ShouldShowSync: true, ShouldShowNotifications: true},
		Server:    Server{AdminAddr: ":8765", HostBaseURL: "http://localhost:8080/jsonrpc"},
		Log:       Log{Level: "info", Format: "json"},
		Telemetry: Telemetry{Enabled: false, SamplingRate: 0.1},
		Profile:   Profile{Dir: "./profile"},
	}
}

// validMovieNfoNaming / validActorHandling enumerate spec.md §6's closed
// value sets for strict validation.
var (
	validMovieNfoNaming = map[string]bool{"movie": true, "filename": true}
	validActorHandling  = map[string]bool{"leave": true, "update": true, "overwrite": true, "merge": true}
)

// Validate checks the closed-value-set fields and numeric ranges spec.md
// §6 implies, rejecting a Config that would otherwise fail silently deep
// inside an Action.
func (c Config) Validate() error {
	if c.Export.MovieNfoNaming != "" && !validMovieNfoNaming[c.Export.MovieNfoNaming] {
		return fmt.Errorf("export.movie_nfo_naming: invalid value %q", c.Export.MovieNfoNaming)
	}
	if c.Export.ActorHandling != "" && !validActorHandling[c.Export.ActorHandling] {
		return fmt.Errorf("export.actor_handling: invalid value %q", c.Export.ActorHandling)
	}
	for _, d := range c.Scheduled.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("scheduled.days: invalid weekday %d (must be 0-6)", d)
		}
	}
	if c.Periodic.IsEnabled && c.Periodic.Period <= 0 {
		return fmt.Errorf("periodic.period: must be positive when periodic.is_enabled")
	}
	if c.Avoidance.WaitTime < 0 {
		return fmt.Errorf("avoidance.wait_time: must be non-negative")
	}
	if c.Profile.Dir == "" {
		return fmt.Errorf("profile.dir: must not be empty")
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate: must be within [0,1]")
	}
	return nil
}

// Load reads path as YAML on top of Default(), then applies NFOSYNC_*
// environment overrides, and validates the result. A missing path is not
// an error: Default() plus env overrides is a valid configuration for a
// first run.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envOverrides maps NFOSYNC_<KEY> to a setter applied against cfg,
// grounded in the teacher's internal/config/merge_env.go pattern scaled
// down to this engine's much smaller key set.
var envOverrides = map[string]func(c *Config, v string){
	"NFOSYNC_SYNC_SHOULD_CLEAN":      func(c *Config, v string) { c.Sync.ShouldClean = parseBool(v, c.Sync.ShouldClean) },
	"NFOSYNC_SYNC_SHOULD_IMPORT":     func(c *Config, v string) { c.Sync.ShouldImport = parseBool(v, c.Sync.ShouldImport) },
	"NFOSYNC_SYNC_SHOULD_EXPORT":     func(c *Config, v string) { c.Sync.ShouldExport = parseBool(v, c.Sync.ShouldExport) },
	"NFOSYNC_SYNC_SHOULD_SCAN":       func(c *Config, v string) { c.Sync.ShouldScan = parseBool(v, c.Sync.ShouldScan) },
	"NFOSYNC_SYNC_IMPORT_FIRST":      func(c *Config, v string) { c.Sync.ShouldImportFirst = parseBool(v, c.Sync.ShouldImportFirst) },
	"NFOSYNC_EXPORT_CAN_CREATE_NFO":  func(c *Config, v string) { c.Export.CanCreateNfo = parseBool(v, c.Export.CanCreateNfo) },
	"NFOSYNC_EXPORT_MOVIE_NAMING":    func(c *Config, v string) { c.Export.MovieNfoNaming = v },
	"NFOSYNC_EXPORT_IS_MINIMAL":      func(c *Config, v string) { c.Export.IsMinimal = parseBool(v, c.Export.IsMinimal) },
	"NFOSYNC_EXPORT_CAN_OVERWRITE":   func(c *Config, v string) { c.Export.CanOverwrite = parseBool(v, c.Export.CanOverwrite) },
	"NFOSYNC_EXPORT_ACTOR_HANDLING":  func(c *Config, v string) { c.Export.ActorHandling = v },
	"NFOSYNC_TRIGGERS_SYNC_ON_START": func(c *Config, v string) { c.Triggers.SyncOnStart = parseBool(v, c.Triggers.SyncOnStart) },
	"NFOSYNC_TRIGGERS_SYNC_ON_SCAN":  func(c *Config, v string) { c.Triggers.SyncOnScan = parseBool(v, c.Triggers.SyncOnScan) },
	"NFOSYNC_TRIGGERS_EXPORT_ON_UPDATE": func(c *Config, v string) {
		c.Triggers.ExportOnUpdate = parseBool(v, c.Triggers.ExportOnUpdate)
	},
	"NFOSYNC_AVOIDANCE_IS_ENABLED": func(c *Config, v string) { c.Avoidance.IsEnabled = parseBool(v, c.Avoidance.IsEnabled) },
	"NFOSYNC_AVOIDANCE_WAIT_TIME":  func(c *Config, v string) { c.Avoidance.WaitTime = parseInt(v, c.Avoidance.WaitTime) },
	"NFOSYNC_PERIODIC_IS_ENABLED":  func(c *Config, v string) { c.Periodic.IsEnabled = parseBool(v, c.Periodic.IsEnabled) },
	"NFOSYNC_PERIODIC_PERIOD":      func(c *Config, v string) { c.Periodic.Period = parseInt(v, c.Periodic.Period) },
	"NFOSYNC_SCHEDULED_IS_ENABLED": func(c *Config, v string) { c.Scheduled.IsEnabled = parseBool(v, c.Scheduled.IsEnabled) },
	"NFOSYNC_SCHEDULED_TIME":       func(c *Config, v string) { c.Scheduled.Time = v },
	"NFOSYNC_SERVER_ADMIN_ADDR":    func(c *Config, v string) { c.Server.AdminAddr = v },
	"NFOSYNC_SERVER_REDIS_ADDR":    func(c *Config, v string) { c.Server.RedisAddr = v },
	"NFOSYNC_SERVER_HOST_BASE_URL": func(c *Config, v string) { c.Server.HostBaseURL = v },
	"NFOSYNC_SERVER_HOST_NOTIFY_ADDR": func(c *Config, v string) { c.Server.HostNotifyAddr = v },
	"NFOSYNC_FSWATCH_ENABLED":      func(c *Config, v string) { c.FSWatch.Enabled = parseBool(v, c.FSWatch.Enabled) },
	"NFOSYNC_LOG_LEVEL":            func(c *Config, v string) { c.Log.Level = v },
	"NFOSYNC_LOG_FORMAT":           func(c *Config, v string) { c.Log.Format = v },
	"NFOSYNC_TELEMETRY_ENABLED":    func(c *Config, v string) { c.Telemetry.Enabled = parseBool(v, c.Telemetry.Enabled) },
	"NFOSYNC_TELEMETRY_SAMPLING_RATE": func(c *Config, v string) {
		c.Telemetry.SamplingRate = parseFloat(v, c.Telemetry.SamplingRate)
	},
	"NFOSYNC_PROFILE_DIR": func(c *Config, v string) { c.Profile.Dir = v },
}

func applyEnvOverrides(cfg *Config) {
	for key, setter := range envOverrides {
		if v, ok := os.LookupEnv(key); ok {
			setter(cfg, strings.TrimSpace(v))
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(v string, fallback float64) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
