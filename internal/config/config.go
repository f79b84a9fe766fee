// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/streamtally/internal/loop"
	"github.com/jeranaias/streamtally/internal/match"
	"github.com/jeranaias/streamtally/internal/report"
	"github.com/jeranaias/streamtally/internal/tally"
	"github.com/jeranaias/streamtally/internal/util"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the main configuration structure for streamtally.
type Config struct {
	Vocabulary VocabularyConfig `toml:"vocabulary" json:"vocabulary"`
	Counts     CountsConfig     `toml:"counts" json:"counts"`
	Match      MatchConfig      `toml:"match" json:"match"`
	Report     ReportConfig     `toml:"report" json:"report"`
	Stream     StreamConfig     `toml:"stream" json:"stream"`
	UI         UIConfig         `toml:"ui" json:"ui"`
	Log        LogConfig        `toml:"log" json:"log"`
	Metrics    MetricsConfig    `toml:"metrics" json:"metrics"`
	Phrases    PhrasesConfig    `toml:"phrases" json:"phrases"`
}

// VocabularyConfig selects the counted vocabulary.
type VocabularyConfig struct {
	// Preset is a built-in vocabulary name or "custom".
	Preset string `toml:"preset" json:"preset"`

	// Categories are used when Preset is "custom".
	Categories []vocab.Category `toml:"categories" json:"categories,omitempty"`
}

// CountsConfig controls the durable count table.
type CountsConfig struct {
	SnapshotPath string `toml:"snapshot_path" json:"snapshot_path"`
	Baseline     int    `toml:"baseline" json:"baseline"`
}

// MatchConfig picks the matching policy.
type MatchConfig struct {
	// Policy is "containment" or "phrase".
	Policy     string `toml:"policy" json:"policy"`
	Anchor     string `toml:"anchor" json:"anchor"`
	StopMarker string `toml:"stop_marker" json:"stop_marker"`

	// Spurious is "drop", "echo" or "strict".
	Spurious string `toml:"spurious" json:"spurious"`
}

// ReportConfig controls rendering.
type ReportConfig struct {
	// Mode is "grid", "linear" or "phrases".
	Mode          string  `toml:"mode" json:"mode"`
	Every         int     `toml:"every" json:"every"`
	MaxFPS        float64 `toml:"max_fps" json:"max_fps"`
	TextWidth     int     `toml:"text_width" json:"text_width"`
	ValueWidth    int     `toml:"value_width" json:"value_width"`
	ColumnPadding int     `toml:"column_padding" json:"column_padding"`
	ColumnHeight  int     `toml:"column_height" json:"column_height"`
	Title         string  `toml:"title" json:"title"`
}

// StreamConfig selects and configures the message source.
type StreamConfig struct {
	// Source is a registered stream name: "stdin", "follow" or "http".
	Source    string `toml:"source" json:"source"`
	Path      string `toml:"path" json:"path"`
	Endpoint  string `toml:"endpoint" json:"endpoint"`
	Backoff   string `toml:"backoff" json:"backoff"`
	FromStart bool   `toml:"from_start" json:"from_start"`

	// Token is only ever read from the environment or a prompt.
	Token string `toml:"-" json:"-"`
}

// UIConfig controls the terminal surface.
type UIConfig struct {
	// Surface is "tea", "ansi" or "plain".
	Surface string `toml:"surface" json:"surface"`
	Theme   string `toml:"theme" json:"theme"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	Path  string `toml:"path" json:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is a host:port; empty disables the endpoint.
	Listen string `toml:"listen" json:"listen"`
}

// PhrasesConfig controls the phrasebook used in phrase mode.
type PhrasesConfig struct {
	DBPath string `toml:"db_path" json:"db_path"`
	Keep   int    `toml:"keep" json:"keep"`
}

// Valid option values.
var (
	MatchPolicies = []string{"containment", "phrase"}
	ReportModes   = []string{"grid", "linear", "phrases"}
	Surfaces      = []string{"tea", "ansi", "plain"}
	Themes        = []string{"dark", "light"}
	LogLevels     = []string{"debug", "info", "warn", "error"}
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a new Config with sensible default values.
func Default() *Config {
	geom := report.DefaultGeometry()
	return &Config{
		Vocabulary: VocabularyConfig{
			Preset: "aesthetics",
		},
		Counts: CountsConfig{
			SnapshotPath: "~/.streamtally/counts.json",
			Baseline:     tally.DefaultBaseline,
		},
		Match: MatchConfig{
			Policy:     "containment",
			Anchor:     match.DefaultAnchor,
			StopMarker: match.DefaultStopMarker,
			Spurious:   string(loop.SpuriousEcho),
		},
		Report: ReportConfig{
			Mode:          "grid",
			Every:         1,
			MaxFPS:        10,
			TextWidth:     geom.TextWidth,
			ValueWidth:    geom.ValueWidth,
			ColumnPadding: geom.Padding,
			ColumnHeight:  geom.ColumnHeight,
			Title:         "TOTALS SINCE",
		},
		Stream: StreamConfig{
			Source:  "stdin",
			Backoff: loop.DefaultBackoff.String(),
		},
		UI: UIConfig{
			Surface: "tea",
			Theme:   "dark",
		},
		Log: LogConfig{
			Level: "info",
			Path:  "~/.streamtally/streamtally.log",
		},
		Phrases: PhrasesConfig{
			DBPath: "~/.streamtally/phrases.db",
			Keep:   200,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the streamtally configuration directory (~/.streamtally).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".streamtally"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load loads configuration from ~/.streamtally/config.toml.
// Returns the default configuration if the file doesn't exist.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return Default(), err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a TOML file, then applies
// environment overrides, fills defaults and validates. A missing file is
// not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadTOML(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes a TOML config file over the defaults.
func LoadTOML(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// EncodeTOML writes the configuration as commented TOML.
func (c *Config) EncodeTOML(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString("# streamtally configuration\n")
	buf.WriteString("# Environment variables (STREAMTALLY_*) override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SaveTOML writes the configuration to path atomically.
func (c *Config) SaveTOML(path string) error {
	var buf bytes.Buffer
	if err := c.EncodeTOML(&buf); err != nil {
		return err
	}
	return util.WriteFileAtomic(path, buf.Bytes(), 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects multiple validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "config validation failed:\n  - " + strings.Join(msgs, "\n  - ")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(msg, args...)})
	}
	oneOf := func(field, value string, allowed []string) {
		if !contains(allowed, value) {
			add(field, "must be one of %s, got %q", strings.Join(allowed, ", "), value)
		}
	}

	if _, err := c.BuildVocabulary(); err != nil {
		add("vocabulary", "%v", err)
	}

	if c.Counts.SnapshotPath == "" {
		add("counts.snapshot_path", "must not be empty")
	}
	if c.Counts.Baseline < 0 {
		add("counts.baseline", "must be >= 0, got %d", c.Counts.Baseline)
	}

	oneOf("match.policy", c.Match.Policy, MatchPolicies)
	if c.Match.Policy == "phrase" {
		if _, err := match.NewPhraseCapture(c.Match.Anchor, c.Match.StopMarker); err != nil {
			add("match.anchor", "%v", err)
		}
	}
	if _, err := loop.ParseSpuriousPolicy(c.Match.Spurious); err != nil {
		add("match.spurious", "%v", err)
	}

	oneOf("report.mode", c.Report.Mode, ReportModes)
	if (c.Report.Mode == "phrases") != (c.Match.Policy == "phrase") {
		add("report.mode", "phrases mode and match.policy = \"phrase\" must be used together")
	}
	if c.Report.Every < 1 {
		add("report.every", "must be >= 1, got %d", c.Report.Every)
	}
	if c.Report.MaxFPS < 0 {
		add("report.max_fps", "must be >= 0, got %g", c.Report.MaxFPS)
	}
	if c.Report.TextWidth < 1 {
		add("report.text_width", "must be positive")
	}
	if c.Report.ValueWidth < 1 {
		add("report.value_width", "must be positive")
	}
	if c.Report.ColumnHeight < 1 {
		add("report.column_height", "must be positive")
	}
	if c.Report.ColumnPadding < 0 {
		add("report.column_padding", "must be >= 0, got %d", c.Report.ColumnPadding)
	}

	switch c.Stream.Source {
	case "stdin":
	case "follow":
		if c.Stream.Path == "" {
			add("stream.path", "required for the follow source")
		}
	case "http":
		if c.Stream.Endpoint == "" {
			add("stream.endpoint", "required for the http source")
		}
	default:
		add("stream.source", "must be one of stdin, follow, http, got %q", c.Stream.Source)
	}
	if d, err := time.ParseDuration(c.Stream.Backoff); err != nil {
		add("stream.backoff", "invalid duration %q", c.Stream.Backoff)
	} else if d <= 0 {
		add("stream.backoff", "must be positive")
	}

	oneOf("ui.surface", c.UI.Surface, Surfaces)
	oneOf("ui.theme", c.UI.Theme, Themes)
	oneOf("log.level", strings.ToLower(c.Log.Level), LogLevels)

	if c.Phrases.Keep < 1 {
		add("phrases.keep", "must be >= 1, got %d", c.Phrases.Keep)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Vocabulary.Preset == "" {
		c.Vocabulary.Preset = defaults.Vocabulary.Preset
	}
	if c.Counts.SnapshotPath == "" {
		c.Counts.SnapshotPath = defaults.Counts.SnapshotPath
	}
	if c.Match.Policy == "" {
		c.Match.Policy = defaults.Match.Policy
	}
	if c.Match.Anchor == "" {
		c.Match.Anchor = defaults.Match.Anchor
	}
	if c.Match.Spurious == "" {
		c.Match.Spurious = defaults.Match.Spurious
	}
	if c.Report.Mode == "" {
		c.Report.Mode = defaults.Report.Mode
	}
	if c.Report.Every == 0 {
		c.Report.Every = defaults.Report.Every
	}
	if c.Report.TextWidth == 0 {
		c.Report.TextWidth = defaults.Report.TextWidth
	}
	if c.Report.ValueWidth == 0 {
		c.Report.ValueWidth = defaults.Report.ValueWidth
	}
	if c.Report.ColumnHeight == 0 {
		c.Report.ColumnHeight = defaults.Report.ColumnHeight
	}
	if c.Stream.Source == "" {
		c.Stream.Source = defaults.Stream.Source
	}
	if c.Stream.Backoff == "" {
		c.Stream.Backoff = defaults.Stream.Backoff
	}
	if c.UI.Surface == "" {
		c.UI.Surface = defaults.UI.Surface
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Path == "" {
		c.Log.Path = defaults.Log.Path
	}
	if c.Phrases.DBPath == "" {
		c.Phrases.DBPath = defaults.Phrases.DBPath
	}
	if c.Phrases.Keep == 0 {
		c.Phrases.Keep = defaults.Phrases.Keep
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - STREAMTALLY_SNAPSHOT: overrides counts.snapshot_path
//   - STREAMTALLY_SOURCE: overrides stream.source
//   - STREAMTALLY_ENDPOINT: overrides stream.endpoint
//   - STREAMTALLY_TOKEN: bearer token for the http source
//   - STREAMTALLY_LOG_LEVEL: overrides log.level
//   - STREAMTALLY_REPORT_MODE: overrides report.mode
//   - STREAMTALLY_METRICS_LISTEN: overrides metrics.listen
//   - STREAMTALLY_BASELINE: overrides counts.baseline
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("STREAMTALLY_SNAPSHOT"); v != "" {
		c.Counts.SnapshotPath = v
	}
	if v := os.Getenv("STREAMTALLY_SOURCE"); v != "" {
		c.Stream.Source = v
	}
	if v := os.Getenv("STREAMTALLY_ENDPOINT"); v != "" {
		c.Stream.Endpoint = v
	}
	if v := os.Getenv("STREAMTALLY_TOKEN"); v != "" {
		c.Stream.Token = v
	}
	if v := os.Getenv("STREAMTALLY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STREAMTALLY_REPORT_MODE"); v != "" {
		c.Report.Mode = v
	}
	if v := os.Getenv("STREAMTALLY_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("STREAMTALLY_BASELINE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Counts.Baseline = n
		}
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// BuildVocabulary returns the configured vocabulary.
func (c *Config) BuildVocabulary() (*vocab.Vocabulary, error) {
	if strings.EqualFold(c.Vocabulary.Preset, "custom") {
		return vocab.New(c.Vocabulary.Categories...)
	}
	return vocab.Preset(c.Vocabulary.Preset)
}

// BuildMatcher returns the matcher for the configured policy.
func (c *Config) BuildMatcher(v *vocab.Vocabulary) (match.Matcher, error) {
	if c.Match.Policy == "phrase" {
		return match.NewPhraseCapture(c.Match.Anchor, c.Match.StopMarker)
	}
	return match.NewContainment(v), nil
}

// Geometry returns the grid geometry.
func (c *Config) Geometry() report.Geometry {
	return report.Geometry{
		TextWidth:    c.Report.TextWidth,
		ValueWidth:   c.Report.ValueWidth,
		Padding:      c.Report.ColumnPadding,
		ColumnHeight: c.Report.ColumnHeight,
	}
}

// SpuriousPolicy returns the parsed spurious policy.
func (c *Config) SpuriousPolicy() loop.SpuriousPolicy {
	p, err := loop.ParseSpuriousPolicy(c.Match.Spurious)
	if err != nil {
		return loop.SpuriousEcho
	}
	return p
}

// Backoff returns the reconnect delay.
func (c *Config) Backoff() time.Duration {
	d, err := time.ParseDuration(c.Stream.Backoff)
	if err != nil || d <= 0 {
		return loop.DefaultBackoff
	}
	return d
}

// ResolvePath expands a leading ~ in one of the configured paths.
func ResolvePath(path string) string {
	expanded, err := util.ExpandHome(path)
	if err != nil {
		return path
	}
	return expanded
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
