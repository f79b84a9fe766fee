// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jeranaias/streamtally/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	envFile    string
}

// load reads .env files, the config file and the global flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	envFiles := []string{".env"}
	if o.envFile != "" {
		envFiles = []string{o.envFile}
	}
	if dir, err := config.ConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(dir, ".env"))
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	path := o.configPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// NewRootCommand builds the streamtally command tree.
func NewRootCommand(std Streams) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "streamtally",
		Short: "Count vocabulary terms in a live message stream",
		Long: `streamtally reads a stream of short messages, counts the vocabulary
terms each one mentions, keeps the totals on disk, and shows them on a
live terminal dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(std.In)
	root.SetOut(std.Out)
	root.SetErr(std.Err)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.streamtally/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file instead of ./.env")

	root.AddCommand(
		newRunCommand(opts, std),
		newReportCommand(opts, std),
		newResetCommand(opts, std),
		newVocabCommand(opts, std),
		newConfigCommand(opts, std),
		newVersionCommand(std),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	std := StdStreams()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(std).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(std.Err, "Error: %v\n", err)
		return 1
	}
	return 0
}

// =============================================================================
// RUN COMMAND
// =============================================================================

// runOptions override config values for a single run.
type runOptions struct {
	source        string
	path          string
	endpoint      string
	fromStart     bool
	mode          string
	policy        string
	spurious      string
	surface       string
	snapshot      string
	preset        string
	metricsListen string
	every         int
}

func (o *runOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.source, "source", "s", "", "stream source: stdin, follow, http")
	fs.StringVar(&o.path, "path", "", "file to tail with the follow source")
	fs.StringVar(&o.endpoint, "endpoint", "", "NDJSON endpoint for the http source")
	fs.BoolVar(&o.fromStart, "from-start", false, "follow source: read the file from the beginning")
	fs.StringVarP(&o.mode, "mode", "m", "", "report mode: grid, linear, phrases")
	fs.StringVar(&o.policy, "policy", "", "match policy: containment, phrase")
	fs.StringVar(&o.spurious, "spurious", "", "spurious policy: drop, echo, strict")
	fs.StringVar(&o.surface, "surface", "", "terminal surface: tea, ansi, plain")
	fs.StringVar(&o.snapshot, "snapshot", "", "count snapshot path")
	fs.StringVar(&o.preset, "vocab", "", "built-in vocabulary preset")
	fs.StringVar(&o.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	fs.IntVar(&o.every, "every", 0, "repaint every Nth message")
}

// apply copies the flags the user actually set onto cfg.
func (o *runOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("source", &cfg.Stream.Source, o.source)
	set("path", &cfg.Stream.Path, o.path)
	set("endpoint", &cfg.Stream.Endpoint, o.endpoint)
	set("mode", &cfg.Report.Mode, o.mode)
	set("policy", &cfg.Match.Policy, o.policy)
	set("spurious", &cfg.Match.Spurious, o.spurious)
	set("surface", &cfg.UI.Surface, o.surface)
	set("snapshot", &cfg.Counts.SnapshotPath, o.snapshot)
	set("vocab", &cfg.Vocabulary.Preset, o.preset)
	set("metrics-listen", &cfg.Metrics.Listen, o.metricsListen)
	if fs.Changed("from-start") {
		cfg.Stream.FromStart = o.fromStart
	}
	if fs.Changed("every") {
		cfg.Report.Every = o.every
	}

	// Phrase capture only makes sense with the phrase dashboard.
	if fs.Changed("mode") && o.mode == "phrases" && !fs.Changed("policy") {
		cfg.Match.Policy = "phrase"
	}
	if fs.Changed("policy") && o.policy == "phrase" && !fs.Changed("mode") {
		cfg.Report.Mode = "phrases"
	}
}

func newRunCommand(root *rootOptions, std Streams) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume the stream and show the live dashboard",
		Example: `  tail -F tweets.ndjson | streamtally run --surface plain --mode linear
  streamtally run --source follow --path /var/log/messages.ndjson
  streamtally run --source http --endpoint https://stream.example/v1 --metrics-listen :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opts.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return Run(cmd.Context(), cfg, std)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

// =============================================================================
// VERSION COMMAND
// =============================================================================

// VersionData is the JSON form of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

func newVersionCommand(std Streams) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if asJSON {
				enc := json.NewEncoder(std.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(VersionData{
					Version:   Version,
					GitCommit: GitCommit,
					BuildDate: BuildDate,
					GoVersion: runtime.Version(),
				})
			}
			fmt.Fprintf(std.Out, "streamtally version %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
