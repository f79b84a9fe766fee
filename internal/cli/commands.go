// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/streamtally/internal/config"
	"github.com/jeranaias/streamtally/internal/phrases"
	"github.com/jeranaias/streamtally/internal/report"
	"github.com/jeranaias/streamtally/internal/tally"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// =============================================================================
// REPORT
// =============================================================================

func newReportCommand(root *rootOptions, std Streams) *cobra.Command {
	var (
		snapshot string
		asJSON   bool
		top      int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the saved totals without consuming the stream",
		Long: `Print the linear per-category report from the count snapshot.
With match.policy = "phrase", print the most frequent captured phrases instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("snapshot") {
				cfg.Counts.SnapshotPath = snapshot
			}
			if cfg.Match.Policy == "phrase" {
				return printTopPhrases(std.Out, cfg, top)
			}
			return printReport(std.Out, cfg, asJSON)
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "count snapshot path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot as JSON")
	cmd.Flags().IntVarP(&top, "top", "n", 20, "phrases to list in phrase mode")
	return cmd
}

func printReport(w io.Writer, cfg *config.Config, asJSON bool) error {
	v, err := cfg.BuildVocabulary()
	if err != nil {
		return err
	}
	path := config.ResolvePath(cfg.Counts.SnapshotPath)
	table, err := tally.Load(path, v, cfg.Counts.Baseline)
	if err != nil {
		if errors.Is(err, tally.ErrSnapshotMissing) {
			return fmt.Errorf("no snapshot at %s; run `streamtally run` or `streamtally reset` first", path)
		}
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(table.Snapshot())
	}
	for _, line := range report.Linear(table, v) {
		fmt.Fprintln(w, line)
	}
	return nil
}

func printTopPhrases(w io.Writer, cfg *config.Config, n int) error {
	book, err := phrases.Open(config.ResolvePath(cfg.Phrases.DBPath), cfg.Phrases.Keep)
	if err != nil {
		return err
	}
	defer book.Close()

	top, err := book.Top(n)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Fprintln(w, "no phrases captured yet")
		return nil
	}
	for _, e := range top {
		fmt.Fprintf(w, "%6d  %s %s\n", e.Count, cfg.Match.Anchor, e.Phrase)
	}
	return nil
}

// =============================================================================
// RESET
// =============================================================================

func newResetCommand(root *rootOptions, std Streams) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Overwrite the count snapshot with baseline counts",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			v, err := cfg.BuildVocabulary()
			if err != nil {
				return err
			}

			path := config.ResolvePath(cfg.Counts.SnapshotPath)
			if _, err := os.Stat(path); err == nil {
				ok, err := requireConfirmation(std, confirm, "reset all counts in "+path)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(std.Out, "Cancelled.")
					return nil
				}
			}

			if err := tally.New(v, cfg.Counts.Baseline).Persist(path); err != nil {
				return err
			}
			fmt.Fprintf(std.Out, "Reset %d terms to %d in %s\n", v.Len(), cfg.Counts.Baseline, path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// requireConfirmation asks before a destructive action. The flag skips the
// prompt; without it, a non-interactive stdin is an error.
func requireConfirmation(std Streams, confirmFlag bool, action string) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if f, ok := std.In.(*os.File); ok && f == os.Stdin && !IsTTY() {
		return false, &TTYRequiredError{Operation: "confirm (use --yes)"}
	}

	fmt.Fprintf(std.Out, "About to %s. Continue? [y/N] ", action)
	line, err := bufio.NewReader(std.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// =============================================================================
// VOCAB
// =============================================================================

func newVocabCommand(root *rootOptions, std Streams) *cobra.Command {
	var listPresets bool
	cmd := &cobra.Command{
		Use:   "vocab [preset]",
		Short: "List the counted vocabulary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if listPresets {
				for _, name := range vocab.PresetNames() {
					fmt.Fprintln(std.Out, name)
				}
				return nil
			}

			var v *vocab.Vocabulary
			if len(args) == 1 {
				p, err := vocab.Preset(args[0])
				if err != nil {
					return err
				}
				v = p
			} else {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				if v, err = cfg.BuildVocabulary(); err != nil {
					return err
				}
			}
			printVocabulary(std.Out, v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&listPresets, "presets", false, "list built-in vocabularies")
	return cmd
}

func printVocabulary(w io.Writer, v *vocab.Vocabulary) {
	for _, c := range v.Categories() {
		fmt.Fprintf(w, "%s (%d)\n", strings.ToUpper(c.Name), len(c.Terms))
		for _, t := range c.Terms {
			fmt.Fprintf(w, "  %s\n", t)
		}
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func newConfigCommand(root *rootOptions, std Streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return cfg.EncodeTOML(std.Out)
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			path := root.configPath
			if path == "" {
				p, err := config.ConfigPathTOML()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Default().SaveTOML(path); err != nil {
				return err
			}
			fmt.Fprintf(std.Out, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}
