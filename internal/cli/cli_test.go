// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamtally/internal/config"
	"github.com/jeranaias/streamtally/internal/loop"
	"github.com/jeranaias/streamtally/internal/report"
	"github.com/jeranaias/streamtally/internal/stream"
	"github.com/jeranaias/streamtally/internal/surface"
	"github.com/jeranaias/streamtally/internal/tally"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// =============================================================================
// RUN FLAGS
// =============================================================================

func parseRunFlags(t *testing.T, args ...string) (*pflag.FlagSet, *runOptions) {
	t.Helper()
	opts := &runOptions{}
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	opts.bind(fs)
	require.NoError(t, fs.Parse(args))
	return fs, opts
}

func TestRunOptions_ApplyOnlyChangedFlags(t *testing.T) {
	fs, opts := parseRunFlags(t, "--source", "follow", "--path", "/tmp/in.ndjson", "--every", "3")
	cfg := config.Default()
	opts.apply(fs, cfg)

	require.Equal(t, "follow", cfg.Stream.Source)
	require.Equal(t, "/tmp/in.ndjson", cfg.Stream.Path)
	require.Equal(t, 3, cfg.Report.Every)
	require.Equal(t, "grid", cfg.Report.Mode)
	require.Equal(t, "tea", cfg.UI.Surface)
	require.False(t, cfg.Stream.FromStart)
}

func TestRunOptions_PhrasesModeImpliesPhrasePolicy(t *testing.T) {
	fs, opts := parseRunFlags(t, "--mode", "phrases")
	cfg := config.Default()
	opts.apply(fs, cfg)
	require.Equal(t, "phrase", cfg.Match.Policy)
	require.NoError(t, cfg.Validate())

	fs, opts = parseRunFlags(t, "--policy", "phrase")
	cfg = config.Default()
	opts.apply(fs, cfg)
	require.Equal(t, "phrases", cfg.Report.Mode)
}

func TestRunOptions_ExplicitMismatchFailsValidation(t *testing.T) {
	fs, opts := parseRunFlags(t, "--mode", "phrases", "--policy", "containment")
	cfg := config.Default()
	opts.apply(fs, cfg)
	require.Error(t, cfg.Validate())
}

// =============================================================================
// RENDERERS
// =============================================================================

func classicTable(t *testing.T, terms ...string) (*tally.Table, *vocab.Vocabulary) {
	t.Helper()
	v := vocab.Classic()
	table := tally.New(v, 0)
	table.Increment(terms)
	return table, v
}

func TestLinearRenderer_ScrollingSurface(t *testing.T) {
	table, v := classicTable(t, "red", "circle")
	var out bytes.Buffer
	r := newLinearRenderer(surface.NewLines(&out, 0), table, v)

	require.NoError(t, r.Render(loop.Frame{
		Message: stream.Message{Text: "a red\ncircle"},
		Terms:   []string{"red", "circle"},
	}))
	got := out.String()
	require.True(t, strings.HasPrefix(got, "Tweet: a red circle\nTerms: red circle\ncolour\nred: 1/1\n"), got)
	require.Contains(t, got, "circle: 1/1\n")
	require.Contains(t, got, "dot: 0/0\n")

	out.Reset()
	require.NoError(t, r.Render(loop.Frame{Message: stream.Message{Text: "nothing"}, Spurious: true}))
	require.Equal(t, "SPURIOUS: nothing\n", out.String())
}

func TestLinearRenderer_KeepsNewestLinesWhenBounded(t *testing.T) {
	table, v := classicTable(t, "red")
	c := surface.NewCanvas(10, 40)
	r := newLinearRenderer(c, table, v)

	require.NoError(t, r.Render(loop.Frame{Message: stream.Message{Text: "red"}, Terms: []string{"red"}}))
	lines := c.Lines()
	require.Equal(t, "shape", lines[0])
	require.Equal(t, "pattern", lines[5])
	require.Equal(t, "check: 0/0", lines[8])
}

func TestGridRenderer_PaintsHeaderAndTerms(t *testing.T) {
	table, v := classicTable(t, "blue", "blue")
	c := surface.NewCanvas(24, 80)
	r := newGridRenderer(c, table, v, report.DefaultGeometry(), "TOTALS SINCE 2025-01-02 03:04")

	require.NoError(t, r.Repaint())
	require.Contains(t, c.Row(0), "TOTALS SINCE 2025-01-02 03:04")
	require.Contains(t, c.String(), "blue")
	require.Contains(t, c.String(), "triangle")

	// A resize forces a new layout instead of painting off-screen.
	c.Resize(12, 40)
	require.NoError(t, r.Render(loop.Frame{}))
	require.Contains(t, c.String(), "TOTALS SINCE")
}

type fakePhrases []string

func (f fakePhrases) Recent(n int) ([]string, error) {
	if n >= len(f) {
		return f, nil
	}
	return f[len(f)-n:], nil
}

func TestPhrasesRenderer_BoundedShowsHeaderAndLatest(t *testing.T) {
	c := surface.NewCanvas(3, 40)
	book := fakePhrases{"old", "a mirror", "a hammer"}
	r := newPhrasesRenderer(c, book, "art is", "ART IS")

	require.NoError(t, r.Render(loop.Frame{Terms: []string{"a hammer"}}))
	require.Equal(t, []string{"ART IS", "    art is a mirror", "    art is a hammer"}, c.Lines())
}

func TestPhrasesRenderer_ScrollingPrintsOnlyNewPhrases(t *testing.T) {
	var out bytes.Buffer
	r := newPhrasesRenderer(surface.NewLines(&out, 0), fakePhrases{"ignored"}, "art is", "ART IS")

	require.NoError(t, r.Repaint())
	require.NoError(t, r.Render(loop.Frame{Spurious: true}))
	require.NoError(t, r.Render(loop.Frame{Terms: []string{"a question"}}))
	require.Equal(t, "    art is a question\n", out.String())
}

// =============================================================================
// PIPELINE
// =============================================================================

func plainConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Vocabulary.Preset = "classic"
	cfg.Counts.SnapshotPath = filepath.Join(dir, "counts.json")
	cfg.Counts.Baseline = 0
	cfg.Phrases.DBPath = filepath.Join(dir, "phrases.db")
	cfg.Log.Path = filepath.Join(dir, "streamtally.log")
	cfg.UI.Surface = "plain"
	cfg.Report.Mode = "linear"
	cfg.Report.MaxFPS = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRun_PlainCountsStdinAndPersists(t *testing.T) {
	cfg := plainConfig(t)
	in := strings.NewReader("red circle\nnothing here\n\n{\"text\":\"blue dot\"}\n")
	var out, errOut bytes.Buffer

	err := Run(context.Background(), cfg, Streams{In: in, Out: &out, Err: &errOut})
	require.NoError(t, err)

	require.Contains(t, out.String(), "Tweet: red circle")
	require.Contains(t, out.String(), "SPURIOUS: nothing here")
	require.Contains(t, out.String(), "Tweet: blue dot")

	table, err := tally.Load(cfg.Counts.SnapshotPath, vocab.Classic(), 0)
	require.NoError(t, err)
	for term, want := range map[string]int{"red": 1, "circle": 1, "blue": 1, "dot": 1, "yellow": 0} {
		n, ok := table.Count(term)
		require.True(t, ok)
		require.Equal(t, want, n, term)
	}
}

func TestRun_PlainResumesFromSnapshot(t *testing.T) {
	cfg := plainConfig(t)
	std := func(input string) Streams {
		return Streams{In: strings.NewReader(input), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}
	}

	require.NoError(t, Run(context.Background(), cfg, std("red\n")))
	require.NoError(t, Run(context.Background(), cfg, std("red square\n")))

	table, err := tally.Load(cfg.Counts.SnapshotPath, vocab.Classic(), 0)
	require.NoError(t, err)
	n, _ := table.Count("red")
	require.Equal(t, 2, n)
	n, _ = table.Count("square")
	require.Equal(t, 1, n)
}

// =============================================================================
// COMMANDS
// =============================================================================

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	snapshot := filepath.Join(dir, "counts.json")
	content := fmt.Sprintf("[vocabulary]\npreset = \"classic\"\n\n[counts]\nsnapshot_path = %q\nbaseline = 2\n%s", snapshot, body)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, snapshot
}

func execute(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(Streams{In: strings.NewReader(in), Out: &out, Err: &errOut})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion_JSON(t *testing.T) {
	out, err := execute(t, "", "version", "--json")
	require.NoError(t, err)

	var data VersionData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	require.Equal(t, Version, data.Version)
	require.NotEmpty(t, data.GoVersion)
}

func TestVocab_ListsTermsAndPresets(t *testing.T) {
	out, err := execute(t, "", "vocab", "--presets")
	require.NoError(t, err)
	require.Equal(t, "aesthetics\nclassic\n", out)

	out, err = execute(t, "", "vocab", "classic")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "COLOUR (3)\n  red\n  yellow\n  blue\nSHAPE (3)\n"), out)

	_, err = execute(t, "", "vocab", "nope")
	require.ErrorIs(t, err, vocab.ErrInvalid)
}

func TestReset_ThenReport(t *testing.T) {
	cfgPath, snapshot := writeConfig(t, "")

	_, err := execute(t, "", "report", "-c", cfgPath)
	require.ErrorContains(t, err, "no snapshot")

	out, err := execute(t, "", "reset", "-c", cfgPath, "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "Reset 9 terms to 2")
	require.FileExists(t, snapshot)

	out, err = execute(t, "", "report", "-c", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "colour\nred: 2/6\nyellow: 2/6\nblue: 2/6\n")

	out, err = execute(t, "", "report", "-c", cfgPath, "--json")
	require.NoError(t, err)
	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	require.Len(t, counts, 9)
	require.Equal(t, 2, counts["check"])
}

func TestReset_AsksBeforeOverwriting(t *testing.T) {
	cfgPath, snapshot := writeConfig(t, "")
	_, err := execute(t, "", "reset", "-c", cfgPath, "--yes")
	require.NoError(t, err)

	table, err := tally.Load(snapshot, vocab.Classic(), 2)
	require.NoError(t, err)
	table.Increment([]string{"red"})
	require.NoError(t, table.Persist(snapshot))

	out, err := execute(t, "n\n", "reset", "-c", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "Cancelled.")

	table, err = tally.Load(snapshot, vocab.Classic(), 2)
	require.NoError(t, err)
	n, _ := table.Count("red")
	require.Equal(t, 3, n)

	_, err = execute(t, "yes\n", "reset", "-c", cfgPath)
	require.NoError(t, err)
	table, err = tally.Load(snapshot, vocab.Classic(), 2)
	require.NoError(t, err)
	n, _ = table.Count("red")
	require.Equal(t, 2, n)
}

func TestConfig_InitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "", "config", "init", "-c", path)
	require.NoError(t, err)
	require.Contains(t, out, "Wrote "+path)

	_, err = execute(t, "", "config", "init", "-c", path)
	require.ErrorContains(t, err, "already exists")

	_, err = execute(t, "", "config", "init", "-c", path, "--force")
	require.NoError(t, err)

	out, err = execute(t, "", "config", "show", "-c", path, "--log-level", "debug")
	require.NoError(t, err)
	require.Contains(t, out, "[vocabulary]")
	require.Contains(t, out, `preset = "aesthetics"`)
	require.Contains(t, out, `level = "debug"`)
}

func TestReport_InvalidConfigFile(t *testing.T) {
	cfgPath, _ := writeConfig(t, "\n[report]\nmode = \"sideways\"\n")
	_, err := execute(t, "", "report", "-c", cfgPath)
	require.ErrorContains(t, err, "report.mode")
}
