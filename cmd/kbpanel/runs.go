// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbpanel/internal/history"
	"github.com/pdiddy/kbpanel/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the history of tool invocations",
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Recent(cmd.Context(), filterFromFlags(cmd))
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatRuns(os.Stdout, runs, jsonOutput)
	},
}

func formatRuns(w io.Writer, runs []types.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-26s  %-19s  %-20s  %-6s  %-6s  %-6s  %s\n",
		"ID", "Started", "Knowledge base", "Kind", "Method", "Result", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		result := "failed"
		if r.Succeeded {
			result = "ok"
		}
		fmt.Fprintf(w, "%-26s  %-19s  %-20s  %-6s  %-6s  %-6s  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.KnowledgeBase,
			r.Kind, r.Method, result, r.Duration().Round(time.Millisecond))
	}
	return nil
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one run's full output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s (exit %d)\n\n%s\n", run.ID, run.KnowledgeBase, run.Kind, run.ExitCode, run.Output)
		return nil
	},
}

// --- export subcommand ---

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs to YAML or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")
		withOutput, _ := cmd.Flags().GetBool("with-output")

		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		return exportRuns(cmd.Context(), store, os.Stdout, outPath, format, filterFromFlags(cmd), withOutput)
	},
}

// runExporter writes runs in one of the export formats.
type runExporter interface {
	ExportYAML(ctx context.Context, w io.Writer, f history.Filter, withOutput bool) error
	ExportJSON(ctx context.Context, w io.Writer, f history.Filter, withOutput bool) error
}

// exportRuns writes the export to outPath, or to stdout when outPath is
// empty. The format is checked before any file is created.
func exportRuns(ctx context.Context, store runExporter, stdout io.Writer, outPath, format string, f history.Filter, withOutput bool) (err error) {
	var export func(context.Context, io.Writer, history.Filter, bool) error
	switch format {
	case "yaml":
		export = store.ExportYAML
	case "json":
		export = store.ExportJSON
	default:
		return fmt.Errorf("unknown format %q: use yaml or json", format)
	}
	if outPath == "" {
		return export(ctx, stdout, f, withOutput)
	}

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", outPath, cerr)
		}
	}()
	return export(ctx, file, f, withOutput)
}

// --- prune subcommand ---

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")

		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Prune(cmd.Context(), keep)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d run(s).\n", n)
		return nil
	},
}

func filterFromFlags(cmd *cobra.Command) history.Filter {
	kbName, _ := cmd.Flags().GetString("kb")
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	return history.Filter{KnowledgeBase: kbName, Kind: types.RunKind(kind), Limit: limit}
}

func init() {
	for _, c := range []*cobra.Command{runsListCmd, runsExportCmd} {
		c.Flags().String("kb", "", "only runs for this knowledge base")
		c.Flags().String("kind", "", "only runs of this kind: init, index, query")
	}
	runsListCmd.Flags().Int("limit", 50, "maximum number of runs (negative for all)")
	runsListCmd.Flags().Bool("json", false, "output runs as JSON")

	runsExportCmd.Flags().Int("limit", -1, "maximum number of runs (negative for all)")
	runsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	runsExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	runsExportCmd.Flags().Bool("with-output", false, "include captured tool output")

	runsPruneCmd.Flags().Int("keep", 500, "number of newest runs to keep")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsExportCmd, runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}
