// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbpanel/internal/kb"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases from the terminal",
	Long: `The kb subcommands perform the same actions as the web panel: list,
create, delete, clear-cache, index, and query. Tool output is printed when an
action fails.`,
}

// --- list subcommand ---

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, store, err := openManager()
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := mgr.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No knowledge bases currently available.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

// --- create subcommand ---

var kbCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create and initialize a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, store, err := openManager()
		if err != nil {
			return err
		}
		defer store.Close()

		out, err := mgr.Create(cmd.Context(), args[0])
		if err != nil {
			return actionFailed(err)
		}
		fmt.Printf("Knowledge base %q created and initialized (run %s).\n", out.KnowledgeBase, out.RunID)
		return nil
	},
}

// --- delete subcommand ---

var kbDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a knowledge base and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, store, err := openManager()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := mgr.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Knowledge base %q has been deleted.\n", args[0])
		return nil
	},
}

// --- clear-cache subcommand ---

var kbClearCacheCmd = &cobra.Command{
	Use:   "clear-cache <name>",
	Short: "Remove everything except input, prompts, .env, and settings.yaml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, store, err := openManager()
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := mgr.ClearCache(args[0])
		for _, name := range res.Removed {
			fmt.Printf("removed %s\n", name)
		}
		return err
	},
}

// --- index subcommand ---

var kbIndexCmd = &cobra.Command{
	Use:   "index <name>",
	Short: "Build the knowledge base index with graphrag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearCache, _ := cmd.Flags().GetBool("clear-cache")

		mgr, store, err := openManager()
		if err != nil {
			return err
		}
		defer store.Close()

		out, err := mgr.Index(cmd.Context(), args[0], clearCache)
		if out.Cleared != nil {
			fmt.Printf("Cache cleared (%d entries removed).\n", len(out.Cleared.Removed))
		}
		if err != nil {
			return actionFailed(err)
		}
		fmt.Printf("Knowledge base %q indexed in %s (run %s).\n", out.KnowledgeBase, out.Duration.Round(time.Millisecond), out.RunID)
		return nil
	},
}

// --- query subcommand ---

var kbQueryCmd = &cobra.Command{
	Use:   "query <name> <question...>",
	Short: "Ask a knowledge base a question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		mgr, store, err := openManager()
		if err != nil {
			return err
		}
		defer store.Close()

		answer, err := mgr.Query(cmd.Context(), args[0], method, strings.Join(args[1:], " "))
		if err != nil {
			return actionFailed(err)
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		}
		fmt.Println(answer.Answer)
		return nil
	},
}

// actionFailed prints the tool output carried by err to stderr.
func actionFailed(err error) error {
	if out, ok := kb.Output(err); ok && strings.TrimSpace(out) != "" {
		fmt.Fprintln(os.Stderr, strings.TrimRight(out, "\n"))
	}
	if errors.Is(err, kb.ErrNoResponse) {
		return fmt.Errorf("%w: the knowledge base might not be initialized or there might be other errors", err)
	}
	return err
}

func init() {
	kbIndexCmd.Flags().Bool("clear-cache", false, "clear cached artifacts before indexing")
	kbQueryCmd.Flags().String("method", "local", "query method: local, global, or drift")
	kbQueryCmd.Flags().Bool("json", false, "print the answer as JSON")

	kbCmd.AddCommand(kbListCmd, kbCreateCmd, kbDeleteCmd, kbClearCacheCmd, kbIndexCmd, kbQueryCmd)
	rootCmd.AddCommand(kbCmd)
}
