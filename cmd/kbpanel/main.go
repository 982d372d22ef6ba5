// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the kbpanel CLI: a browser control
// panel and terminal front end for GraphRAG knowledge bases.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kbpanel/internal/logging"
	"github.com/pdiddy/kbpanel/internal/secrets"
	"github.com/pdiddy/kbpanel/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Loaded once per process by the root command.
var (
	cfg           types.PanelConfig
	logger        *slog.Logger
	loadedSecrets map[string]string
)

// rootCmd is the base command for the kbpanel CLI.
var rootCmd = &cobra.Command{
	Use:   "kbpanel",
	Short: "Control panel for GraphRAG knowledge bases",
	Long: `kbpanel manages GraphRAG knowledge bases: named directories holding
source documents, a .env file, a settings.yaml, and the index the graphrag
tool builds from them.

Run "kbpanel serve" for the browser panel, or use the kb subcommands to
create, index, and query knowledge bases from a terminal. Every tool
invocation is recorded in the run history (see "kbpanel runs").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = c

		l, err := logging.FromConfig(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", "path", f)
		}

		s, err := secrets.Load(cfg.SecretsDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Info("loaded secrets", "keys", sortedKeys(s))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./kbpanel.yaml or ~/.config/kbpanel/kbpanel.yaml)")
	pf.String("root-dir", "", "directory holding one subdirectory per knowledge base")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	viper.BindPFlag("root_dir", pf.Lookup("root-dir"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kbpanel")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kbpanel"))
		}
	}
	configureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "warning: reading config:", err)
		}
	}
}

// configureViper installs defaults and environment lookup on v.
func configureViper(v *viper.Viper) {
	d := types.DefaultPanelConfig()
	v.SetDefault("root_dir", d.RootDir)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("secrets_dir", d.SecretsDir)
	v.SetDefault("tool.interpreter", d.Tool.Interpreter)
	v.SetDefault("tool.module", d.Tool.Module)
	v.SetDefault("tool.work_dir", d.Tool.WorkDir)
	v.SetDefault("tool.timeout", d.Tool.Timeout)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix("KBPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig decodes the effective configuration from v.
func loadConfig(v *viper.Viper) (types.PanelConfig, error) {
	var c types.PanelConfig
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if c.RootDir == "" {
		return c, fmt.Errorf("root_dir must not be empty")
	}
	return c, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
