// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kbpanel/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser control panel",
	Long: `Serve starts the web panel with two sections: knowledge-base management
(create, delete, edit .env and settings.yaml, upload documents, index) and
question answering. Each action runs synchronously within its request.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := web.New(web.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Mode:           cfg.Server.Mode,
		Version:        version,
	}, mgr, store, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8501)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}
