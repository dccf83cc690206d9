package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfsfetch/nfsfetch/internal/logger"
	"github.com/nfsfetch/nfsfetch/pkg/config"
	"github.com/nfsfetch/nfsfetch/pkg/fetch"
	"github.com/nfsfetch/nfsfetch/pkg/sink"
)

var log = logger.New("nfsfetch")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "nfsfetch <nfs-uri> <output-path>",
		Short: "Fetch a single file from an NFSv3 export over TCP",
		Long: `nfsfetch resolves the MOUNT and NFS service ports via Portmap,
mounts the export, looks up the target file, and streams its contents to
a local file, unmounting cleanly when done.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default: "+config.GetDefaultConfigPath()+")")
	return cmd
}

func runFetch(parentCtx context.Context, configPath, uri, outputPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("nfsfetch: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("nfsfetch: creating %s: %w", outputPath, err)
	}
	defer f.Close()

	s := sink.NewFile(f)

	req, err := fetch.Open(uri, s, fetch.Options{
		MachineName:       cfg.MachineName,
		RSIZE:             cfg.RSIZE,
		PrivilegedPortMin: cfg.PrivilegedPortMin,
		PrivilegedPortMax: cfg.PrivilegedPortMax,
	})
	if err != nil {
		return fmt.Errorf("nfsfetch: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("fetching %s -> %s", uri, outputPath)
	if err := req.Run(ctx); err != nil {
		return fmt.Errorf("nfsfetch: fetch failed in state %s: %w", req.State(), err)
	}
	log.Info("done")
	return nil
}
