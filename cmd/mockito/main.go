// mockito - standalone HTTP mock server for test suites.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mockitohq/mockito/pkg/config"
	"github.com/mockitohq/mockito/pkg/logging"
	"github.com/mockitohq/mockito/pkg/registry"
	"github.com/mockitohq/mockito/pkg/server"
)

// Build-time variables set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mockito",
		Short:         "HTTP mock server for test suites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
		logFormat  string
		mockFiles  []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Flags override the config file.
			if addr != "" {
				cfg.Listen = addr
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}
			if len(mockFiles) > 0 {
				cfg.MockFiles = append(cfg.MockFiles, mockFiles...)
			}

			log := logging.New(logging.Config{
				Level:  logging.ParseLevel(cfg.Log.Level),
				Format: logging.ParseFormat(cfg.Log.Format),
			})

			reg := registry.New()
			mocks, err := config.LoadMocks(cfg.MockFiles)
			if err != nil {
				return err
			}
			for _, m := range mocks {
				reg.Add(m)
			}
			if len(mocks) > 0 {
				log.Info("preloaded mocks", "count", len(mocks))
			}

			srv := server.New(cfg.Listen, server.WithLogger(log), server.WithRegistry(reg))
			if err := srv.TryStart(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info("shutting down")
			return srv.Close()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default "+server.DefaultAddr+")")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringSliceVar(&mockFiles, "mocks", nil, "JSON mock-definition files to preload")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mockito %s (%s)\n", Version, Commit)
		},
	}
}
