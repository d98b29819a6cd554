package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bid-analytics/config"
	"bid-analytics/models"
	"bid-analytics/server"
	"bid-analytics/services"
	"bid-analytics/storage"
	"bid-analytics/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var source string
	root := &cobra.Command{
		Use:           "bids",
		Short:         "Validate, process and analyse electricity bid datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&source, "source", "s", "", "dataset source (path, http(s)://, browser+https://, s3://); overrides BID_SOURCE")

	root.AddCommand(newReportCmd(&source), newExportCmd(&source), newServeCmd(&source))
	return root
}

// setup loads configuration and builds the app. The returned logger is
// usable even when err is non-nil.
func setup(ctx context.Context, source string) (*app, *utils.Logger, error) {
	logger := utils.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("%v", err)
		return nil, logger, err
	}
	logger = utils.NewLoggerWithWriter(os.Stdout, cfg.LogLevel)
	if source != "" {
		cfg.SourceID = source
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		return nil, logger, err
	}
	return a, logger, nil
}

func newReportCmd(source *string) *cobra.Command {
	var noExport bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Load the dataset, print insights and write the configured export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := setup(ctx, *source)
			if err != nil {
				return err
			}
			defer a.Close()

			a.loader.Subscribe(services.ObserverFunc(func(e services.Event) {
				if e.Kind == services.EventWarning {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", e.SourceID, e.Message)
				}
			}))

			logger.Info("=== Bid Analytics starting ===")
			logger.Info("Config: source: %s | cache: %t | unit: %s", a.cfg.SourceID, a.cfg.UseCache, a.cfg.PriceUnit)

			records, err := a.loadWithFallback(ctx, a.cfg.SourceID, a.cfg.UseCache)
			if err != nil {
				logger.Error("Load failed: %v", err)
				return err
			}

			services.BuildReport(records, a.cfg.PriceUnit, a.cfg.LatestN).Print(cmd.OutOrStdout())

			if noExport {
				return nil
			}
			if err := writeExport(a.cfg.ExportPath, a.cfg.ExportFormat, records); err != nil {
				logger.Error("Export failed: %v", err)
				return err
			}
			logger.Info("Processed dataset saved to %s", a.cfg.ExportPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noExport, "no-export", false, "skip writing EXPORT_PATH")
	return cmd
}

func newExportCmd(source *string) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Load the dataset and write it as json, csv or xlsx",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := setup(ctx, *source)
			if err != nil {
				return err
			}
			defer a.Close()

			if format == "" {
				format = a.cfg.ExportFormat
			}
			records, err := a.loadWithFallback(ctx, a.cfg.SourceID, a.cfg.UseCache)
			if err != nil {
				logger.Error("Load failed: %v", err)
				return err
			}
			if out == "" || out == "-" {
				return services.ExportTo(cmd.OutOrStdout(), format, records)
			}
			if err := writeExport(out, format, records); err != nil {
				logger.Error("Export failed: %v", err)
				return err
			}
			logger.Info("Wrote %d records to %s", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, csv or xlsx (default EXPORT_FORMAT)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}

func newServeCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve datasets, analytics and loader events over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, logger, err := setup(ctx, *source)
			if err != nil {
				return err
			}
			defer a.Close()

			hub := server.NewHub(logger)
			a.loader.Subscribe(hub)

			srv := server.New(a.loader, hub, server.Options{
				DefaultSource: a.cfg.SourceID,
				UseCache:      a.cfg.UseCache,
				Metrics:       promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			}, logger)

			httpServer := &http.Server{
				Addr:              a.cfg.ServeAddr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("Listening on %s (default source %s)", a.cfg.ServeAddr, a.cfg.SourceID)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				logger.Error("%v", err)
				return err
			}
			return nil
		},
	}
}

// newDatasetWriter picks the file writer for format.
func newDatasetWriter(path, format string) (storage.DatasetWriter, error) {
	if format == services.FormatCSV {
		return storage.NewCSVWriter(path)
	}
	return storage.NewFileWriter(path, func(w io.Writer, records []models.ProcessedRecord) error {
		return services.ExportTo(w, format, records)
	}), nil
}

func writeExport(path, format string, records []models.ProcessedRecord) error {
	w, err := newDatasetWriter(path, format)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Write(records)
}
