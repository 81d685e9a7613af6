package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/doctext/internal/pipeline"
	"github.com/ajitpratap0/doctext/internal/report"
	"github.com/ajitpratap0/doctext/pkg/config"
	"github.com/ajitpratap0/doctext/pkg/errors"
	"github.com/ajitpratap0/doctext/pkg/exclusion"
	"github.com/ajitpratap0/doctext/pkg/logger"
	"github.com/ajitpratap0/doctext/pkg/output"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logFailure(logger.Get(), err)
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}

// logFailure logs a run-ending error with its details. The captured stack is
// added when debug logging is enabled.
func logFailure(log *zap.Logger, err error) {
	fields := []zap.Field{zap.Error(err), zap.Any("details", errors.Details(err))}
	if log.Core().Enabled(zap.DebugLevel) {
		if stack := errors.StackTrace(err); stack != "" {
			fields = append(fields, zap.String("stack", stack))
		}
	}
	log.Error("doctext failed", fields...)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "doctext",
		Short: "Extract document text samples for parser testing",
		Long: `doctext reads a Parquet export of the document table, drops system
nodes listed in the nodepack and rows holding legacy [% %] code blocks, and
writes the remaining samples as a JSON file for the React parser test harness.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "doctext v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newRunCmd(), newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract samples from a Parquet export",
		Long: `Extract samples from a Parquet export.

Settings come from flags, DOCTEXT_* environment variables and an optional
YAML file, in that order of precedence.

Example:
  doctext run --export-dir export/everything.document/1 --nodepack-dir nodepack -o doctext-samples.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			log, err := logger.Init(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return runExtract(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func newConfigCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runExtract executes one extraction: exclusion set, scan, write, report.
// Human-facing banner and hint lines go to out, diagnostics go to log.
func runExtract(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) error {
	fmt.Fprintln(out, "Doctext Extraction for Parser Testing")
	fmt.Fprintln(out, strings.Repeat("=", 80))

	collector := report.NewCollector()

	log.Info("loading system node ids", zap.String("nodepack_dir", cfg.NodepackDir))
	excluded, _, err := exclusion.Load(ctx, cfg.NodepackDir, exclusion.Options{
		Extension: cfg.AnnotationExt,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	collector.ObserveExclusions(excluded.Len())

	log.Info("processing parquet files", zap.String("export_dir", cfg.ExportDir))
	extractor := pipeline.New(cfg.Pipeline(), excluded,
		pipeline.WithLogger(log),
		pipeline.WithProgress(report.ProgressLogger(log)))

	result, err := extractor.Run(ctx)
	if result != nil {
		report.LogRun(log, result.Stats)
		collector.ObserveRun(result.Stats)
	}
	if err != nil {
		return err
	}

	writer := output.NewWriter(output.WithCompression(cfg.Compression()))
	log.Info("writing output", zap.String("path", writer.Path(cfg.OutputPath)))
	written, err := writer.Write(result.Samples, cfg.OutputPath)
	if err != nil {
		return err
	}
	collector.ObserveOutput(written)

	usage, err := report.Snapshot()
	if err != nil {
		log.Warn("failed to read resource usage", zap.Error(err))
	}
	collector.ObserveUsage(usage)
	report.LogOutput(log, written, usage)

	if cfg.MetricsPath != "" {
		if err := collector.WriteTextfile(cfg.MetricsPath, time.Now()); err != nil {
			log.Warn("failed to write metrics", zap.Error(err))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Done! Use this file to test the React-based HTML parser against server-side rendering.")
	fmt.Fprintln(out, "Sample usage:")
	fmt.Fprintf(out, "  node tools/test-react-parser.js %s\n", written.Path)
	return nil
}
