package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/bodul/gearscan/internal/calibration"
	"github.com/bodul/gearscan/internal/schematic"
)

const shutdownTimeout = 5 * time.Second

// app carries the state shared by the gearscan commands.
type app struct {
	configPath string
	verbose    bool

	cfg    *Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func newApp() *app {
	return &app{}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gearscan",
		Short: "Engine schematic and calibration document analysis",
		Long: `gearscan reads engine schematics (grids of digits, '.' and symbols) and
reports the sum of part numbers and the sum of gear ratios. It also recovers
calibration values from calibration documents.

Pass '-' as the file to read from standard input.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.partsCmd(),
		a.gearsCmd(),
		a.analyzeCmd(),
		a.showCmd(),
		a.calibrateCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger != nil {
		return nil
	}
	config := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	a.logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func (a *app) partsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parts <file>",
		Short: "Print the sum of part numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.readGrid(cmd, args[0])
			if err != nil {
				return err
			}
			sum, err := schematic.PartNumberSum(g)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}
}

func (a *app) gearsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gears <file>",
		Short: "Print the sum of gear ratios",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.readGrid(cmd, args[0])
			if err != nil {
				return err
			}
			sum, err := schematic.GearRatioSum(g)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}
}

func (a *app) analyzeCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Print the full analysis of a schematic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.readGrid(cmd, args[0])
			if err != nil {
				return err
			}
			rep, err := schematic.Analyze(cmdContext(cmd), g)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), rep, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Render a schematic with part numbers and gears highlighted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.readGrid(cmd, args[0])
			if err != nil {
				return err
			}
			rep, err := schematic.Analyze(cmdContext(cmd), g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, err = io.WriteString(out, NewStyles(out).Render(g, rep))
			return err
		},
	}
}

func (a *app) calibrateCmd() *cobra.Command {
	var words bool
	cmd := &cobra.Command{
		Use:   "calibrate <file>",
		Short: "Print the sum of calibration values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			mode := calibration.Digits
			if words {
				mode = calibration.Words
			}
			sum, err := calibration.SumReader(in, mode)
			if err != nil {
				return err
			}
			a.logger.Debug("Calibration document read", zap.String("path", args[0]), zap.Bool("words", words))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}
	cmd.Flags().BoolVarP(&words, "words", "w", false, "also count spelled digits (one..nine)")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.Server.Port = port
			}
			return a.serve(cmdContext(cmd))
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides config and PORT)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := NewStore(a.cfg.Cache.Size, a.logger)
	if err != nil {
		return err
	}

	var gemini *GeminiClient
	if a.cfg.Gemini.Project != "" {
		gemini, err = NewGeminiClient(ctx, a.cfg.Gemini)
		if err != nil {
			return err
		}
		a.logger.Info("Gemini client initialized",
			zap.String("project", a.cfg.Gemini.Project),
			zap.String("model", gemini.Model()))
	} else {
		a.logger.Info("GCP_PROJECT_ID not set, image extraction disabled")
	}

	srv := NewServer(store, gemini, a.cfg.Server, a.logger)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	a.logger.Info("Server started", zap.String("addr", httpSrv.Addr))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// readGrid parses the schematic at path ("-" for stdin).
func (a *app) readGrid(cmd *cobra.Command, path string) (*schematic.Grid, error) {
	in, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	g, err := schematic.Parse(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logger.Debug("Schematic read",
		zap.String("path", path),
		zap.Int("rows", g.Height()),
		zap.Int("cols", g.Width()))
	return g, nil
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeReport(w io.Writer, rep schematic.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		_, err := fmt.Fprintf(w,
			"size: %dx%d\nruns: %d\nsymbols: %d\nparts: %d\ngears: %d\npart number sum: %d\ngear ratio sum: %d\n",
			rep.Height, rep.Width, rep.RunCount, rep.SymbolCount,
			len(rep.Parts), len(rep.Gears), rep.PartNumber, rep.GearRatio)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}
