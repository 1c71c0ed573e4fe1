package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"BrentCast/internal/di"
	"BrentCast/internal/domain/models"
	"BrentCast/internal/repository"
	"BrentCast/pkg/config"
	applogger "BrentCast/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "brentcast",
		Short:         "Brent crude oil forecast service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	root.AddCommand(serveCmd())
	root.AddCommand(modelsCmd())
	root.AddCommand(predictCmd())
	root.AddCommand(historyCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run()
}

// loadCLIConfig keeps stdout for command output and skips the response
// cache, which a single invocation never hits.
func loadCLIConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	cfg.Cache.Enabled = false
	return cfg, nil
}

func withServices(fn func(ctx context.Context, s *di.Services) error) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	s, cleanup, err := di.InitializeServices(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(context.Background(), s)
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Load every artifact and report which models are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(_ context.Context, s *di.Services) error {
				return writeStatuses(cmd.OutOrStdout(), s.Registry.Status())
			})
		},
	}
}

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run a single forecast without starting the server",
	}

	var steps int
	for _, kind := range []models.ModelKind{models.KindARIMA, models.KindGARCH, models.KindVAR} {
		sub := &cobra.Command{
			Use:   strings.ToLower(string(kind)),
			Short: fmt.Sprintf("Forecast with the %s model", kind),
			RunE: func(cmd *cobra.Command, args []string) error {
				req := models.ForecastRequest{Kind: kind}
				if cmd.Flags().Changed("steps") {
					req.Steps = &steps
				}
				return runPredict(cmd.OutOrStdout(), req)
			},
		}
		sub.Flags().IntVarP(&steps, "steps", "n", 0, "forecast horizon (defaults to forecast.default_steps)")
		cmd.AddCommand(sub)
	}

	var (
		input string
		raw   bool
	)
	lstm := &cobra.Command{
		Use:   "lstm",
		Short: "Run the LSTM model on a comma-separated input sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd.OutOrStdout(), models.ForecastRequest{
				Kind:  models.KindLSTM,
				Input: splitInput(input),
				Raw:   raw,
			})
		},
	}
	lstm.Flags().StringVarP(&input, "input", "i", "", "comma-separated values, e.g. 0.41,0.43,0.44")
	lstm.Flags().BoolVar(&raw, "raw", false, "input is in price units and must be scaled first")
	cmd.AddCommand(lstm)

	return cmd
}

func runPredict(w io.Writer, req models.ForecastRequest) error {
	return withServices(func(ctx context.Context, s *di.Services) error {
		res, err := s.Forecast.Handle(ctx, req)
		if err != nil {
			return err
		}
		out := map[string]any{"kind": res.Kind, "values": res.Values}
		if len(res.Series) > 0 {
			out["series"] = res.Series
		}
		return writeJSON(w, out)
	})
}

// splitInput keeps elements as strings; the forecast use case coerces them.
func splitInput(s string) []any {
	out := make([]any, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or import the historical price series",
	}

	var window int
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print summary statistics of the configured history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, s *di.Services) error {
				var w *int
				if cmd.Flags().Changed("window") {
					w = &window
				}
				sum, err := s.History.Summary(ctx, w)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"count":          sum.Count,
					"first":          sum.First.Format("2006-01-02"),
					"last":           sum.Last.Format("2006-01-02"),
					"min_price":      sum.MinPrice,
					"max_price":      sum.MaxPrice,
					"last_price":     sum.LastPrice,
					"mean_price":     sum.MeanPrice,
					"window":         sum.Window,
					"moving_average": sum.MovingAvg,
					"volatility":     sum.Volatility,
				})
			})
		},
	}
	summary.Flags().IntVarP(&window, "window", "w", 0, "moving average window")
	cmd.AddCommand(summary)

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a Date,Price CSV into the sqlite or clickhouse history table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig()
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), cfg, file)
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to import")
	_ = importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)

	return cmd
}

func runImport(ctx context.Context, w io.Writer, cfg *config.Config, file string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	points, err := repository.ParseHistoryCSV(ctx, f)
	if err != nil {
		return err
	}

	store, cleanup, err := di.ProvideSQLHistoryStore(cfg, l)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.StoreBatch(ctx, points); err != nil {
		return err
	}
	l.Info("history imported",
		applogger.String("backend", cfg.History.Backend),
		applogger.String("table", cfg.History.Table),
		applogger.Int("rows", len(points)),
	)
	_, err = fmt.Fprintf(w, "imported %d rows into %s\n", len(points), cfg.History.Table)
	return err
}

func writeStatuses(w io.Writer, statuses []models.ModelStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tAVAILABLE\tBACKEND\tSOURCE\tERROR")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", s.Kind, s.Available, s.Backend, s.Source, s.Error)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
