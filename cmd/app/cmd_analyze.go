package main

import (
	"encoding/json"
	"fmt"

	"SignalGate/internal/di"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/pkg/config"
	applogger "SignalGate/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	analyzeSymbol string
	analyzeTF     string
	analyzeBars   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print indicators and patterns for one symbol as JSON",
	Long: `Reads the latest candles from ClickHouse and runs the indicator and
pattern passes once, without scoring or gating.

Examples:
  signalgate analyze --symbol BTCUSDT
  signalgate analyze --symbol ETHUSDT --tf 1h --bars 500`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeSymbol, "symbol", "s", "", "symbol to analyze")
	analyzeCmd.Flags().StringVar(&analyzeTF, "tf", "1m", "timeframe (1m, 5m, 15m, 1h, 4h, 1d)")
	analyzeCmd.Flags().IntVarP(&analyzeBars, "bars", "n", 200, "number of candles")
	_ = analyzeCmd.MarkFlagRequired("symbol")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	tf := domrepo.Timeframe(analyzeTF)
	if !domrepo.IsValidTimeframe(tf) {
		return fmt.Errorf("unsupported timeframe %q", analyzeTF)
	}

	l := applogger.NewNop()
	client, err := di.ProvideClickHouseClient(cfg, l)
	if err != nil {
		return err
	}
	defer client.Close()

	analyst := di.ProvideAnalyst(
		di.ProvideCandleSource(di.ProvideCandleStore(client, cfg, l), cfg, l),
		di.ProvideIndicatorEngine(cfg),
		di.ProvidePatternRecognizer(cfg),
		cfg,
	)
	rep, err := analyst.Analyze(cmd.Context(), analyzeSymbol, tf, analyzeBars)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
