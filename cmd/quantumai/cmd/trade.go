package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/quantumai/market"
	"github.com/rustyeddy/quantumai/session"
	"github.com/rustyeddy/quantumai/sim"
	"github.com/rustyeddy/quantumai/trading"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Start AI trades or watch simulated ones",
	Long: `Trade commands.

Subcommands:
  start  - Start an AI trade on the backend
  sim    - Print simulated trades

Examples:
  quantumai trade start
  quantumai trade sim --count 10 --seed 42`,
}

var tradeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an AI trade",
	Args:  cobra.NoArgs,
	RunE:  runTradeStart,
}

var tradeSimCmd = &cobra.Command{
	Use:   "sim",
	Short: "Print simulated trades",
	Long: `Generate synthetic trades like the dashboard feed does. The same
seed always produces the same trades.`,
	Args: cobra.NoArgs,
	RunE: runTradeSim,
}

var countdownCmd = &cobra.Command{
	Use:   "countdown",
	Short: "Show the time left until live trading opens",
	Args:  cobra.NoArgs,
	RunE:  runCountdown,
}

var (
	simCount int
	simSeed  int64
)

func init() {
	rootCmd.AddCommand(tradeCmd, countdownCmd)
	tradeCmd.AddCommand(tradeStartCmd, tradeSimCmd)

	tradeSimCmd.Flags().IntVarP(&simCount, "count", "n", 5, "number of trades")
	tradeSimCmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (0 picks one)")
}

func runTradeStart(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := app.requireSession(cmd, session.ViewDashboard); err != nil {
		return err
	}

	ticket, err := app.Trading.StartTrade(cmd.Context())
	if errors.Is(err, trading.ErrNotAuthenticated) {
		return errLoginRequired
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ AI trade started")
	fmt.Fprintf(cmd.OutOrStdout(), "  Pair:             %s\n", ticket.Pair)
	fmt.Fprintf(cmd.OutOrStdout(), "  Estimated profit: %s\n",
		market.FormatCurrency(ticket.EstimatedProfit, app.Config.Trading.Currency))
	return nil
}

func runTradeSim(cmd *cobra.Command, args []string) error {
	if simCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	trades := sim.NewSeeded(seed).Trades(simCount)
	return printTrades(cmd, trades)
}

func printTrades(cmd *cobra.Command, trades []sim.Trade) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPAIR\tENTRY\tEXIT\tPROFIT\tRESULT\tTIME")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Pair, price(t.EntryPrice), price(t.ExitPrice),
			market.FormatPercent(t.ProfitPercent), t.Result,
			t.Timestamp.Local().Format("15:04:05"))
	}
	return w.Flush()
}

// price keeps four decimals for FX quotes.
func price(v float64) string {
	if v < 10 {
		return fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func runCountdown(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), trading.Countdown(app.Config.Trading.Start, time.Now()))
	return nil
}
