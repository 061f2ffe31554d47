package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/quantumai/dashboard"
	"github.com/rustyeddy/quantumai/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the trading dashboard locally",
	Long: `Start the local dashboard server.

Routes:
  GET  /, /login, /register      public views
  GET  /dashboard, /profile      session-guarded views (303 to /login otherwise)
  POST /login, /register, /logout, /forgot-password, /change-password
  POST /trade/start              start an AI trade
  GET  /ws                       live simulated trade feed
  GET  /health, /metrics         health and Prometheus metrics

Example:
  quantumai serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to dashboard.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	cfg := app.Config

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.New(level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	tick, err := cfg.TickInterval()
	if err != nil {
		return err
	}
	addr := cfg.Dashboard.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := dashboard.NewServer(dashboard.Options{
		Sessions:       app.Sessions,
		Trading:        app.Trading,
		Tick:           tick,
		Currency:       cfg.Trading.Currency,
		WhatsAppNumber: cfg.Trading.WhatsAppNumber,
		Logger:         log,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting dashboard",
		zap.String("addr", addr),
		zap.String("api", app.Client.BaseURL()),
		zap.Duration("tick", tick),
	)
	return srv.Run(ctx, addr)
}
