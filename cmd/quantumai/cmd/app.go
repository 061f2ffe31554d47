package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rustyeddy/quantumai/api"
	"github.com/rustyeddy/quantumai/config"
	"github.com/rustyeddy/quantumai/logging"
	"github.com/rustyeddy/quantumai/session"
	"github.com/rustyeddy/quantumai/sim"
	"github.com/rustyeddy/quantumai/trading"
)

// errLoginRequired is returned by commands that need a session.
var errLoginRequired = errors.New("please login first: quantumai login")

// App is everything a command needs, built from the loaded config.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Client   *api.Client
	Sessions *session.Manager
	Sim      *sim.Simulator
	Trading  *trading.Service

	closers []func() error
}

var current *App

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "quantumai.yaml"
	}
	return filepath.Join(dir, "quantumai", "config.yaml")
}

// loadApp builds the App once per process. CLI commands log to stderr at
// warn unless --log-level says otherwise.
func loadApp(cmd *cobra.Command) (*App, error) {
	if current != nil {
		return current, nil
	}

	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, err
	}

	log, err := logging.NewConsole(logLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	current = app
	return app, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	seed := cfg.Dashboard.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	client := api.NewClient(cfg.API.BaseURL, timeout)
	sessions := session.NewManager(client, store, session.WithLogger(log))
	simulator := sim.NewSeeded(seed)

	app := &App{
		Config:   cfg,
		Log:      log,
		Client:   client,
		Sessions: sessions,
		Sim:      simulator,
		Trading:  trading.NewService(client, sessions, simulator, cfg.Trading.Start, log),
	}
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}
	app.closers = append(app.closers, func() error {
		log.Sync()
		return nil
	})

	log.Debug("client ready",
		zap.String("api", client.BaseURL()),
		zap.String("store", cfg.Store.Type),
	)
	return app, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (session.Store, func() error, error) {
	switch sc.Type {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil, nil

	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create session dir: %w", err)
		}
		s, err := session.NewSQLiteStore(sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.StoreRedis:
		s, err := session.NewRedisStoreFromURL(ctx, sc.RedisURL, sc.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store type %q", sc.Type)
}

func closeApp() error {
	if current == nil {
		return nil
	}
	var errs []error
	for _, c := range current.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	current = nil
	return errors.Join(errs...)
}

// cliPage is the terminal rendering a view. Alerts go to stderr.
type cliPage struct {
	view     session.View
	redirect session.View
	errOut   io.Writer
}

func newCLIPage(cmd *cobra.Command, v session.View) *cliPage {
	return &cliPage{view: v, errOut: cmd.ErrOrStderr()}
}

func (p *cliPage) View() session.View { return p.view }

func (p *cliPage) Redirect(to session.View) { p.redirect = to }

func (p *cliPage) Alert(msg string) { fmt.Fprintln(p.errOut, "!", msg) }

// requireSession runs page init for view and fails when the user has to
// sign in first.
func (a *App) requireSession(cmd *cobra.Command, v session.View) error {
	page := newCLIPage(cmd, v)
	if !a.Sessions.Init(cmd.Context(), page) {
		return errLoginRequired
	}
	return nil
}

var (
	input    *bufio.Reader
	inputSrc io.Reader
)

// prompt reads a line from the command's input when value is empty.
func prompt(cmd *cobra.Command, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if src := cmd.InOrStdin(); input == nil || inputSrc != src {
		input, inputSrc = bufio.NewReader(src), src
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	line, err := input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return required(label, line)
}

// promptSecret is prompt without echo when input is a terminal. Piped
// input is read like any other prompt.
func promptSecret(cmd *cobra.Command, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(cmd, label, value)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return required(label, string(b))
}

func required(label, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return line, nil
}

func resultErr(res api.Result, fallback string) error {
	if res.Success {
		return nil
	}
	if res.Message != "" {
		return errors.New(res.Message)
	}
	return errors.New(fallback)
}
