package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/quantumai/api"
	"github.com/rustyeddy/quantumai/logging"
	"github.com/rustyeddy/quantumai/metrics"
	"github.com/rustyeddy/quantumai/session"
	"github.com/rustyeddy/quantumai/sim"
)

const (
	ServerErrorMessage = "Server error. Please try again."
	DefaultFailMessage = "Failed to start trade"

	SeedTrades = 5
	SeedChart  = 20
)

var (
	ErrNotAuthenticated = errors.New("please login first")
	ErrServer           = errors.New(ServerErrorMessage)
)

// WAT is West Africa Time, the zone trading hours are announced in.
var WAT = time.FixedZone("WAT", 3600)

// NotStartedError is returned before live trading opens.
type NotStartedError struct {
	Start time.Time
}

func (e *NotStartedError) Error() string {
	start := e.Start.In(WAT)
	return fmt.Sprintf("trading starts on %s at %s WAT",
		start.Format("2006-01-02"), start.Format("3:04 PM"))
}

// RejectedError carries the backend's reason for refusing a trade.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

// Starter is the backend call used to open a trade.
type Starter interface {
	StartTrade(ctx context.Context, token string) (api.Result, error)
}

// Service starts real trades through the backend and builds dashboard data
// from the simulator.
type Service struct {
	backend  Starter
	sessions *session.Manager
	sim      *sim.Simulator
	start    time.Time
	now      func() time.Time
	log      *zap.Logger
}

func NewService(backend Starter, sessions *session.Manager, simulator *sim.Simulator, start time.Time, log *zap.Logger) *Service {
	return &Service{
		backend:  backend,
		sessions: sessions,
		sim:      simulator,
		start:    start,
		now:      time.Now,
		log:      logging.OrNop(log),
	}
}

// WithClock replaces the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Start() time.Time { return s.start }

func (s *Service) Simulator() *sim.Simulator { return s.sim }

// StartTrade opens an AI trade for the signed-in user. When the backend
// leaves out the profit estimate, one is derived from the stored available
// balance.
func (s *Service) StartTrade(ctx context.Context) (*api.TradeTicket, error) {
	token, ok := s.sessions.Token(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if s.now().Before(s.start) {
		return nil, &NotStartedError{Start: s.start}
	}

	res, err := s.backend.StartTrade(ctx, token)
	if api.IsUnauthorized(err) {
		s.sessions.HandleUnauthorized(ctx)
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		s.log.Warn("start trade failed", zap.Error(err))
		return nil, ErrServer
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = DefaultFailMessage
		}
		return nil, &RejectedError{Message: msg}
	}

	ticket := res.Trade
	if ticket == nil {
		ticket = &api.TradeTicket{}
	}
	if ticket.Pair == "" {
		ticket.Pair = s.sim.PickPair().String()
	}
	if ticket.EstimatedProfit == 0 {
		ticket.EstimatedProfit = s.estimate(ctx)
	}

	s.log.Info("trade started", zap.String("pair", ticket.Pair), zap.Float64("estimated_profit", ticket.EstimatedProfit))
	return ticket, nil
}

func (s *Service) estimate(ctx context.Context) float64 {
	user, err := s.sessions.User(ctx)
	if err != nil || user == nil {
		return 0
	}
	est, err := s.sim.EstimateProfit(user.AvailableBalance)
	if err != nil {
		s.log.Warn("estimate profit", zap.Float64("balance", user.AvailableBalance), zap.Error(err))
		return 0
	}
	return float64(est)
}

// Balances are the four figures at the top of the dashboard.
type Balances struct {
	Total       float64 `json:"total_balance"`
	Available   float64 `json:"available_balance"`
	TotalProfit float64 `json:"total_profit"`
	TodayProfit float64 `json:"today_profit"`
}

func BalancesOf(p *api.UserProfile) Balances {
	if p == nil {
		return Balances{}
	}
	return Balances{
		Total:       p.TotalBalance,
		Available:   p.AvailableBalance,
		TotalProfit: p.TotalProfit,
		TodayProfit: p.TodayProfit,
	}
}

// Snapshot is the dashboard view model.
type Snapshot struct {
	Phone     string      `json:"phone"`
	Balances  Balances    `json:"balances"`
	Trades    []sim.Trade `json:"trades"`
	Chart     []float64   `json:"chart"`
	Countdown string      `json:"countdown"`
	Live      bool        `json:"live"`
	Stale     bool        `json:"stale,omitempty"`
}

// Snapshot gathers the dashboard data. Live balances come from the
// backend; if that call fails the profile stored at login is used and the
// snapshot is marked stale. It returns ErrNotAuthenticated once the session
// is gone.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	profile := s.sessions.GetUserData(ctx)
	stale := false
	if profile == nil {
		if !s.sessions.IsAuthenticated(ctx) {
			return Snapshot{}, ErrNotAuthenticated
		}
		stale = true
		profile, _ = s.sessions.User(ctx)
	}

	phone, _ := s.sessions.Phone(ctx)
	now := s.now()
	trades := s.sim.Trades(SeedTrades)
	metrics.SimulatedTrades.Add(float64(len(trades)))

	return Snapshot{
		Phone:     phone,
		Balances:  BalancesOf(profile),
		Trades:    trades,
		Chart:     s.sim.ChartSeries(SeedChart),
		Countdown: Countdown(s.start, now),
		Live:      !now.Before(s.start),
		Stale:     stale,
	}, nil
}

// LiveText replaces the countdown once trading has opened.
const LiveText = "TRADING LIVE!"

// Countdown renders the time left until start as "{d}d {h}h {m}m {s}s".
func Countdown(start, now time.Time) string {
	diff := start.Sub(now)
	if diff <= 0 {
		return LiveText
	}

	days := int(diff / (24 * time.Hour))
	hours := int(diff%(24*time.Hour)) / int(time.Hour)
	minutes := int(diff%time.Hour) / int(time.Minute)
	seconds := int(diff%time.Minute) / int(time.Second)
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// IsTradingTime reports whether now falls within daytime trading hours
// (06:00 to 22:00 in now's location). The feed slows down outside them.
func IsTradingTime(now time.Time) bool {
	h := now.Hour()
	return h >= 6 && h < 22
}
