package sim

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/quantumai/market"
	"github.com/rustyeddy/quantumai/pkg/id"
)

const (
	MinProfitPct = 0.005
	MaxProfitPct = 0.035

	// PriceSpread is the full width of the entry price band around the
	// base price (±1%).
	PriceSpread = 0.02

	TradeIDPrefix = "TR"
)

var ErrInvalidBalance = errors.New("balance must be a finite non-negative number")

// Simulator produces synthetic trades for display. It is safe for
// concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New returns a Simulator drawing from src. Use a fixed seed in tests to get
// reproducible output.
func New(src rand.Source) *Simulator {
	return &Simulator{
		rng: rand.New(src),
		now: time.Now,
	}
}

// NewSeeded is shorthand for New(rand.NewSource(seed)).
func NewSeeded(seed int64) *Simulator {
	return New(rand.NewSource(seed))
}

// WithClock replaces the wall clock used for trade timestamps and ids.
func (s *Simulator) WithClock(now func() time.Time) *Simulator {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// PickPair returns one of market.Pairs uniformly.
func (s *Simulator) PickPair() market.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pickPair()
}

// SyntheticPrice returns the pair's base price moved by up to ±1%, rounded
// to cents.
func (s *Simulator) SyntheticPrice(p market.Pair) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syntheticPrice(p)
}

// GenerateTrade composes a winning trade on a random pair.
func (s *Simulator) GenerateTrade() Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateTrade()
}

// Trades returns n freshly generated trades.
func (s *Simulator) Trades(n int) []Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Trade, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.generateTrade())
	}
	return out
}

// EstimateProfit returns balance × uniform(0.5%, 3.5%) rounded to the
// nearest whole currency unit.
func (s *Simulator) EstimateProfit(balance float64) (int64, error) {
	if math.IsNaN(balance) || math.IsInf(balance, 0) || balance < 0 {
		return 0, ErrInvalidBalance
	}

	s.mu.Lock()
	pct := s.profitPct()
	s.mu.Unlock()

	return decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(pct)).
		Round(0).
		IntPart(), nil
}

// ChartSeries returns n bar heights in [50, 150) for the dashboard chart.
func (s *Simulator) ChartSeries(n int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, n)
	for i := range out {
		out[i] = s.rng.Float64()*100 + 50
	}
	return out
}

func (s *Simulator) pickPair() market.Pair {
	return market.Pairs[s.rng.Intn(len(market.Pairs))]
}

func (s *Simulator) syntheticPrice(p market.Pair) (float64, error) {
	meta, err := market.Lookup(p)
	if err != nil {
		return 0, err
	}
	variation := meta.BasePrice * PriceSpread * (s.rng.Float64() - 0.5)
	return round2(meta.BasePrice + variation), nil
}

func (s *Simulator) profitPct() float64 {
	return MinProfitPct + s.rng.Float64()*(MaxProfitPct-MinProfitPct)
}

func (s *Simulator) generateTrade() Trade {
	pair := s.pickPair()
	// pair comes from market.Pairs so the lookup cannot fail.
	entry, _ := s.syntheticPrice(pair)
	pct := s.profitPct()
	exit := entry * (1 + pct)
	now := s.now()

	return Trade{
		ID:            id.Prefixed(TradeIDPrefix, now, s.rng),
		Pair:          pair,
		EntryPrice:    entry,
		ExitPrice:     exit,
		ProfitPercent: pct,
		Profit:        exit - entry,
		Timestamp:     now,
		Status:        StatusCompleted,
		Result:        ResultWin,
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
