package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/quantumai/logging"
	"github.com/rustyeddy/quantumai/metrics"
	"github.com/rustyeddy/quantumai/sim"
	"github.com/rustyeddy/quantumai/trading"
)

// Broadcaster receives feed messages.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Feed publishes one simulated trade per tick. Outside trading hours the
// tick is doubled.
type Feed struct {
	sim   *sim.Simulator
	out   Broadcaster
	tick  time.Duration
	start time.Time
	now   func() time.Time
	log   *zap.Logger
}

func NewFeed(simulator *sim.Simulator, out Broadcaster, tick time.Duration, start time.Time, log *zap.Logger) *Feed {
	return &Feed{
		sim:   simulator,
		out:   out,
		tick:  tick,
		start: start,
		now:   time.Now,
		log:   logging.OrNop(log),
	}
}

// WithClock replaces the wall clock.
func (f *Feed) WithClock(now func() time.Time) *Feed {
	f.now = now
	return f
}

// Interval is the delay before the next publish.
func (f *Feed) Interval() time.Duration {
	if trading.IsTradingTime(f.now()) {
		return f.tick
	}
	return 2 * f.tick
}

// Publish sends a single trade.
func (f *Feed) Publish() {
	t := f.sim.GenerateTrade()
	metrics.SimulatedTrades.Inc()
	f.out.Broadcast(Message{
		Type:      "trade",
		Trade:     &t,
		Countdown: trading.Countdown(f.start, f.now()),
	})
}

// Run publishes until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	f.log.Info("feed started", zap.Duration("tick", f.tick))
	timer := time.NewTimer(f.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.Info("feed stopped")
			return
		case <-timer.C:
			f.Publish()
			timer.Reset(f.Interval())
		}
	}
}
