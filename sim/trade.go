package sim

import (
	"time"

	"github.com/rustyeddy/quantumai/market"
)

const (
	StatusCompleted = "completed"
	ResultWin       = "win"
)

// Trade is a synthetic, display-only trade outcome. It is never persisted
// or mutated after GenerateTrade returns it.
type Trade struct {
	ID            string      `json:"id"`
	Pair          market.Pair `json:"pair"`
	EntryPrice    float64     `json:"entry"`
	ExitPrice     float64     `json:"exit"`
	ProfitPercent float64     `json:"profit_percent"` // fraction, 0.012 == 1.2%
	Profit        float64     `json:"profit"`
	Timestamp     time.Time   `json:"timestamp"`
	Status        string      `json:"status"`
	Result        string      `json:"result"`
}

func (t Trade) Win() bool {
	return t.Result == ResultWin
}
