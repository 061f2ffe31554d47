// market/instruments.go
package market

import (
	"errors"
	"fmt"
)

// Pair is a tradable symbol shown on the dashboard.
type Pair string

const (
	BTCUSD Pair = "BTC/USD"
	EURUSD Pair = "EUR/USD"
	GOLD   Pair = "GOLD"
)

var ErrUnknownPair = errors.New("unknown pair")

type PairMeta struct {
	Name      Pair
	BasePrice float64
}

// Pairs is the fixed set the simulator draws from. Order matters for
// reproducible draws.
var Pairs = []Pair{BTCUSD, EURUSD, GOLD}

var Instruments = map[Pair]PairMeta{
	BTCUSD: {Name: BTCUSD, BasePrice: 60000},
	EURUSD: {Name: EURUSD, BasePrice: 1.08},
	GOLD:   {Name: GOLD, BasePrice: 2300},
}

// Lookup returns the metadata for p.
func Lookup(p Pair) (PairMeta, error) {
	meta, ok := Instruments[p]
	if !ok {
		return PairMeta{}, fmt.Errorf("%w: %q", ErrUnknownPair, string(p))
	}
	return meta, nil
}

func (p Pair) Valid() bool {
	_, ok := Instruments[p]
	return ok
}

func (p Pair) String() string { return string(p) }
