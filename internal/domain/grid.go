package domain

import (
	"errors"
	"fmt"
	"time"
)

// Side is the direction of a grid order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the counter side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus is the ledger lifecycle of a grid order. OPEN → FILLED, once.
type OrderStatus string

const (
	StatusOpen   OrderStatus = "OPEN"
	StatusFilled OrderStatus = "FILLED"
)

// OrderRecord is one order the grid has placed on a level.
type OrderRecord struct {
	ID              int64 // surrogate key (autoincrement)
	Level           int
	ExchangeOrderID string
	Price           float64
	Side            Side
	Amount          float64
	Status          OrderStatus
	UpdatedAt       time.Time
}

// ExecutionRecord is the confirmed execution of a filled order.
// Seq is the insertion sequence, used for FIFO matching of buy legs.
type ExecutionRecord struct {
	Seq             int64
	Level           int
	ExchangeOrderID string
	Side            Side
	ExecPrice       float64
	ExecAmount      float64
	Fee             float64
	FeeCurrency     string
	Consumed        bool
	ExecutedAt      time.Time
}

// ErrInvalidGrid is returned when the price range or level count cannot form a grid.
var ErrInvalidGrid = errors.New("invalid grid range")

// GridConfig holds the geometry of the ladder. RangeWidth and LevelCount never
// change for the process lifetime; Lower/Upper only move through Recenter.
type GridConfig struct {
	RangeWidth float64
	LevelCount int
	Step       float64
	Lower      float64
	Upper      float64
}

// Level is a derived (index, price) pair.
type Level struct {
	Index int
	Price float64
}

// NewGridConfig builds the geometry from the configured bounds.
func NewGridConfig(lower, upper float64, levels int) (GridConfig, error) {
	if lower <= 0 || upper <= lower {
		return GridConfig{}, fmt.Errorf("%w: lower=%.8f upper=%.8f", ErrInvalidGrid, lower, upper)
	}
	if levels < 1 {
		return GridConfig{}, fmt.Errorf("%w: levels=%d", ErrInvalidGrid, levels)
	}
	width := upper - lower
	return GridConfig{
		RangeWidth: width,
		LevelCount: levels,
		Step:       width / float64(levels),
		Lower:      lower,
		Upper:      upper,
	}, nil
}

// Recenter moves the bounds around anchor keeping width and step.
// A non-positive anchor leaves the grid untouched, and the lower bound is
// floored at one step so no level ends up with a non-positive price.
func (g GridConfig) Recenter(anchor float64) GridConfig {
	if anchor <= 0 {
		return g
	}
	half := g.RangeWidth / 2
	lower := anchor - half
	if lower < g.Step {
		lower = g.Step
	}
	g.Lower = lower
	g.Upper = lower + g.RangeWidth
	return g
}

// PriceAt returns the implied price of level i.
func (g GridConfig) PriceAt(i int) float64 {
	return g.Lower + float64(i)*g.Step
}

// InRange reports whether i is a valid level index (0..LevelCount inclusive).
func (g GridConfig) InRange(i int) bool {
	return i >= 0 && i <= g.LevelCount
}

// Levels returns every level from 0 to LevelCount, ascending.
func (g GridConfig) Levels() []Level {
	levels := make([]Level, 0, g.LevelCount+1)
	for i := 0; i <= g.LevelCount; i++ {
		levels = append(levels, Level{Index: i, Price: g.PriceAt(i)})
	}
	return levels
}

// CounterIntent is the order armed one level away after a fill.
type CounterIntent struct {
	Level int
	Side  Side
	Price float64
}

// Counter computes the counter-order for a filled record. A filled BUY at i
// arms a SELL at i+1 one step up; a filled SELL at i arms a BUY at i-1 one
// step down. ok is false when the target falls outside the grid.
func (g GridConfig) Counter(filled OrderRecord) (intent CounterIntent, ok bool) {
	dir := 1
	if filled.Side != SideBuy {
		dir = -1
	}
	intent = CounterIntent{
		Level: filled.Level + dir,
		Side:  filled.Side.Opposite(),
		Price: filled.Price + float64(dir)*g.Step,
	}
	return intent, g.InRange(intent.Level)
}
