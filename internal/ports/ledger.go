package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Ledger persists grid orders, executions and realized profit.
type Ledger interface {
	ApplyGridSchema(ctx context.Context) error

	// Orders
	InsertOrder(ctx context.Context, o domain.OrderRecord) (int64, error)
	FindOpenOrder(ctx context.Context, level int, side domain.Side) (domain.OrderRecord, bool, error)
	OpenOrders(ctx context.Context) ([]domain.OrderRecord, error)
	CountOpenOrders(ctx context.Context) (int, error)
	FilledOrders(ctx context.Context) ([]domain.OrderRecord, error)
	DeleteOrder(ctx context.Context, id int64) error
	StaleOrders(ctx context.Context, olderThan time.Time) ([]domain.OrderRecord, error)
	// OrderPlacedAfter reports whether any record (any status) exists at
	// (level, side) with an id greater than afterID.
	OrderPlacedAfter(ctx context.Context, level int, side domain.Side, afterID int64) (bool, error)

	// Executions
	// RecordFill moves an OPEN record to FILLED and stores its execution in
	// one transaction, returning the execution seq. Nothing is written when
	// the record is no longer OPEN.
	RecordFill(ctx context.Context, id int64, e domain.ExecutionRecord) (int64, error)
	OldestUnconsumedBuy(ctx context.Context, level int) (domain.ExecutionRecord, bool, error)

	// Profit
	// CloseCycle stores the cycle and consumes the buy execution atomically.
	CloseCycle(ctx context.Context, c domain.ProfitCycle, buySeq int64) error
	InsertLegacyProfit(ctx context.Context, amount float64, at time.Time) error
	ProfitCycles(ctx context.Context) ([]domain.ProfitCycle, error)
	ProfitReport(ctx context.Context, since time.Time) (domain.ProfitReport, error)
}
