package ports

import "github.com/alejandrodnm/gridbot/internal/domain"

// Metrics records engine activity. Implementations must be safe to call
// from the engine goroutine while being scraped concurrently.
type Metrics interface {
	OrderPlaced(side domain.Side)
	OrderSkipped(reason string)
	OrderFilled(side domain.Side)
	ProfitRealized(gross, net float64)
	OrdersExpired(n int)
	GridRebuilt()
	OpenOrders(n int)
	LoopError()
}
