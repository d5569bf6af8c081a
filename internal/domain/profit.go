package domain

import (
	"math"
	"time"
)

// ProfitCycle is one matched buy→sell pair. Append-only.
type ProfitCycle struct {
	ID          int64
	BuyPrice    float64
	SellPrice   float64
	Amount      float64
	BuyFee      float64
	SellFee     float64
	GrossProfit float64
	NetProfit   float64
	SellOrderID string
	Timestamp   time.Time
}

// MatchCycle closes a cycle from a buy leg and a sell leg.
// qty = min of both legs so precision drift between them never inflates profit.
func MatchCycle(buy, sell ExecutionRecord, at time.Time) ProfitCycle {
	qty := math.Min(buy.ExecAmount, sell.ExecAmount)
	gross := (sell.ExecPrice - buy.ExecPrice) * qty
	return ProfitCycle{
		BuyPrice:    buy.ExecPrice,
		SellPrice:   sell.ExecPrice,
		Amount:      qty,
		BuyFee:      buy.Fee,
		SellFee:     sell.Fee,
		GrossProfit: gross,
		NetProfit:   gross - buy.Fee - sell.Fee,
		SellOrderID: sell.ExchangeOrderID,
		Timestamp:   at,
	}
}

// LegacyProfit is the gross profit estimate written to the old `profits`
// ledger on every sell fill: one step times the order amount.
func LegacyProfit(sell OrderRecord, step float64) float64 {
	return step * sell.Amount
}

// GrossStats aggregates the legacy gross ledger.
type GrossStats struct {
	TotalProfit float64
	TotalTrades int
	Profit24h   float64
	Trades24h   int
}

// NetStats aggregates the fee-aware profit cycles.
type NetStats struct {
	TotalGross  float64
	TotalNet    float64
	TotalTrades int
	Gross24h    float64
	Net24h      float64
	Trades24h   int
	BestTrade   float64
	WorstTrade  float64
	AvgNet      float64
}

// ProfitReport is the daily report built from the ledger.
type ProfitReport struct {
	GeneratedAt time.Time
	Since       time.Time
	Gross       GrossStats
	Net         NetStats
	OpenOrders  int
}
