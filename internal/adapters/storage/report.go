package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// ProfitReport agrega el ledger bruto (profits) y el neto (profit_cycles).
// Las cifras "24h" cubren desde since hasta ahora.
func (s *SQLiteStorage) ProfitReport(ctx context.Context, since time.Time) (domain.ProfitReport, error) {
	report := domain.ProfitReport{GeneratedAt: time.Now().UTC(), Since: since.UTC()}
	db, err := s.conn()
	if err != nil {
		return report, err
	}
	sinceStr, err := formatTime(since)
	if err != nil {
		return report, fmt.Errorf("storage.ProfitReport: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(profit_usdt), 0), COUNT(*),
		       COALESCE(SUM(CASE WHEN timestamp >= ? THEN profit_usdt END), 0),
		       COUNT(CASE WHEN timestamp >= ? THEN 1 END)
		FROM profits`, sinceStr, sinceStr,
	).Scan(&report.Gross.TotalProfit, &report.Gross.TotalTrades, &report.Gross.Profit24h, &report.Gross.Trades24h)
	if err != nil {
		return report, fmt.Errorf("storage.ProfitReport: gross: %w", err)
	}

	n := &report.Net
	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(gross_profit), 0), COALESCE(SUM(net_profit), 0), COUNT(*),
		       COALESCE(SUM(CASE WHEN timestamp >= ? THEN gross_profit END), 0),
		       COALESCE(SUM(CASE WHEN timestamp >= ? THEN net_profit END), 0),
		       COUNT(CASE WHEN timestamp >= ? THEN 1 END),
		       COALESCE(MAX(net_profit), 0), COALESCE(MIN(net_profit), 0), COALESCE(AVG(net_profit), 0)
		FROM profit_cycles`, sinceStr, sinceStr, sinceStr,
	).Scan(&n.TotalGross, &n.TotalNet, &n.TotalTrades, &n.Gross24h, &n.Net24h, &n.Trades24h,
		&n.BestTrade, &n.WorstTrade, &n.AvgNet)
	if err != nil {
		return report, fmt.Errorf("storage.ProfitReport: net: %w", err)
	}

	if report.OpenOrders, err = s.CountOpenOrders(ctx); err != nil {
		return report, fmt.Errorf("storage.ProfitReport: %w", err)
	}
	return report, nil
}
