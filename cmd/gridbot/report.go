package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/gridbot/internal/adapters/notify"
	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// runReport arma el reporte de las últimas 24h, lo imprime como tabla y lo
// envía por el notifier.
func runReport(ctx context.Context, ledger ports.Ledger, notifier ports.Notifier, symbol string) error {
	_, quote, err := domain.SplitSymbol(symbol)
	if err != nil {
		return fmt.Errorf("runReport: %w", err)
	}

	r, err := ledger.ProfitReport(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("runReport: %w", err)
	}

	notify.NewConsole().PrintProfitReport(r, quote)

	if err := notifier.Notify(ctx, notify.FormatProfitReport(r, quote)); err != nil {
		slog.Warn("report: notification failed", "err", err)
	}
	slog.Info("report: sent", "net_cycles", r.Net.TotalTrades, "net_total", r.Net.TotalNet)
	return nil
}
