package notify

import (
	"fmt"
	"strings"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// FormatProfitReport construye el texto del reporte diario para Telegram.
func FormatProfitReport(r domain.ProfitReport, quote string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Grid daily report\n")
	fmt.Fprintf(&sb, "🕒 Generated %s\n\n", r.GeneratedAt.Local().Format("02/01/2006 15:04"))

	g := r.Gross
	fmt.Fprintf(&sb, "🔹 GROSS profit (no fees)\n")
	fmt.Fprintf(&sb, "• All time: %.4f %s in %d trades\n", g.TotalProfit, quote, g.TotalTrades)
	fmt.Fprintf(&sb, "• Last 24h: %.4f %s in %d trades\n\n", g.Profit24h, quote, g.Trades24h)

	n := r.Net
	fmt.Fprintf(&sb, "🟢 NET profit (fees included)\n")
	fmt.Fprintf(&sb, "• Gross of closed cycles: %.4f %s\n", n.TotalGross, quote)
	fmt.Fprintf(&sb, "• Net: %.4f %s in %d cycles\n", n.TotalNet, quote, n.TotalTrades)
	fmt.Fprintf(&sb, "• Last 24h gross: %.4f %s\n", n.Gross24h, quote)
	fmt.Fprintf(&sb, "• Last 24h net: %.4f %s in %d cycles\n", n.Net24h, quote, n.Trades24h)
	fmt.Fprintf(&sb, "• Average net per cycle: %.4f %s\n", n.AvgNet, quote)
	fmt.Fprintf(&sb, "• Best cycle: %.4f %s\n", n.BestTrade, quote)
	fmt.Fprintf(&sb, "• Worst cycle: %.4f %s\n", n.WorstTrade, quote)
	fmt.Fprintf(&sb, "\nOpen orders: %d\n", r.OpenOrders)

	if n.TotalTrades == 0 {
		sb.WriteString("\nℹ️ No fee-aware profit cycles recorded yet.\n")
	}
	return sb.String()
}

// PrintProfitReport imprime el reporte como tabla.
func (c *Console) PrintProfitReport(r domain.ProfitReport, quote string) {
	fmt.Fprintf(c.out, "\n── GRID PROFIT REPORT (%s) ──\n", r.GeneratedAt.Local().Format("2006-01-02 15:04"))

	table := tablewriter.NewWriter(c.out)
	table.Header("Ledger", "Period", "Gross "+quote, "Net "+quote, "Trades")
	table.Append("gross", "all time", fmt.Sprintf("%.4f", r.Gross.TotalProfit), "-", fmt.Sprintf("%d", r.Gross.TotalTrades))
	table.Append("gross", "24h", fmt.Sprintf("%.4f", r.Gross.Profit24h), "-", fmt.Sprintf("%d", r.Gross.Trades24h))
	table.Append("cycles", "all time", fmt.Sprintf("%.4f", r.Net.TotalGross), fmt.Sprintf("%.4f", r.Net.TotalNet), fmt.Sprintf("%d", r.Net.TotalTrades))
	table.Append("cycles", "24h", fmt.Sprintf("%.4f", r.Net.Gross24h), fmt.Sprintf("%.4f", r.Net.Net24h), fmt.Sprintf("%d", r.Net.Trades24h))
	table.Render()

	fmt.Fprintf(c.out, "  Avg net/cycle: %.4f  Best: %.4f  Worst: %.4f\n", r.Net.AvgNet, r.Net.BestTrade, r.Net.WorstTrade)
	fmt.Fprintf(c.out, "  Open orders:   %d\n", r.OpenOrders)
	if r.Net.TotalTrades == 0 {
		fmt.Fprintln(c.out, "  (no fee-aware profit cycles recorded yet)")
	}
}
