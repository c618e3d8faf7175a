package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/auction-analyzer/internal/analyzer"
	"github.com/david/auction-analyzer/internal/models"
)

// Console renders the run summary and the top-deals table to w.
func Console(w io.Writer, result models.AnalysisResult, topN int) {
	fmt.Fprintf(w, "\nAnalyzed %d properties, %d recommended\n", result.TotalProperties, result.RecommendedDeals)
	fmt.Fprintf(w, "Avg margin %.1f%%, avg score %.1f\n\n", result.AvgProfitMargin, result.AvgDealScore)

	deals := result.TopDeals
	if topN > 0 && topN < len(deals) {
		deals = deals[:topN]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Address", "City", "St", "Price", "ARV", "Repairs", "Margin", "Score", "Max Bid", "Auction", "Rec"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Price", Align: text.AlignRight},
		{Name: "ARV", Align: text.AlignRight},
		{Name: "Repairs", Align: text.AlignRight},
		{Name: "Margin", Align: text.AlignRight},
		{Name: "Score", Align: text.AlignRight},
		{Name: "Max Bid", Align: text.AlignRight},
	})

	for i, p := range deals {
		t.AppendRow(table.Row{
			i + 1,
			truncate(p.Address, 32),
			p.City,
			p.State,
			fmt.Sprintf("$%.0f", p.AuctionPrice),
			fmt.Sprintf("$%.0f", p.EstimatedARV),
			fmt.Sprintf("$%.0f", p.EstimatedRepairs),
			fmt.Sprintf("%.1f%%", p.ProfitMargin),
			fmt.Sprintf("%.1f", p.DealScore),
			fmt.Sprintf("$%.0f", p.MaxBidPrice),
			p.AuctionDate,
			yesNo(p.Recommended),
		})
	}
	t.Render()

	if len(result.Alerts) > 0 {
		fmt.Fprintf(w, "\n%d alerts:\n", len(result.Alerts))
		for _, a := range result.Alerts {
			fmt.Fprintf(w, "  [%s] %s | margin %s | potential %s | auction %s\n",
				a.Level, a.Address, a.ProfitMargin, a.ProfitPotential, a.AuctionDate)
		}
	}

	printGroup(w, "By state", countsOf(result.Statistics.StateCounts))
}

// ConsoleStats renders the grouped statistics tables.
func ConsoleStats(w io.Writer, stats models.Statistics) {
	fmt.Fprintf(w, "\nAvg auction price $%.0f (median $%.0f), avg ARV $%.0f\n",
		stats.AvgAuctionPrice, stats.MedianAuctionPrice, stats.AvgARV)
	fmt.Fprintf(w, "Margin bands: %d over 40%%, %d in 30-40%%, %d in 20-30%%\n",
		stats.DealsOver40Pct, stats.Deals30To40Pct, stats.Deals20To30Pct)

	groupTable(w, "By region", stats.ByRegion)
	groupTable(w, "By platform", stats.ByPlatform)
	groupTable(w, "By source", stats.BySource)
}

// ConsoleStateComparison renders the per-state deal comparison table.
func ConsoleStateComparison(w io.Writer, rows []analyzer.StateComparison) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "\nNo properties to compare across states")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("State comparison")
	t.AppendHeader(table.Row{"State", "Properties", "Recommended", "Avg Margin", "Avg Score", "Top Deal"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Properties", Align: text.AlignRight},
		{Name: "Recommended", Align: text.AlignRight},
		{Name: "Avg Margin", Align: text.AlignRight},
		{Name: "Avg Score", Align: text.AlignRight},
	})

	for _, r := range rows {
		topDeal := ""
		if r.TopDeal != nil {
			topDeal = fmt.Sprintf("%s, %s (%.1f%% / %.1f)",
				truncate(r.TopDeal.Address, 28), r.TopDeal.City,
				r.TopDeal.ProfitMargin, r.TopDeal.DealScore)
		}
		t.AppendRow(table.Row{
			r.State, r.Count, r.Recommended,
			fmt.Sprintf("%.1f%%", r.AvgMargin),
			fmt.Sprintf("%.1f", r.AvgScore),
			topDeal,
		})
	}
	t.Render()
}

func groupTable(w io.Writer, title string, groups map[string]models.GroupStat) {
	if len(groups) == 0 {
		return
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Group", "Count", "Avg Margin"})
	for _, k := range keys {
		g := groups[k]
		t.AppendRow(table.Row{k, g.Count, fmt.Sprintf("%.1f%%", g.AvgMargin)})
	}
	t.Render()
}

func printGroup(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

func countsOf(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
