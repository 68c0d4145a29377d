package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/seenimoa/finboard/pkg/models"
)

// Compact text output for terminals. --json prints the full records.

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func arrow(positive bool) string {
	if positive {
		return "▲"
	}
	return "▼"
}

func writeIndices(w io.Writer, indices []models.MarketIndex) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "INDEX\tVALUE\tCHANGE\t%")
	for _, idx := range indices {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", idx.Name, idx.Value, arrow(idx.IsPositive), idx.Change, idx.PercentChange)
	}
	return tw.Flush()
}

func writeNews(w io.Writer, articles []models.NewsArticle) error {
	for i, a := range articles {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, a.Title)
		fmt.Fprintf(w, "   %s | %s | %s\n", a.Source, a.PublicationDate, a.URL)
		if a.Summary != "" {
			fmt.Fprintf(w, "   %s\n", a.Summary)
		}
	}
	return nil
}

func writeStock(w io.Writer, rec *models.StockRecord) error {
	fmt.Fprintf(w, "%s (%s)\n", rec.CompanyName, rec.Ticker)
	tw := newTable(w)
	fmt.Fprintf(tw, "Price\t%s\t%s %s (%s)\n", rec.Price, arrow(rec.IsPositive), rec.Change, rec.PercentChange)
	fmt.Fprintf(tw, "Open / High / Low\t%s / %s / %s\n", orDash(rec.Open.ValueOrZero()), orDash(rec.High.ValueOrZero()), orDash(rec.Low.ValueOrZero()))
	fmt.Fprintf(tw, "Market cap\t%s\n", orDash(rec.MarketCap.String()))
	fmt.Fprintf(tw, "P/E\t%s\n", orDash(rec.PERatio.String()))
	fmt.Fprintf(tw, "Dividend yield\t%s\n", orDash(rec.DividendYield.String()))
	if n := len(rec.ChartData); n > 0 {
		first, last := rec.ChartData[0], rec.ChartData[n-1]
		fmt.Fprintf(tw, "Chart\t%d points, %s %s -> %s %s\n", n,
			first.DateTime, first.Price.StringFixed(2), last.DateTime, last.Price.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", rec.Analysis)
	return nil
}

func writeScreen(w io.Writer, results []models.ScreenerResult) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "TICKER\tCOMPANY\tMETRICS")
	for _, r := range results {
		metrics := make([]string, len(r.Metrics))
		for i, m := range r.Metrics {
			metrics[i] = m.Name + " " + m.Value.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Ticker, r.CompanyName, strings.Join(metrics, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(w, "\n%s: %s\n", r.Ticker, r.Explanation)
	}
	return nil
}

func writeDashboard(w io.Writer, b *models.DashboardBundle) error {
	fmt.Fprintf(w, "Market dashboard (fetched %s)\n\n", b.FetchedAt.Format("2006-01-02 15:04 MST"))
	if err := writeIndices(w, b.Indices); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s\n\n", b.ResearchSummary)
	if err := writeNews(w, b.News); err != nil {
		return err
	}

	if len(b.LatestUpdates) > 0 {
		fmt.Fprintln(w, "\nLatest:")
		for _, u := range b.LatestUpdates {
			fmt.Fprintf(w, "  %s %s %s: %s\n", arrow(u.IsPositive), u.Ticker, u.Change, u.Headline)
		}
	}

	if len(b.Earnings) > 0 {
		fmt.Fprintln(w, "\nEarnings:")
		tw := newTable(w)
		for _, e := range b.Earnings {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", e.Date, e.Ticker, e.CompanyName, e.Timing)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(b.Sidebar.Watchlist) > 0 {
		fmt.Fprintln(w, "\nWatchlist:")
		tw := newTable(w)
		for _, q := range b.Sidebar.Watchlist {
			fmt.Fprintf(tw, "  %s\t%s\t%s %s\n", q.Ticker, q.Price, arrow(q.IsPositive), q.PercentChange)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
