// Package report renders a one-shot analytics report as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/eaanalyzer/internal/analytics"
	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json, yaml or yml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
}

// Document is the serialized report.
type Document struct {
	GeneratedAt  time.Time                `json:"generated_at" yaml:"generated_at"`
	Source       string                   `json:"source" yaml:"source"`
	DateFrom     time.Time                `json:"date_from" yaml:"date_from"`
	DateTo       time.Time                `json:"date_to" yaml:"date_to"`
	DealsLoaded  int                      `json:"deals_loaded" yaml:"deals_loaded"`
	General      analytics.GeneralMetrics `json:"general" yaml:"general"`
	Ranking      []analytics.EAStat       `json:"ea_ranking" yaml:"ea_ranking"`
	Daily        []analytics.DailyPoint   `json:"daily_series" yaml:"daily_series"`
	Heatmap      analytics.Heatmap        `json:"heatmap" yaml:"heatmap"`
	RecentTrades []models.Deal            `json:"recent_trades" yaml:"recent_trades"`
	Extremes     analytics.Extremes       `json:"extremes" yaml:"extremes"`
	BestTrades   []models.Deal            `json:"best_trades" yaml:"best_trades"`
	WorstTrades  []models.Deal            `json:"worst_trades" yaml:"worst_trades"`
}

// New builds a Document from a computed snapshot.
func New(snap analytics.Snapshot, criteria models.FilterCriteria, dealsLoaded int, source string, now time.Time) Document {
	return Document{
		GeneratedAt:  now,
		Source:       source,
		DateFrom:     criteria.DateFrom,
		DateTo:       criteria.DateTo,
		DealsLoaded:  dealsLoaded,
		General:      snap.General,
		Ranking:      snap.Ranking,
		Daily:        snap.Daily,
		Heatmap:      snap.Heatmap,
		RecentTrades: snap.RecentTrades,
		Extremes:     snap.Extremes,
		BestTrades:   snap.BestTrades,
		WorstTrades:  snap.WorstTrades,
	}
}

// Write encodes doc to w in the given format.
func Write(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		return writeText(w, doc)
	}
	return fmt.Errorf("unknown report format %q", format)
}

func writeText(w io.Writer, doc Document) error {
	g := doc.General
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "EA performance %s to %s (%s, %s deals loaded)\n\n",
		doc.DateFrom.Format(analytics.DateLayout), doc.DateTo.Format(analytics.DateLayout),
		doc.Source, humanize.Comma(int64(doc.DealsLoaded)))

	fmt.Fprintf(tw, "Net profit\t%s\n", money(g.NetProfit))
	fmt.Fprintf(tw, "Gross profit / loss\t%s / %s\n", money(g.GrossProfit), money(g.GrossLoss))
	fmt.Fprintf(tw, "Costs\t%s\n", money(g.TotalCosts))
	fmt.Fprintf(tw, "Trades\t%s (%d wins, %d losses)\n", humanize.Comma(int64(g.TotalTrades)), g.TotalWins, g.TotalLosses)
	fmt.Fprintf(tw, "Win rate\t%.1f%%\n", g.WinRate)
	fmt.Fprintf(tw, "Profit factor\t%s\n", profitFactor(g.ProfitFactor))
	fmt.Fprintf(tw, "Avg win / loss\t%s / %s\n", money(g.AvgWin), money(g.AvgLoss))
	fmt.Fprintf(tw, "Max streaks\t%d wins, %d losses\n", g.MaxWinStreak, g.MaxLossStreak)
	fmt.Fprintf(tw, "Largest win / loss\t%s / %s\n", money(doc.Extremes.MaxProfit), money(doc.Extremes.MaxLoss))
	fmt.Fprintf(tw, "Breakeven trades\t%d\n", doc.Extremes.Breakeven)

	if len(doc.Ranking) > 0 {
		fmt.Fprintf(tw, "\nEA\tTrades\tWin rate\tNet\n")
		for _, s := range doc.Ranking {
			fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\n", s.EAID, s.Total, s.WinRate, money(s.Net))
		}
	}

	writeTrades(tw, "Best trades", doc.BestTrades)
	writeTrades(tw, "Worst trades", doc.WorstTrades)

	if len(doc.Daily) > 0 {
		fmt.Fprintf(tw, "\nDate\tProfit\n")
		for _, d := range doc.Daily {
			fmt.Fprintf(tw, "%s\t%s\n", d.Date, money(d.Profit))
		}
	}

	return tw.Flush()
}

func writeTrades(w io.Writer, title string, deals []models.Deal) {
	if len(deals) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\tTime\tEA\tNet\n", title)
	for _, d := range deals {
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\n", d.Ticket, d.Time.Format("2006-01-02 15:04"), d.EAID, money(d.NetProfit))
	}
}

func money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func profitFactor(pf float64) string {
	if pf >= analytics.ProfitFactorInfinite {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
