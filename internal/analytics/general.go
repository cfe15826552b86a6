package analytics

import (
	"math"
	"slices"
	"sort"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// ProfitFactorInfinite stands in for an unbounded profit factor
// (gross profit with no losses).
const ProfitFactorInfinite = 999.0

// GeneralMetrics are the headline KPIs of a filtered deal set.
type GeneralMetrics struct {
	NetProfit     float64 `json:"net_profit" yaml:"net_profit"`
	GrossProfit   float64 `json:"gross_profit" yaml:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss" yaml:"gross_loss"`
	TotalCosts    float64 `json:"total_costs" yaml:"total_costs"`
	TotalTrades   int     `json:"total_trades" yaml:"total_trades"`
	TotalWins     int     `json:"total_wins" yaml:"total_wins"`
	TotalLosses   int     `json:"total_losses" yaml:"total_losses"`
	AvgWin        float64 `json:"avg_win" yaml:"avg_win"`
	AvgLoss       float64 `json:"avg_loss" yaml:"avg_loss"`
	WinRate       float64 `json:"win_rate" yaml:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor" yaml:"profit_factor"`
	MaxWinStreak  int     `json:"max_win_streak" yaml:"max_win_streak"`
	MaxLossStreak int     `json:"max_loss_streak" yaml:"max_loss_streak"`
}

// ComputeGeneral computes the KPIs of an already filtered deal set.
// An empty set yields the zero value.
func ComputeGeneral(filtered []models.Deal) GeneralMetrics {
	var m GeneralMetrics
	m.TotalTrades = len(filtered)

	for i := range filtered {
		d := &filtered[i]
		m.NetProfit += d.NetProfit
		m.TotalCosts += d.Costs()
		if d.IsWin() {
			m.TotalWins++
			m.GrossProfit += d.NetProfit
		} else {
			m.TotalLosses++
			m.GrossLoss += d.NetProfit
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.TotalWins) / float64(m.TotalTrades) * 100
	}
	m.ProfitFactor = profitFactor(m.GrossProfit, m.GrossLoss)
	if m.TotalWins > 0 {
		m.AvgWin = m.GrossProfit / float64(m.TotalWins)
	}
	if m.TotalLosses > 0 {
		m.AvgLoss = m.GrossLoss / float64(m.TotalLosses)
	}

	m.MaxWinStreak, m.MaxLossStreak = streaks(filtered)
	return m
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	switch {
	case math.Abs(grossLoss) > 0:
		return grossProfit / math.Abs(grossLoss)
	case grossProfit > 0:
		return ProfitFactorInfinite
	default:
		return 0
	}
}

// streaks returns the longest runs of consecutive wins and losses in time
// order. Deals sharing a timestamp keep their relative input order.
func streaks(deals []models.Deal) (maxWin, maxLoss int) {
	sorted := slices.Clone(deals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	var curWin, curLoss int
	for i := range sorted {
		if sorted[i].IsWin() {
			curWin++
			curLoss = 0
			if curWin > maxWin {
				maxWin = curWin
			}
		} else {
			curLoss++
			curWin = 0
			if curLoss > maxLoss {
				maxLoss = curLoss
			}
		}
	}
	return maxWin, maxLoss
}
