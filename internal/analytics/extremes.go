package analytics

import (
	"slices"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// TopTradesLimit caps the best and worst trade lists.
const TopTradesLimit = 10

// Extremes holds the largest single win and loss of a filtered set.
type Extremes struct {
	// MaxProfit is the largest winning deal, 0 without wins.
	MaxProfit float64 `json:"max_profit" yaml:"max_profit"`
	// MaxLoss is the worst losing deal (negative), 0 without losses.
	MaxLoss float64 `json:"max_loss" yaml:"max_loss"`
	// Breakeven counts deals with exactly zero net profit. They are
	// also counted as wins.
	Breakeven int `json:"breakeven_trades" yaml:"breakeven_trades"`
}

// ComputeExtremes scans the filtered deals once.
func ComputeExtremes(filtered []models.Deal) Extremes {
	var e Extremes
	for _, d := range filtered {
		switch {
		case d.NetProfit == 0:
			e.Breakeven++
		case d.NetProfit > e.MaxProfit:
			e.MaxProfit = d.NetProfit
		case d.NetProfit < e.MaxLoss:
			e.MaxLoss = d.NetProfit
		}
	}
	return e
}

// BestTrades returns up to n deals with the highest net profit, best first.
// Equal profits are ordered by ticket.
func BestTrades(filtered []models.Deal, n int) []models.Deal {
	return topTrades(filtered, n, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})
}

// WorstTrades returns up to n deals with the lowest net profit, worst first.
// Equal profits are ordered by ticket.
func WorstTrades(filtered []models.Deal, n int) []models.Deal {
	return topTrades(filtered, n, func(a, b float64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
}

func topTrades(filtered []models.Deal, n int, byProfit func(a, b float64) int) []models.Deal {
	sorted := slices.Clone(filtered)
	slices.SortFunc(sorted, func(a, b models.Deal) int {
		if c := byProfit(a.NetProfit, b.NetProfit); c != 0 {
			return c
		}
		switch {
		case a.Ticket < b.Ticket:
			return -1
		case a.Ticket > b.Ticket:
			return 1
		}
		return 0
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []models.Deal{}
	}
	return sorted
}
