package models

import "time"

// SnapshotSummary is the persisted headline of one applied snapshot.
type SnapshotSummary struct {
	ID            string    `json:"id"`
	ComputedAt    time.Time `json:"computed_at"`
	Trigger       string    `json:"trigger"`
	DateFrom      time.Time `json:"date_from"`
	DateTo        time.Time `json:"date_to"`
	DealsFetched  int       `json:"deals_fetched"`
	TotalTrades   int       `json:"total_trades"`
	NetProfit     float64   `json:"net_profit"`
	ProfitFactor  float64   `json:"profit_factor"`
	WinRate       float64   `json:"win_rate"`
	MaxWinStreak  int       `json:"max_win_streak"`
	MaxLossStreak int       `json:"max_loss_streak"`
	TopEA         string    `json:"top_ea,omitempty"`
}
