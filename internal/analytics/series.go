package analytics

import (
	"sort"
	"time"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// DateLayout formats calendar days in the daily series.
const DateLayout = "2006-01-02"

// EquityPoint is the running balance after one deal.
type EquityPoint struct {
	Time    time.Time `json:"time" yaml:"time"`
	Balance float64   `json:"balance" yaml:"balance"`
	Ticket  int64     `json:"ticket" yaml:"ticket"`
}

// DailyPoint is the summed net profit of one calendar day.
type DailyPoint struct {
	Date   string  `json:"date" yaml:"date"`
	Profit float64 `json:"profit" yaml:"profit"`
}

// EquityCurve accumulates net profit starting from zero.
// It walks the deals in the order given and does not sort by time, so the
// curve reflects fetch order.
func EquityCurve(filtered []models.Deal) []EquityPoint {
	points := make([]EquityPoint, 0, len(filtered))
	var balance float64
	for _, d := range filtered {
		balance += d.NetProfit
		points = append(points, EquityPoint{
			Time:    d.Time,
			Balance: balance,
			Ticket:  d.Ticket,
		})
	}
	return points
}

// DailySeries groups net profit by each deal's local calendar day.
// Days without deals are omitted; the result is sorted by date.
func DailySeries(filtered []models.Deal) []DailyPoint {
	byDay := make(map[string]float64)
	for _, d := range filtered {
		byDay[d.Time.Format(DateLayout)] += d.NetProfit
	}

	points := make([]DailyPoint, 0, len(byDay))
	for day, profit := range byDay {
		points = append(points, DailyPoint{Date: day, Profit: profit})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points
}
