package analytics

import (
	"sort"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// EAStat aggregates the filtered deals of one EA.
type EAStat struct {
	EAID        string  `json:"ea_id" yaml:"ea_id"`
	Total       int     `json:"total" yaml:"total"`
	Wins        int     `json:"wins" yaml:"wins"`
	Losses      int     `json:"losses" yaml:"losses"`
	Net         float64 `json:"net" yaml:"net"`
	GrossProfit float64 `json:"gross_profit" yaml:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss" yaml:"gross_loss"`
	WinRate     float64 `json:"win_rate" yaml:"win_rate"`
	AvgWin      float64 `json:"avg_win" yaml:"avg_win"`
	AvgLoss     float64 `json:"avg_loss" yaml:"avg_loss"`
}

// RankEAs groups deals by EA and orders the groups by net profit, highest
// first. Equal net profit is ordered by EA id so the ranking is stable.
func RankEAs(filtered []models.Deal) []EAStat {
	byEA := make(map[string]*EAStat)
	for _, d := range filtered {
		s, ok := byEA[d.EAID]
		if !ok {
			s = &EAStat{EAID: d.EAID}
			byEA[d.EAID] = s
		}
		s.Total++
		s.Net += d.NetProfit
		if d.IsWin() {
			s.Wins++
			s.GrossProfit += d.NetProfit
		} else {
			s.Losses++
			s.GrossLoss += d.NetProfit
		}
	}

	ranking := make([]EAStat, 0, len(byEA))
	for _, s := range byEA {
		if s.Total > 0 {
			s.WinRate = float64(s.Wins) / float64(s.Total) * 100
		}
		if s.Wins > 0 {
			s.AvgWin = s.GrossProfit / float64(s.Wins)
		}
		if s.Losses > 0 {
			s.AvgLoss = s.GrossLoss / float64(s.Losses)
		}
		ranking = append(ranking, *s)
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Net != ranking[j].Net {
			return ranking[i].Net > ranking[j].Net
		}
		return ranking[i].EAID < ranking[j].EAID
	})
	return ranking
}

// TopEA returns the best ranked EA, or nil for an empty ranking.
func TopEA(ranking []EAStat) *EAStat {
	if len(ranking) == 0 {
		return nil
	}
	top := ranking[0]
	return &top
}
