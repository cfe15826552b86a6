package analytics

import (
	"slices"
	"sort"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// RecentTradesLimit caps the latest-trades list.
const RecentTradesLimit = 10

// Snapshot bundles every view derived from one (deals, criteria) pair.
type Snapshot struct {
	Filtered []models.Deal  `json:"filtered_deals" yaml:"filtered_deals"`
	General  GeneralMetrics `json:"general" yaml:"general"`
	// Advanced is reserved for risk statistics and is always empty.
	Advanced     map[string]any `json:"advanced" yaml:"advanced"`
	Equity       []EquityPoint  `json:"equity_curve" yaml:"equity_curve"`
	Daily        []DailyPoint   `json:"daily_series" yaml:"daily_series"`
	Heatmap      Heatmap        `json:"heatmap" yaml:"heatmap"`
	Ranking      []EAStat       `json:"ea_ranking" yaml:"ea_ranking"`
	TopEA        *EAStat        `json:"top_ea" yaml:"top_ea"`
	Assets       []string       `json:"assets" yaml:"assets"`
	EAs          []string       `json:"eas" yaml:"eas"`
	RecentTrades []models.Deal  `json:"recent_trades" yaml:"recent_trades"`
	Extremes     Extremes       `json:"extremes" yaml:"extremes"`
	BestTrades   []models.Deal  `json:"best_trades" yaml:"best_trades"`
	WorstTrades  []models.Deal  `json:"worst_trades" yaml:"worst_trades"`
}

// Compute filters deals and derives every view from the filtered set.
func Compute(deals []models.Deal, criteria models.FilterCriteria) Snapshot {
	filtered := Filter(deals, criteria)
	ranking := RankEAs(filtered)
	assets, eas := Options(deals)

	return Snapshot{
		Filtered:     filtered,
		General:      ComputeGeneral(filtered),
		Advanced:     map[string]any{},
		Equity:       EquityCurve(filtered),
		Daily:        DailySeries(filtered),
		Heatmap:      BuildHeatmap(filtered, criteria.SelectedHours),
		Ranking:      ranking,
		TopEA:        TopEA(ranking),
		Assets:       assets,
		EAs:          eas,
		RecentTrades: RecentTrades(filtered, RecentTradesLimit),
		Extremes:     ComputeExtremes(filtered),
		BestTrades:   BestTrades(filtered, TopTradesLimit),
		WorstTrades:  WorstTrades(filtered, TopTradesLimit),
	}
}

// Options returns the sorted distinct symbols and EA ids of the unfiltered
// deals, used to populate the asset and EA selectors.
func Options(deals []models.Deal) (assets, eas []string) {
	assetSet := make(map[string]struct{})
	eaSet := make(map[string]struct{})
	for _, d := range deals {
		assetSet[d.Symbol] = struct{}{}
		eaSet[d.EAID] = struct{}{}
	}
	return sortedKeys(assetSet), sortedKeys(eaSet)
}

// RecentTrades returns the last n filtered deals in reverse order.
func RecentTrades(filtered []models.Deal, n int) []models.Deal {
	start := max(0, len(filtered)-n)
	out := slices.Clone(filtered[start:])
	slices.Reverse(out)
	if out == nil {
		out = []models.Deal{}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
