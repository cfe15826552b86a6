// Package analytics derives the dashboard's performance views from a set of
// deals and filter criteria. Every function here is pure: no I/O, no package
// state, and the same input always yields the same output.
package analytics

import (
	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// Filter returns the deals that pass every non-date criterion, in input order.
// Date bounds are the fetcher's job and are not rechecked here.
func Filter(deals []models.Deal, criteria models.FilterCriteria) []models.Deal {
	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if !criteria.AllowsAsset(d.Symbol) {
			continue
		}
		if !criteria.AllowsEA(d.EAID) {
			continue
		}
		if !criteria.AllowsDay(models.WeekdayName(d.Time.Weekday())) {
			continue
		}
		if !criteria.AllowsHour(d.Time.Hour()) {
			continue
		}
		out = append(out, d)
	}
	return out
}
