package models

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// All is the selection sentinel meaning "every asset" or "every EA".
const All = "Todos"

// Weekdays lists weekday names in heatmap row order.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DefaultDays is the default day selection.
var DefaultDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

// WeekdayName returns the short English name used by day filters.
func WeekdayName(d time.Weekday) string {
	// time.Weekday starts at Sunday.
	return Weekdays[(int(d)+6)%7]
}

// IsWeekdayName reports whether name is one of Weekdays.
func IsWeekdayName(name string) bool {
	return slices.Contains(Weekdays, name)
}

// DefaultHours returns the default hour selection, 9h to 20h.
func DefaultHours() []int {
	hours := make([]int, 0, 12)
	for h := 9; h <= 20; h++ {
		hours = append(hours, h)
	}
	return hours
}

// FilterCriteria selects which deals feed the analytics.
// Date bounds are applied by the fetch, the rest by analytics.Filter.
type FilterCriteria struct {
	DateFrom       time.Time `json:"date_from"`
	DateTo         time.Time `json:"date_to"`
	SelectedAssets []string  `json:"selected_assets"`
	SelectedEAs    []string  `json:"selected_eas"`
	SelectedDays   []string  `json:"selected_days"`
	SelectedHours  []int     `json:"selected_hours"`
	ResyncMinutes  int       `json:"resync_minutes"`
}

// DefaultCriteria returns the criteria the dashboard starts with:
// the current month, all assets and EAs, weekdays, 9h-20h, 1 minute resync.
func DefaultCriteria(now time.Time) FilterCriteria {
	return FilterCriteria{
		DateFrom:       time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
		DateTo:         now,
		SelectedAssets: []string{All},
		SelectedEAs:    []string{All},
		SelectedDays:   slices.Clone(DefaultDays),
		SelectedHours:  DefaultHours(),
		ResyncMinutes:  1,
	}
}

// Normalize returns a copy with empty asset/EA selections collapsed to All,
// hours deduplicated, sorted and bounded to 0-23, and ResyncMinutes at least 1.
func (f FilterCriteria) Normalize() FilterCriteria {
	out := f
	out.SelectedAssets = collapseSelection(f.SelectedAssets)
	out.SelectedEAs = collapseSelection(f.SelectedEAs)
	out.SelectedDays = slices.Clone(f.SelectedDays)

	seen := make(map[int]bool, len(f.SelectedHours))
	hours := make([]int, 0, len(f.SelectedHours))
	for _, h := range f.SelectedHours {
		if h < 0 || h > 23 || seen[h] {
			continue
		}
		seen[h] = true
		hours = append(hours, h)
	}
	sort.Ints(hours)
	out.SelectedHours = hours

	if out.ResyncMinutes < 1 {
		out.ResyncMinutes = 1
	}
	return out
}

func collapseSelection(sel []string) []string {
	if len(sel) == 0 || slices.Contains(sel, All) {
		return []string{All}
	}
	return slices.Clone(sel)
}

// ResyncInterval is the periodic refresh interval, never below one minute.
func (f FilterCriteria) ResyncInterval() time.Duration {
	return time.Duration(max(1, f.ResyncMinutes)) * time.Minute
}

// FetchWindow returns the date bounds to request from the bridge.
// A DateTo on the same calendar day as now is clamped to now so
// no future data is requested.
func (f FilterCriteria) FetchWindow(now time.Time) (time.Time, time.Time) {
	to := f.DateTo
	local := to.In(now.Location())
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		to = now
	}
	return f.DateFrom, to
}

// SameWindow reports whether both criteria request the same date range.
func (f FilterCriteria) SameWindow(other FilterCriteria) bool {
	return f.DateFrom.Equal(other.DateFrom) && f.DateTo.Equal(other.DateTo)
}

// AllowsAsset reports whether the asset selection includes symbol.
func (f FilterCriteria) AllowsAsset(symbol string) bool {
	return slices.Contains(f.SelectedAssets, All) || slices.Contains(f.SelectedAssets, symbol)
}

// AllowsEA reports whether the EA selection includes eaID.
func (f FilterCriteria) AllowsEA(eaID string) bool {
	return slices.Contains(f.SelectedEAs, All) || slices.Contains(f.SelectedEAs, eaID)
}

// AllowsDay reports whether the day selection includes the weekday name.
func (f FilterCriteria) AllowsDay(name string) bool {
	return slices.Contains(f.SelectedDays, name)
}

// AllowsHour reports whether the hour selection includes hour.
func (f FilterCriteria) AllowsHour(hour int) bool {
	return slices.Contains(f.SelectedHours, hour)
}

// Validate checks the date window and weekday names.
func (f FilterCriteria) Validate() error {
	if f.DateFrom.IsZero() || f.DateTo.IsZero() {
		return errors.New("date_from and date_to must be set")
	}
	if f.DateFrom.After(f.DateTo) {
		return fmt.Errorf("date_from %s is after date_to %s",
			f.DateFrom.Format(time.DateOnly), f.DateTo.Format(time.DateOnly))
	}
	for _, d := range f.SelectedDays {
		if !IsWeekdayName(d) {
			return fmt.Errorf("unknown weekday %q", d)
		}
	}
	return nil
}
