package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDealValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		deal    Deal
		wantErr bool
	}{
		{
			name:    "valid deal",
			deal:    Deal{Ticket: 1, Time: now, Type: Buy, Volume: 1, Symbol: "WINQ24", EAID: "EA 42"},
			wantErr: false,
		},
		{
			name:    "zero ticket",
			deal:    Deal{Time: now, Type: Buy, Symbol: "WINQ24", EAID: "EA 42"},
			wantErr: true,
		},
		{
			name:    "missing time",
			deal:    Deal{Ticket: 1, Type: Sell, Symbol: "WINQ24", EAID: "EA 42"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			deal:    Deal{Ticket: 1, Time: now, Type: TradeType(7), Symbol: "WINQ24", EAID: "EA 42"},
			wantErr: true,
		},
		{
			name:    "empty symbol",
			deal:    Deal{Ticket: 1, Time: now, Type: Buy, EAID: "EA 42"},
			wantErr: true,
		},
		{
			name:    "empty ea id",
			deal:    Deal{Ticket: 1, Time: now, Type: Buy, Symbol: "WINQ24"},
			wantErr: true,
		},
		{
			name:    "negative volume",
			deal:    Deal{Ticket: 1, Time: now, Type: Buy, Volume: -1, Symbol: "WINQ24", EAID: "Manual"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.deal.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDealIsWin(t *testing.T) {
	for _, tc := range []struct {
		profit float64
		want   bool
	}{{10, true}, {0, true}, {-0.01, false}} {
		assert.Equal(t, tc.want, (&Deal{NetProfit: tc.profit}).IsWin(), "profit %v", tc.profit)
	}
}

func TestWeekdayName(t *testing.T) {
	cases := map[time.Weekday]string{
		time.Sunday:    "Sun",
		time.Monday:    "Mon",
		time.Wednesday: "Wed",
		time.Saturday:  "Sat",
	}
	for d, want := range cases {
		assert.Equal(t, want, WeekdayName(d), d.String())
	}
}

func TestNormalizeCollapsesEmptySelections(t *testing.T) {
	f := FilterCriteria{
		SelectedAssets: nil,
		SelectedEAs:    []string{},
		SelectedHours:  []int{12, 9, 12, 25, -1},
		ResyncMinutes:  0,
	}
	got := f.Normalize()

	assert.Equal(t, []string{All}, got.SelectedAssets)
	assert.Equal(t, []string{All}, got.SelectedEAs)
	assert.Equal(t, []int{9, 12}, got.SelectedHours)
	assert.Equal(t, 1, got.ResyncMinutes)
}

func TestNormalizeAllWinsOverExplicitSelection(t *testing.T) {
	f := FilterCriteria{SelectedAssets: []string{"PETR4", All}}
	assert.Equal(t, []string{All}, f.Normalize().SelectedAssets)
}

func TestResyncInterval(t *testing.T) {
	assert.Equal(t, time.Minute, FilterCriteria{ResyncMinutes: 0}.ResyncInterval())
	assert.Equal(t, 5*time.Minute, FilterCriteria{ResyncMinutes: 5}.ResyncInterval())
}

func TestFetchWindowClampsToday(t *testing.T) {
	now := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	today := FilterCriteria{DateFrom: from, DateTo: time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC)}
	gotFrom, gotTo := today.FetchWindow(now)
	assert.Equal(t, from, gotFrom)
	assert.Equal(t, now, gotTo, "same-day DateTo is clamped to now")

	past := FilterCriteria{DateFrom: from, DateTo: time.Date(2024, 5, 8, 23, 59, 0, 0, time.UTC)}
	_, gotTo = past.FetchWindow(now)
	assert.Equal(t, past.DateTo, gotTo)
}

func TestSameWindow(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	a := FilterCriteria{DateFrom: from, DateTo: to, SelectedHours: []int{9}}
	b := FilterCriteria{DateFrom: from.In(time.FixedZone("BRT", -3*3600)), DateTo: to, SelectedHours: []int{10}}

	assert.True(t, a.SameWindow(b), "selections and location do not matter")
	b.DateTo = to.Add(time.Second)
	assert.False(t, a.SameWindow(b))
}

func TestDefaultCriteria(t *testing.T) {
	now := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	c := DefaultCriteria(now)

	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), c.DateFrom)
	assert.Equal(t, []int{9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, c.SelectedHours)
	assert.Equal(t, DefaultDays, c.SelectedDays)
}

func TestFilterCriteriaValidate(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		mutate  func(*FilterCriteria)
		wantErr bool
	}{
		{"defaults", func(*FilterCriteria) {}, false},
		{"weekend days", func(f *FilterCriteria) { f.SelectedDays = []string{"Sat", "Sun"} }, false},
		{"no days", func(f *FilterCriteria) { f.SelectedDays = nil }, false},
		{"reversed window", func(f *FilterCriteria) { f.DateFrom = now.AddDate(0, 1, 0) }, true},
		{"zero date", func(f *FilterCriteria) { f.DateTo = time.Time{} }, true},
		{"unknown day", func(f *FilterCriteria) { f.SelectedDays = []string{"Seg"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCriteria(now)
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
