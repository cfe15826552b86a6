package analytics

import (
	"math"
	"slices"
	"sort"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// Heatmap sums net profit per (weekday, hour) bucket.
// Rows follow models.Weekdays; columns are the selected hours, ascending.
type Heatmap struct {
	Days      []string    `json:"days" yaml:"days"`
	Hours     []int       `json:"hours" yaml:"hours"`
	Cells     [][]float64 `json:"cells" yaml:"cells"`
	MaxAbs    float64     `json:"max_abs" yaml:"max_abs"`
	Intensity [][]float64 `json:"intensity" yaml:"intensity"`
}

// BuildHeatmap buckets the filtered deals into a 7 x len(hours) grid.
// Deals whose hour is not a column are ignored, which cannot happen when
// the same hours were used to filter.
func BuildHeatmap(filtered []models.Deal, hours []int) Heatmap {
	cols := uniqueSorted(hours)
	colIdx := make(map[int]int, len(cols))
	for i, h := range cols {
		colIdx[h] = i
	}

	hm := Heatmap{
		Days:      slices.Clone(models.Weekdays),
		Hours:     cols,
		Cells:     make([][]float64, len(models.Weekdays)),
		Intensity: make([][]float64, len(models.Weekdays)),
	}
	for r := range hm.Cells {
		hm.Cells[r] = make([]float64, len(cols))
		hm.Intensity[r] = make([]float64, len(cols))
	}

	for _, d := range filtered {
		c, ok := colIdx[d.Time.Hour()]
		if !ok {
			continue
		}
		r := (int(d.Time.Weekday()) + 6) % 7
		hm.Cells[r][c] += d.NetProfit
	}

	// The floor of 1 keeps an all-zero grid from dividing by zero.
	hm.MaxAbs = 1
	for _, row := range hm.Cells {
		for _, v := range row {
			hm.MaxAbs = math.Max(hm.MaxAbs, math.Abs(v))
		}
	}
	for r, row := range hm.Cells {
		for c, v := range row {
			hm.Intensity[r][c] = math.Min(1, math.Abs(v)/hm.MaxAbs)
		}
	}
	return hm
}

// Cell returns the value of the (day, hour) bucket and whether it exists.
func (h Heatmap) Cell(day string, hour int) (float64, bool) {
	r := slices.Index(h.Days, day)
	c := slices.Index(h.Hours, hour)
	if r < 0 || c < 0 {
		return 0, false
	}
	return h.Cells[r][c], true
}

// Total sums every cell.
func (h Heatmap) Total() float64 {
	var sum float64
	for _, row := range h.Cells {
		for _, v := range row {
			sum += v
		}
	}
	return sum
}

func uniqueSorted(hours []int) []int {
	out := slices.Clone(hours)
	sort.Ints(out)
	out = slices.Compact(out)
	if out == nil {
		out = []int{}
	}
	return out
}
