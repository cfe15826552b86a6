package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

func TestReportCriteria(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	base := models.DefaultCriteria(time.Date(2024, 5, 15, 12, 0, 0, 0, loc))

	got, err := reportCriteria(base, &reportOptions{from: "2024-04-01", to: "2024-04-30"}, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, loc), got.DateFrom)
	assert.Equal(t, time.Date(2024, 4, 30, 23, 59, 59, 999999999, loc), got.DateTo)

	got, err = reportCriteria(base, &reportOptions{}, loc)
	require.NoError(t, err)
	assert.Equal(t, base.DateFrom, got.DateFrom)

	_, err = reportCriteria(base, &reportOptions{from: "01/04/2024"}, loc)
	assert.Error(t, err)

	_, err = reportCriteria(base, &reportOptions{from: "2024-06-01", to: "2024-05-01"}, loc)
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["report"])
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	report, _, err := cmd.Find([]string{"report"})
	require.NoError(t, err)
	assert.NotNil(t, report.Flags().Lookup("offline"))
	assert.Equal(t, "text", report.Flags().Lookup("format").DefValue)
}
