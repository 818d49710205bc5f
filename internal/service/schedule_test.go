// SPDX-License-Identifier: MIT

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfosync/nfosync/internal/config"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.ParseInLocation(layout, value, time.Local)
	require.NoError(t, err)
	return tm
}

func TestUpdateSchedule_LaterTodayStaysToday(t *testing.T) {
	now := mustParse(t, "2006-01-02 15:04", "2026-07-31 01:00") // Friday
	cfg := config.Scheduled{Time: "03:00", Days: []int{0, 1, 2, 3, 4, 5, 6}}

	next, err := UpdateSchedule(now, cfg)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-31 03:00", next.Format("2006-01-02 15:04"))
}

func TestUpdateSchedule_PastTimeTodayRollsToNextAllowedDay(t *testing.T) {
	now := mustParse(t, "2006-01-02 15:04", "2026-07-31 10:00") // Friday, past 03:00
	cfg := config.Scheduled{Time: "03:00", Days: []int{0, 1, 2, 3, 4, 5, 6}}

	next, err := UpdateSchedule(now, cfg)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01 03:00", next.Format("2006-01-02 15:04"))
}

func TestUpdateSchedule_SkipsDisallowedWeekdays(t *testing.T) {
	now := mustParse(t, "2006-01-02 15:04", "2026-07-31 10:00") // Friday=4
	cfg := config.Scheduled{Time: "03:00", Days: []int{0}}      // Monday only

	next, err := UpdateSchedule(now, cfg)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-03 03:00", next.Format("2006-01-02 15:04")) // next Monday
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestUpdateSchedule_RejectsMalformedTime(t *testing.T) {
	now := mustParse(t, "2006-01-02 15:04", "2026-07-31 10:00")
	_, err := UpdateSchedule(now, config.Scheduled{Time: "25:99"})
	assert.Error(t, err)
}

func TestIsScheduledSyncDue(t *testing.T) {
	cfg := config.Scheduled{IsEnabled: true}
	next := mustParse(t, "2006-01-02 15:04", "2026-07-31 03:00")

	before := mustParse(t, "2006-01-02 15:04", "2026-07-31 02:59")
	assert.False(t, IsScheduledSyncDue(before, cfg, next))

	after := mustParse(t, "2006-01-02 15:04", "2026-07-31 03:00")
	assert.True(t, IsScheduledSyncDue(after, cfg, next))

	cfg.IsEnabled = false
	assert.False(t, IsScheduledSyncDue(after, cfg, next))
}
