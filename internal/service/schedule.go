// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"time"

	"github.com/nfosync/nfosync/internal/config"
)

// UpdateSchedule implements spec.md §4.6's update_schedule(): starting at
// local-now, add a day if the time-of-day has already passed today, then
// advance one day at a time until the weekday is in cfg.Days, and return
// that date at cfg.Time (seconds zeroed).
func UpdateSchedule(now time.Time, cfg config.Scheduled) (time.Time, error) {
	hh, mm, err := parseHHMM(cfg.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduled.time: %w", err)
	}

	local := now.In(time.Local)
	candidate := local
	if local.After(time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, time.Local)) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for !dayAllowed(candidate, cfg.Days) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	return time.Date(candidate.Year(), candidate.Month(), candidate.Day(), hh, mm, 0, 0, time.Local), nil
}

// IsScheduledSyncDue implements spec.md §4.6's is_scheduled_sync_due():
// scheduled.enabled AND local_now >= next_scheduled.
func IsScheduledSyncDue(now time.Time, cfg config.Scheduled, nextScheduled time.Time) bool {
	if !cfg.IsEnabled {
		return false
	}
	return !now.In(time.Local).Before(nextScheduled)
}

func dayAllowed(t time.Time, days []int) bool {
	if len(days) == 0 {
		return true
	}
	idx := weekdayIndex(t)
	for _, d := range days {
		if d == idx {
			return true
		}
	}
	return false
}

// weekdayIndex returns Monday=0 .. Sunday=6, matching spec.md §4.6's
// "days ⊆ {0..6} (Mon=0)".
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func parseHHMM(s string) (hh, mm int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %q as HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
