package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	// +05:30 market, 15:30 close, 90m publication lag.
	return NewResolver(330, 15, 30, 90*time.Minute)
}

func at(r *Resolver, y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, r.Location)
}

func TestLastSession_SundayResolvesToFriday(t *testing.T) {
	r := newTestResolver()

	// 2025-08-03 is a Sunday; morning and evening both land on Friday.
	for _, hour := range []int{9, 20} {
		got := r.LastSession(at(r, 2025, time.August, 3, hour, 0))
		require.Equal(t, time.Friday, got.Weekday())
		require.Equal(t, "2025-08-01", got.Format("2006-01-02"))
	}
}

func TestLastSession_SaturdayResolvesToFriday(t *testing.T) {
	r := newTestResolver()

	got := r.LastSession(at(r, 2025, time.August, 2, 11, 0))
	require.Equal(t, "2025-08-01", got.Format("2006-01-02"))
}

func TestLastSession_WeekdayAfterMargin(t *testing.T) {
	r := newTestResolver()

	// Wednesday 18:00, past the 17:00 cutoff: yesterday's file is out.
	got := r.LastSession(at(r, 2025, time.August, 6, 18, 0))
	require.Equal(t, "2025-08-05", got.Format("2006-01-02"))
}

func TestLastSession_WeekdayBeforeMarginShiftsExtraDay(t *testing.T) {
	r := newTestResolver()

	// Same Wednesday at 10:00: one extra day back versus after the margin.
	got := r.LastSession(at(r, 2025, time.August, 6, 10, 0))
	require.Equal(t, "2025-08-04", got.Format("2006-01-02"))
}

func TestLastSession_MondayRollsOverWeekend(t *testing.T) {
	r := newTestResolver()

	// Monday before the cutoff: two days back is Saturday, which rolls
	// to Friday.
	got := r.LastSession(at(r, 2025, time.August, 4, 9, 0))
	require.Equal(t, "2025-08-01", got.Format("2006-01-02"))

	// Monday evening: one day back is Sunday, also rolling to Friday.
	got = r.LastSession(at(r, 2025, time.August, 4, 19, 0))
	require.Equal(t, "2025-08-01", got.Format("2006-01-02"))
}

func TestLastSession_InstantOutsideMarketZone(t *testing.T) {
	r := newTestResolver()

	// 13:00 UTC on Wednesday is 18:30 market time, past the cutoff.
	got := r.LastSession(time.Date(2025, time.August, 6, 13, 0, 0, 0, time.UTC))
	require.Equal(t, "2025-08-05", got.Format("2006-01-02"))
}
