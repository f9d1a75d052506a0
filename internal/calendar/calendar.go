package calendar

import (
	"time"
)

// Resolver computes the most recent fully-closed trading session for a
// market with a fixed weekly schedule, a fixed daily close time and a
// fixed UTC offset. Bulk files for a session only appear some time after
// the close, so Margin shifts the cutoff past the close itself.
type Resolver struct {
	// Location is the market's fixed UTC offset.
	Location *time.Location
	// CloseHour/CloseMinute is the daily close in market-local time.
	CloseHour   int
	CloseMinute int
	// Margin is the reporting lag after the close during which the
	// session's data is assumed not yet published. The day's cutoff is
	// close+Margin: before that instant today's session is treated as
	// unpublished and the previous session is targeted instead.
	Margin time.Duration
}

// NewResolver builds a resolver for a market at the given UTC offset.
func NewResolver(utcOffsetMin int, closeHour, closeMinute int, margin time.Duration) *Resolver {
	return &Resolver{
		Location:    time.FixedZone("market", utcOffsetMin*60),
		CloseHour:   closeHour,
		CloseMinute: closeMinute,
		Margin:      margin,
	}
}

// LastSession returns the date (midnight, market TZ) of the most recent
// trading session whose closing data should be published by now. Always
// terminates: the roll-back is bounded by a few days.
func (r *Resolver) LastSession(now time.Time) time.Time {
	local := now.In(r.Location)

	var back int
	switch local.Weekday() {
	case time.Sunday:
		back = 2
	case time.Saturday:
		back = 1
	default:
		back = 1
		cutoff := time.Date(local.Year(), local.Month(), local.Day(),
			r.CloseHour, r.CloseMinute, 0, 0, r.Location).Add(r.Margin)
		if local.Before(cutoff) {
			back = 2
		}
	}

	d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.Location)
	d = d.AddDate(0, 0, -back)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
