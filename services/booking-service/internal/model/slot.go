package model

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
)

// SlotLength is the fixed duration of every slot.
const SlotLength = 30 * time.Minute

const DateLayout = "2006-01-02"

// Slot is a window offered by a provider. Date is the civil date at midnight
// UTC; StartTime and EndTime are provider-local wall-clock values on that
// date, also carried in UTC so they compare without zone arithmetic.
type Slot struct {
	ID         string
	ProviderID string
	Date       time.Time
	StartTime  time.Time
	EndTime    time.Time
	IsBooked   bool
	CreatedAt  time.Time
}

func (s Slot) Interval() availability.Interval {
	return availability.Interval{Start: s.StartTime, End: s.EndTime}
}

// Civil truncates t to its calendar date in t's own location and returns it
// as midnight UTC.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At combines a civil date with a wall-clock offset from midnight.
func At(date time.Time, clock time.Duration) time.Time {
	return Civil(date).Add(clock)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// ParseClock parses "15:04" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
