package schedule

import (
	"time"

	"slatrack/internal/domain"
)

// DefaultHorizonDays bounds generation for contracts without an expiration
// date: periods cover this many days from the current date. Overridable via
// reporting.horizon_days in slatrack.yml.
const DefaultHorizonDays = 365

// Period is a half-inclusive-free date range: both Start and End are covered days.
type Period struct {
	Start time.Time
	End   time.Time
}

// Generate tiles [effective, boundary] with reporting periods, where boundary
// is the expiration date or now+horizonDays when no expiration is set. The
// returned periods are ascending, gapless and non-overlapping; the final
// period's end is clipped to the boundary.
//
// Month arithmetic is calendar-aware: advancing a cursor whose day-of-month
// does not exist in the target month clamps to that month's last day, and the
// period then ends on the clamped day itself so the next period starts on the
// 1st of the following month. A MONTHLY period starting 2024-01-31 therefore
// ends 2024-02-29.
func Generate(effective time.Time, expiration *time.Time, frequency string, now time.Time, horizonDays int) ([]Period, error) {
	months, err := frequencyMonths(frequency)
	if err != nil {
		return nil, err
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	boundary := dateOnly(now).AddDate(0, 0, horizonDays)
	if expiration != nil {
		boundary = dateOnly(*expiration)
	}

	var periods []Period
	cursor := dateOnly(effective)
	for !cursor.After(boundary) {
		next, clamped := addMonths(cursor, months)
		end := next.AddDate(0, 0, -1)
		start := next
		if clamped {
			end = next
			start = next.AddDate(0, 0, 1)
		}
		if end.After(boundary) {
			end = boundary
		}
		periods = append(periods, Period{Start: cursor, End: end})
		cursor = start
	}
	return periods, nil
}

func frequencyMonths(frequency string) (int, error) {
	switch frequency {
	case domain.FrequencyMonthly:
		return 1, nil
	case domain.FrequencyQuarterly:
		return 3, nil
	case domain.FrequencyYearly:
		return 12, nil
	}
	return 0, domain.ErrUnknownFrequency
}

// addMonths advances d by n months, clamping the day-of-month to the target
// month's length. The second return reports whether clamping occurred.
func addMonths(d time.Time, n int) (time.Time, bool) {
	year := d.Year()
	month := int(d.Month()) - 1 + n
	year += month / 12
	month = month % 12
	target := time.Month(month + 1)
	last := daysIn(year, target)
	day := d.Day()
	clamped := day > last
	if clamped {
		day = last
	}
	return time.Date(year, target, day, 0, 0, 0, 0, time.UTC), clamped
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
