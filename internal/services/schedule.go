package services

import (
	"strings"
	"time"

	"billflow/internal/models"
)

// ParseFrequency normalizes a stored frequency. Anything unrecognized,
// including an empty value, is treated as monthly.
func ParseFrequency(s string) models.Frequency {
	switch f := models.Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case models.FrequencyWeekly, models.FrequencyBiweekly, models.FrequencyMonthly,
		models.FrequencyQuarterly, models.FrequencyAnnually:
		return f
	default:
		return models.FrequencyMonthly
	}
}

// NextOccurrence advances base by one period of freq.
//
// Month and year steps clamp to the last day of the target month, so
// Jan 31 + 1 month is Feb 28 (or 29) and Feb 29 + 1 year is Feb 28.
func NextOccurrence(base time.Time, freq models.Frequency) time.Time {
	switch ParseFrequency(string(freq)) {
	case models.FrequencyWeekly:
		return base.AddDate(0, 0, 7)
	case models.FrequencyBiweekly:
		return base.AddDate(0, 0, 14)
	case models.FrequencyQuarterly:
		return addMonthsClamped(base, 3)
	case models.FrequencyAnnually:
		return addMonthsClamped(base, 12)
	default:
		return addMonthsClamped(base, 1)
	}
}

// DueDate returns the due date of an invoice issued on issue. The offset is
// one period of the series frequency.
func DueDate(issue time.Time, freq models.Frequency) time.Time {
	return NextOccurrence(issue, freq)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	// day 0 of the following month is the last day of this one
	last := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// startOfDay truncates t to midnight in loc
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
