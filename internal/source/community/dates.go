package community

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultOffset is used when no date can be inferred from page text.
// Better a loosely-dated event than a dropped one.
const defaultOffset = 7 * 24 * time.Hour

// defaultHour is assumed when a month-day is found without a time.
const defaultHour = 10

var monthDayRe = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{1,2})\b`)

var timeOfDayRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// inferEventDate scans free text near an event anchor for a month-day
// or time-of-day pattern and builds the nearest future instant it can.
// Best-effort only: with no usable pattern the event is dated one week
// out rather than dropped.
func inferEventDate(text string, now time.Time) time.Time {
	hour, minute, hasTime := inferTimeOfDay(text)
	if !hasTime {
		hour, minute = defaultHour, 0
	}

	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		month := months[strings.ToLower(m[1])[:3]]
		day, _ := strconv.Atoi(m[2])

		d := time.Date(now.Year(), month, day, hour, minute, 0, 0, now.Location())
		// A month-day already behind us means the next occurrence.
		if d.Before(now) {
			d = d.AddDate(1, 0, 0)
		}
		return d
	}

	if hasTime {
		// A bare time-of-day reads as "soon": assume tomorrow.
		d := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		return d.AddDate(0, 0, 1)
	}

	return now.Add(defaultOffset)
}

func inferTimeOfDay(text string) (hour, minute int, ok bool) {
	m := timeOfDayRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}

	hour, _ = strconv.Atoi(m[1])
	if hour < 1 || hour > 12 {
		return 0, 0, false
	}
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	if strings.EqualFold(m[3], "pm") && hour != 12 {
		hour += 12
	}
	if strings.EqualFold(m[3], "am") && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}
