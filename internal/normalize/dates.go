package normalize

import (
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// excelEpoch is day zero of spreadsheet date serials.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// FromSerial converts a spreadsheet date serial against the 1899-12-30
// epoch. Serials past 59 count the phantom 1900-02-29 and lose one day.
func FromSerial(serial float64) time.Time {
	days := int(math.Floor(serial))
	if days > 59 {
		days--
	}
	return excelEpoch.AddDate(0, 0, days)
}

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"02.01.2006",
	"2006/01/02",
}

var serialPattern = regexp.MustCompile(`^\d{1,7}(\.\d+)?$`)

// ParseDate accepts the date spellings found in source sheets: DD/MM/YYYY
// and friends, ISO dates, and spreadsheet serials.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if serialPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 1 || f > 2958465 {
			return time.Time{}, false
		}
		return FromSerial(f), true
	}
	// Drop a trailing time component ("2025-01-06 00:00:00").
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var monthNames = []struct {
	pattern *regexp.Regexp
	month   time.Month
}{
	{regexp.MustCompile(`(?i)\b(januari|january|jan)\b`), time.January},
	{regexp.MustCompile(`(?i)\b(februari|pebruari|february|feb|peb)\b`), time.February},
	{regexp.MustCompile(`(?i)\b(maret|march|mar)\b`), time.March},
	{regexp.MustCompile(`(?i)\b(april|apr)\b`), time.April},
	{regexp.MustCompile(`(?i)\b(mei|may)\b`), time.May},
	{regexp.MustCompile(`(?i)\b(juni|june|jun)\b`), time.June},
	{regexp.MustCompile(`(?i)\b(juli|july|jul)\b`), time.July},
	{regexp.MustCompile(`(?i)\b(agustus|august|agu|agt|aug)\b`), time.August},
	{regexp.MustCompile(`(?i)\b(september|sept|sep)\b`), time.September},
	{regexp.MustCompile(`(?i)\b(oktober|october|okt|oct)\b`), time.October},
	{regexp.MustCompile(`(?i)\b(november|nopember|nov|nop)\b`), time.November},
	{regexp.MustCompile(`(?i)\b(desember|december|des|dec)\b`), time.December},
}

var (
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	dayPattern  = regexp.MustCompile(`^\s*(\d{1,2})\b`)
)

// monthMention finds a month name in free text. day is set when the text
// starts with a day number ("6 Januari 2025").
func monthMention(s string) (month time.Month, year, day int, ok bool) {
	for _, m := range monthNames {
		if m.pattern.MatchString(s) {
			month, ok = m.month, true
			break
		}
	}
	if !ok {
		return 0, 0, 0, false
	}
	if y := yearPattern.FindString(s); y != "" {
		year, _ = strconv.Atoi(y)
	}
	if d := dayPattern.FindStringSubmatch(s); d != nil {
		day, _ = strconv.Atoi(d[1])
	}
	return month, year, day, true
}

// eligibleExamDays lists the non-Sunday days of the month starting at
// monthStart that are not after now.
func eligibleExamDays(monthStart, now time.Time) []time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, monthStart.Location())
	var days []time.Time
	for d := monthStart; d.Month() == monthStart.Month(); d = d.AddDate(0, 0, 1) {
		if d.After(today) {
			break
		}
		if d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

// pickExamDay draws uniformly from eligibleExamDays.
func pickExamDay(rng *rand.Rand, monthStart, now time.Time) (time.Time, bool) {
	days := eligibleExamDays(monthStart, now)
	if len(days) == 0 {
		return time.Time{}, false
	}
	return days[rng.IntN(len(days))], true
}
