package util

import (
	"strings"
	"time"
)

// FormatDateTpl formats t using a template with human-readable placeholders.
//
// Supported placeholders:
// - YYYY: 4-digit year
// - YY: 2-digit year
// - MM: 2-digit month (01-12)
// - DD: 2-digit day (01-31)
// - hh: 2-digit hour (00-23)
// - mm: 2-digit minute (00-59)
// - ss: 2-digit second (00-59)
//
// Example:
//
//	FormatDateTpl(t, "YYYY-MM-DD")       // "2023-11-10"
//	FormatDateTpl(t, "DD/MM/YYYY hh:mm") // "10/11/2023 00:00"
func FormatDateTpl(t time.Time, tpl string) string {
	if t.IsZero() {
		return ""
	}

	goTpl := tpl
	replacements := map[string]string{
		"YYYY": "2006",
		"YY":   "06",
		"MM":   "01",
		"DD":   "02",
		"hh":   "15",
		"mm":   "04",
		"ss":   "05",
	}
	for k, v := range replacements {
		goTpl = strings.ReplaceAll(goTpl, k, v)
	}

	return t.Format(goTpl)
}

// DaysCeil returns the number of elapsed days between from and to, counting any
// partial day as a full day. Two timestamps 30 minutes apart that cross a
// calendar-day boundary still count as one elapsed day.
func DaysCeil(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	d := to.Sub(from)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
