package features

import (
	"strings"
	"time"
)

// Peak picking hours observed in the warehouse: morning and afternoon waves.
var peakHours = map[int]struct{}{
	8: {}, 9: {}, 10: {}, 14: {}, 15: {}, 16: {},
}

// HourOfDay returns the UTC hour in [0,23].
func HourOfDay(t time.Time) int { return t.UTC().Hour() }

// DayOfWeek returns the UTC weekday with 0=Sunday .. 6=Saturday.
func DayOfWeek(t time.Time) int { return int(t.UTC().Weekday()) }

// DayOfMonth returns the UTC day of month in [1,31].
func DayOfMonth(t time.Time) int { return t.UTC().Day() }

// Month returns the UTC month in [1,12].
func Month(t time.Time) int { return int(t.UTC().Month()) }

// IsPeakHour flags the fixed peak-hour set as 1, everything else as 0.
func IsPeakHour(t time.Time) int {
	if _, ok := peakHours[HourOfDay(t)]; ok {
		return 1
	}
	return 0
}

// IsWeekend flags Saturday and Sunday as 1.
func IsWeekend(t time.Time) int {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return 1
	default:
		return 0
	}
}

// PriorityLevel encodes the order priority label on a fixed total order:
// URGENT=4 > HIGH=3 > NORMAL=2 > LOW=1. Unrecognised labels map to the
// mid value 2 rather than failing.
func PriorityLevel(label string) int {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "URGENT":
		return 4
	case "HIGH":
		return 3
	case "NORMAL":
		return 2
	case "LOW":
		return 1
	default:
		return 2
	}
}

// ZoneOrdinal encodes a warehouse zone letter as distance from dispatch:
// A=1 .. D=4, anything else 5 (the far overflow area).
func ZoneOrdinal(zone string) int {
	switch strings.ToUpper(strings.TrimSpace(zone)) {
	case "A":
		return 1
	case "B":
		return 2
	case "C":
		return 3
	case "D":
		return 4
	default:
		return 5
	}
}
