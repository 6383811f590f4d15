// Package format provides human-readable formatting utilities.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bytes formats a byte count into human-readable format.
// Example: Bytes(1536) => "1.5 KB"
func Bytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	sizes := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), sizes[exp]) //nolint:gosec // G602: exp max is 4 (1024^6 > int64 max)
}

var printer = message.NewPrinter(language.English)

// Number formats a number with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// CronDescription returns a human-readable description of a 6-field cron expression.
// Fields: seconds minutes hours day-of-month month day-of-week
// Example: CronDescription("0 0 2 * * *") => "Daily at 2AM"
func CronDescription(cronExpr string) string {
	fields := strings.Fields(strings.TrimSpace(cronExpr))
	if len(fields) < 6 {
		return cronExpr // Not a valid 6-field cron
	}

	// Normalize to 6 fields (strip year if 7 fields)
	if len(fields) > 6 {
		fields = fields[:6]
	}

	sec, min, hour, dayOfMonth, _, dayOfWeek := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]

	// Second intervals
	if strings.Contains(sec, "/") {
		if interval := extractInterval(sec); interval > 0 {
			return fmt.Sprintf("Every %d seconds", interval)
		}
	}

	// Every minute
	if min == "*" && hour == "*" && dayOfMonth == "*" && dayOfWeek == "*" {
		return "Every minute"
	}

	// Minute intervals
	if strings.Contains(min, "/") {
		if interval := extractInterval(min); interval > 0 {
			return fmt.Sprintf("Every %d minutes", interval)
		}
	}

	// Hour intervals
	if strings.Contains(hour, "/") {
		if interval := extractInterval(hour); interval > 0 {
			if interval == 1 {
				return "Every hour"
			}
			return fmt.Sprintf("Every %d hours", interval)
		}
	}

	// Every hour at specific minute
	if hour == "*" {
		if m, err := strconv.Atoi(min); err == nil {
			if m == 0 {
				return "Every hour"
			}
			return fmt.Sprintf("Every hour at :%02d", m)
		}
	}

	// Specific time patterns
	h, hErr := strconv.Atoi(hour)
	m, mErr := strconv.Atoi(min)
	if hErr == nil && mErr == nil {
		timeStr := formatTime(h, m)

		// Day of week patterns
		if dayOfWeek != "*" && dayOfMonth == "*" {
			return fmt.Sprintf("%ss at %s", dayName(dayOfWeek), timeStr)
		}

		// Day of month patterns
		if dayOfMonth != "*" {
			if d, err := strconv.Atoi(dayOfMonth); err == nil {
				return fmt.Sprintf("%s of each month at %s", ordinal(d), timeStr)
			}
		}

		// Daily at specific time
		return fmt.Sprintf("Daily at %s", timeStr)
	}

	// Fallback
	return strings.Join(fields, " ")
}

func extractInterval(field string) int {
	idx := strings.Index(field, "/")
	if idx < 0 {
		return 0
	}
	interval, err := strconv.Atoi(field[idx+1:])
	if err != nil {
		return 0
	}
	return interval
}

func formatTime(hour, minute int) string {
	if hour == 0 && minute == 0 {
		return "midnight"
	}
	if hour == 12 && minute == 0 {
		return "noon"
	}

	period := "AM"
	hour12 := hour
	if hour >= 12 {
		period = "PM"
		if hour > 12 {
			hour12 = hour - 12
		}
	}
	if hour == 0 {
		hour12 = 12
	}

	if minute == 0 {
		return fmt.Sprintf("%d%s", hour12, period)
	}
	return fmt.Sprintf("%d:%02d%s", hour12, minute, period)
}

var dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func dayName(day string) string {
	if d, err := strconv.Atoi(day); err == nil && d >= 0 && d < 7 {
		return dayNames[d]
	}
	return day
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 10 {
	case 1:
		if n%100 != 11 {
			suffix = "st"
		}
	case 2:
		if n%100 != 12 {
			suffix = "nd"
		}
	case 3:
		if n%100 != 13 {
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
