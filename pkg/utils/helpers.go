package utils

import (
	"fmt"
	"time"
)

// IsWithinWorkingHours checks if current time is within working hours
func IsWithinWorkingHours(startTime, endTime string) (bool, error) {
	return isWithin(time.Now(), startTime, endTime)
}

func isWithin(now time.Time, startTime, endTime string) (bool, error) {
	// Parse start time
	start, err := time.Parse("15:04", startTime)
	if err != nil {
		return false, fmt.Errorf("invalid start time format: %w", err)
	}

	// Parse end time
	end, err := time.Parse("15:04", endTime)
	if err != nil {
		return false, fmt.Errorf("invalid end time format: %w", err)
	}

	startToday := time.Date(now.Year(), now.Month(), now.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
	endToday := time.Date(now.Year(), now.Month(), now.Day(), end.Hour(), end.Minute(), 0, 0, now.Location())

	// Window wraps midnight (e.g., 23:00 to 02:00)
	if endToday.Before(startToday) {
		if now.Before(endToday) {
			startToday = startToday.Add(-24 * time.Hour)
		} else {
			endToday = endToday.Add(24 * time.Hour)
		}
	}

	return !now.Before(startToday) && now.Before(endToday), nil
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
