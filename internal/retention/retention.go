// Package retention implements the file retention policy: a produced file is
// kept for the length of the video, but never less than two hours.
package retention

import (
	"fmt"
	"time"
)

// MinWindow is the floor for every retention window.
const MinWindow = 2 * time.Hour

// Window returns how long a file for a video of the given duration is kept.
func Window(duration time.Duration) time.Duration {
	if duration < MinWindow {
		return MinWindow
	}
	return duration
}

// ExpiryAt returns the expiry instant for a file saved at now.
func ExpiryAt(now time.Time, duration time.Duration) time.Time {
	return now.Add(Window(duration))
}

// FormatDuration renders a duration as H:MM:SS, or M:SS below an hour.
// Zero and negative durations render as "Unknown".
func FormatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "Unknown"
	}
	total := int64(duration.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
