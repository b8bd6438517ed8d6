package room

import (
	"fmt"
	"time"
)

// NameColor maps a display name to a stable hex color. The +55 floor
// keeps colors away from near-black.
func NameColor(name string) string {
	var hash uint32
	for _, b := range []byte(name) {
		hash = (hash + uint32(b)) * 31
	}

	r := hash%200 + 55
	g := (hash>>8)%200 + 55
	b := (hash>>16)%200 + 55

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// FormatRemaining renders a countdown as "HH:MM:SS remaining...".
// Negative durations clamp to zero.
func FormatRemaining(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	totalSeconds := int64(remaining.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d remaining...", hours, minutes, seconds)
}
