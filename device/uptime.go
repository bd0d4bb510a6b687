package device

import "fmt"

// UptimeLimit converts a package duration in minutes to the device's
// native uptime-limit format: 90 -> "1h30m", 60 -> "1h", 45 -> "45m".
func UptimeLimit(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	hours := minutes / 60
	minutes %= 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
