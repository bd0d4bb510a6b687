package utils

import "fmt"

// DisplayDuration renders a package duration for customers:
// 45 -> "45 Minutes", 60 -> "1 Hour", 90 -> "1 Hour 30 Minutes",
// 2880 -> "2 Days".
func DisplayDuration(minutes int) string {
	if minutes <= 0 {
		return "0 Minutes"
	}

	days := minutes / (24 * 60)
	minutes %= 24 * 60
	hours := minutes / 60
	minutes %= 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "Day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "Hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "Minute"))
	}

	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
