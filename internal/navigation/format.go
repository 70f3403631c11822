package navigation

import (
	"fmt"
	"math"
)

// FormatDistance renders meters below 1 km, kilometers with one decimal otherwise.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders a duration in seconds as "< 1 min", "N min" or "Hh Mm".
func FormatDuration(seconds float64) string {
	minutes := int(math.Round(seconds / 60))
	if minutes < 1 {
		return "< 1 min"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// announcementDistance rounds to the nearest 100 m above 100 m.
func announcementDistance(meters float64) int {
	if meters > 100 {
		return int(math.Round(meters/100) * 100)
	}
	return int(math.Round(meters))
}

func announcementText(meters float64, instruction string) string {
	return fmt.Sprintf("In %d meters, %s", announcementDistance(meters), instruction)
}
