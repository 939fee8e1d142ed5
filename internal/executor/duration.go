package executor

import (
	"fmt"
	"time"
)

// humanReadableDuration formats d as "Nh Mm S.mmms", eliding units above the
// largest non-zero one — e.g. 90s becomes "1m 30.000s", not "0h 1m 30.000s".
func humanReadableDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalSeconds := d.Seconds()
	hours := int(totalSeconds) / 3600
	minutes := (int(totalSeconds) % 3600) / 60
	rem := totalSeconds - float64(hours*3600+minutes*60)

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %.3fs", hours, minutes, rem)
	case minutes > 0:
		return fmt.Sprintf("%dm %.3fs", minutes, rem)
	default:
		return fmt.Sprintf("%.3fs", rem)
	}
}
