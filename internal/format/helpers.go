package format

import (
	"fmt"
	"math"
	"time"
)

// Metric formats a ranking figure with six fractional digits.
func Metric(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.6f", v)
}

// MeanSD formats "mean ± sd" with four fractional digits. A zero sd is
// omitted.
func MeanSD(mean, sd float64) string {
	if math.IsNaN(mean) {
		return "n/a"
	}
	if sd == 0 {
		return fmt.Sprintf("%.4f", mean)
	}
	return fmt.Sprintf("%.4f ± %.4f", mean, sd)
}

// FmtDuration formats a duration as "Xm Ys", "Ys" or "Nms" below a second.
func FmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}
