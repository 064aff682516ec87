package session

import (
	"math"
	"time"
)

// DurationMinutes is the elapsed time between start and end rounded to whole
// minutes, never below floor and never negative.
func DurationMinutes(start, end time.Time, floor int) int {
	minutes := int(math.Round(end.Sub(start).Minutes()))
	return max(minutes, floor, 0)
}
