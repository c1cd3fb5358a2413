package utils

import "time"

// SecondsBetween returns num of seconds between two timestamps
func SecondsBetween(from time.Time, to time.Time) float64 {
	return to.Sub(from).Seconds()
}

// Percent returns part/total as a percentage, 0 when total is 0
func Percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part*100) / float64(total)
}
