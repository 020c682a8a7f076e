package cityescape

import "time"

// Rank grades a completed run by elapsed time and hints used.
func Rank(elapsed time.Duration, hints int) string {
	secs := elapsed.Seconds()
	switch {
	case hints == 0 && secs < 300:
		return "S"
	case hints <= 2 && secs < 600:
		return "A"
	case hints <= 5 && secs < 900:
		return "B"
	case secs < 1200:
		return "C"
	default:
		return "D"
	}
}
