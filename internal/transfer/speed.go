package transfer

import (
	"math"
	"strconv"
)

const (
	kib = 1024.0
	mib = 1024.0 * 1024.0
)

// FormatSpeed renders a byte rate as B/s, KB/s, or MB/s rounded to two
// decimals, dropping trailing zeros.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 || math.IsNaN(bytesPerSec) || math.IsInf(bytesPerSec, 0) {
		bytesPerSec = 0
	}
	switch {
	case bytesPerSec > mib:
		return formatRounded(bytesPerSec/mib) + " MB/s"
	case bytesPerSec > kib:
		return formatRounded(bytesPerSec/kib) + " KB/s"
	default:
		return formatRounded(bytesPerSec) + " B/s"
	}
}

func formatRounded(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
