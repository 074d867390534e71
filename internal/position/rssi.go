package position

import "math"

// Calibration defaults for the log-distance path loss model.
const (
	DefaultReferencePower = -59.0 // RSSI at 1 m, dBm
	DefaultPathLossExp    = 2.5
)

// PathLoss converts RSSI to distance with the log-distance model
// d = 10^((RefPower - rssi) / (10 * n)).
type PathLoss struct {
	RefPower float64
	Exponent float64
}

func DefaultPathLoss() PathLoss {
	return PathLoss{RefPower: DefaultReferencePower, Exponent: DefaultPathLossExp}
}

// Distance returns the estimated distance in metres. Weak signals give
// large distances; the result is not clamped.
func (m PathLoss) Distance(rssi float64) float64 {
	return math.Pow(10, (m.RefPower-rssi)/(10*m.Exponent))
}

// RSSI is the inverse of Distance.
func (m PathLoss) RSSI(distance float64) float64 {
	return m.RefPower - 10*m.Exponent*math.Log10(distance)
}
