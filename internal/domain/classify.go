package domain

// Classify maps a risk value to an alert level: RED at or above AlertRed,
// YELLOW at or above AlertYellow, GREEN otherwise.
func Classify(risk float64, th Thresholds) AlertLevel {
	switch {
	case risk >= th.AlertRed:
		return AlertRed
	case risk >= th.AlertYellow:
		return AlertYellow
	default:
		return AlertGreen
	}
}
