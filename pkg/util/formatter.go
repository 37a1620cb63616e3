// Package util holds small formatting helpers shared by the CLI's
// tabular output, generalized from the teacher's AC-sweep result printer
// (cmd/main.go's magnitude/phase columns) to per-bus polar voltage
// reporting.
package util

import "fmt"

// FormatMagnitude renders a magnitude in fixed or scientific notation
// depending on scale, matching the teacher's AC result table.
func FormatMagnitude(value float64) string {
	if value >= 1000 || (value < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value)
	}
	return fmt.Sprintf("%8.3g", value)
}

// FormatPhase renders an angle in degrees to one decimal place.
func FormatPhase(value float64) string {
	return fmt.Sprintf("%6.1f", value)
}

// FormatMagnitudePhase renders a named polar quantity as "name=mag<phasedeg",
// the teacher's V(node)/I(branch) line format generalized to bus id -> u.
func FormatMagnitudePhase(name string, magnitude, phaseDeg float64) string {
	return fmt.Sprintf("%s=%s<%sdeg", name, FormatMagnitude(magnitude), FormatPhase(phaseDeg))
}
