package finding

// Severity weights subtracted from a perfect score of 100.
const (
	penaltyCritical = 20
	penaltyHigh     = 10
	penaltyMedium   = 5
	penaltyLow      = 1
)

// HealthScore derives a 0-100 score from severity counts. The score starts at
// 100, loses a fixed penalty per finding by severity, and is floored at 0.
func HealthScore(counts map[Severity]int) float64 {
	penalty := counts[SeverityCritical]*penaltyCritical +
		counts[SeverityHigh]*penaltyHigh +
		counts[SeverityMedium]*penaltyMedium +
		counts[SeverityLow]*penaltyLow
	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	return float64(score)
}

// Grade converts a health score into a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	case score >= 50:
		return "E"
	default:
		return "F"
	}
}
