package ledger

// StreakBonus returns the coins awarded for the first play of a day at the
// given streak length. Longer streaks pay more, stepping up at the month,
// quarter, half-year and year marks.
func StreakBonus(streak int) int {
	switch {
	case streak >= 365:
		return 5
	case streak >= 180:
		return 4
	case streak >= 90:
		return 3
	case streak >= 30:
		return 2
	case streak >= 1:
		return 1
	default:
		return 0
	}
}
