package ledger

import "testing"

func TestStreakBonus(t *testing.T) {
	tests := []struct {
		name   string
		streak int
		want   int
	}{
		{"no streak", 0, 0},
		{"first day", 1, 1},
		{"under a month", 29, 1},
		{"one month", 30, 2},
		{"under a quarter", 89, 2},
		{"one quarter", 90, 3},
		{"half year", 180, 4},
		{"under a year", 364, 4},
		{"full year", 365, 5},
		{"beyond a year", 500, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StreakBonus(tt.streak); got != tt.want {
				t.Errorf("StreakBonus(%d) = %d, want %d", tt.streak, got, tt.want)
			}
		})
	}
}
