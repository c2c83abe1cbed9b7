package scoring

import (
	"testing"
	"time"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name         string
		passage      string
		prefix       string
		elapsed      time.Duration
		wantWPM      int
		wantAccuracy int
		wantRatio    float64
		wantFinished bool
	}{
		{
			name:         "perfect short passage",
			passage:      "cat",
			prefix:       "cat",
			elapsed:      6 * time.Second,
			wantWPM:      6,
			wantAccuracy: 100,
			wantRatio:    1,
			wantFinished: true,
		},
		{
			name:         "one mistyped character",
			passage:      "cat",
			prefix:       "cot",
			elapsed:      6 * time.Second,
			wantWPM:      4,
			wantAccuracy: 67,
			wantRatio:    1,
			wantFinished: true,
		},
		{
			name:         "no keystrokes yet",
			passage:      "cat",
			prefix:       "",
			elapsed:      2 * time.Second,
			wantWPM:      0,
			wantAccuracy: 100,
			wantRatio:    0,
		},
		{
			name:         "zero elapsed yields zero wpm",
			passage:      "cat",
			prefix:       "ca",
			elapsed:      0,
			wantWPM:      0,
			wantAccuracy: 100,
			wantRatio:    2.0 / 3.0,
		},
		{
			name:         "halfway through",
			passage:      "go fast",
			prefix:       "go f",
			elapsed:      12 * time.Second,
			wantWPM:      4,
			wantAccuracy: 100,
			wantRatio:    4.0 / 7.0,
		},
		{
			name:         "all wrong characters score zero speed",
			passage:      "abcd",
			prefix:       "zzzz",
			elapsed:      5 * time.Second,
			wantWPM:      0,
			wantAccuracy: 0,
			wantRatio:    1,
			wantFinished: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.passage, tt.prefix, tt.elapsed)
			if got.WPM != tt.wantWPM {
				t.Errorf("WPM = %d, want %d", got.WPM, tt.wantWPM)
			}
			if got.Accuracy != tt.wantAccuracy {
				t.Errorf("Accuracy = %d, want %d", got.Accuracy, tt.wantAccuracy)
			}
			if got.CompletionRatio != tt.wantRatio {
				t.Errorf("CompletionRatio = %v, want %v", got.CompletionRatio, tt.wantRatio)
			}
			if got.Finished() != tt.wantFinished {
				t.Errorf("Finished() = %v, want %v", got.Finished(), tt.wantFinished)
			}
		})
	}
}

func TestScoreDeterminism(t *testing.T) {
	a := Score("the quick brown fox", "the quick br", 9*time.Second)
	b := Score("the quick brown fox", "the quick br", 9*time.Second)
	if a != b {
		t.Errorf("identical inputs produced different results: %+v vs %+v", a, b)
	}
}

func TestScoreRatioNonDecreasing(t *testing.T) {
	passage := "programming is not about what you know"
	prev := 0.0
	for i := 0; i <= len(passage); i++ {
		r := Score(passage, passage[:i], time.Duration(i)*time.Second)
		if r.CompletionRatio < prev {
			t.Fatalf("completion ratio decreased at prefix %d: %v < %v", i, r.CompletionRatio, prev)
		}
		if r.WPM < 0 || r.Accuracy < 0 || r.Accuracy > 100 {
			t.Fatalf("out of range result at prefix %d: %+v", i, r)
		}
		prev = r.CompletionRatio
	}
}
