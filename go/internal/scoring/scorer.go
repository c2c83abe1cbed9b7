package scoring

import (
	"math"
	"time"
)

// Result holds the derived typing performance figures for one input prefix.
type Result struct {
	WPM             int     `json:"wpm"`
	Accuracy        int     `json:"accuracy"`
	CompletionRatio float64 `json:"completion_ratio"`
	CorrectChars    int     `json:"correct_chars"`
	IncorrectChars  int     `json:"incorrect_chars"`
	TotalChars      int     `json:"total_chars"`
}

// Finished reports whether the prefix covers the whole passage.
func (r Result) Finished() bool {
	return r.CompletionRatio >= 1
}

// Score computes WPM, accuracy and completion for a typed prefix against a
// passage. It is pure: identical inputs always yield identical outputs, so
// any two observers scoring the same snapshot agree.
//
// Speed uses the standard 5-characters-per-word convention and counts only
// correctly typed characters, so hammering wrong keys does not inflate WPM.
// An empty prefix scores 100% accuracy by convention.
func Score(passage, typedPrefix string, elapsed time.Duration) Result {
	correct := 0
	for i := 0; i < len(typedPrefix) && i < len(passage); i++ {
		if typedPrefix[i] == passage[i] {
			correct++
		}
	}

	total := len(typedPrefix)
	accuracy := 100
	if total > 0 {
		accuracy = int(math.Round(float64(correct) / float64(total) * 100))
	}

	wpm := 0
	if minutes := elapsed.Minutes(); minutes > 0 {
		wpm = int(math.Round((float64(correct) / 5) / minutes))
	}

	ratio := 0.0
	if len(passage) > 0 {
		ratio = float64(total) / float64(len(passage))
	}
	if ratio > 1 {
		ratio = 1
	}

	return Result{
		WPM:             wpm,
		Accuracy:        accuracy,
		CompletionRatio: ratio,
		CorrectChars:    correct,
		IncorrectChars:  total - correct,
		TotalChars:      total,
	}
}
