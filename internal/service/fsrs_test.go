package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetrievability(t *testing.T) {
	tests := []struct {
		name      string
		stability float64
		elapsed   float64
		want      float64
		delta     float64
	}{
		{"zero elapsed is perfect recall", 5.0, 0, 1.0, 0},
		{"documented example", 5.0, 10, 0.8248, 0.001},
		{"negative elapsed treated as zero", 5.0, -3, 1.0, 0},
		{"invalid stability falls back to 1.0", 0, 10, math.Pow(1+0.235*10, -0.5), 0.0001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Retrievability(tt.stability, tt.elapsed), tt.delta)
		})
	}
}

func TestRetrievability_MonotonicInElapsed(t *testing.T) {
	prev := 1.0
	for _, days := range []float64{1, 2, 5, 10, 30, 100, 365} {
		r := Retrievability(10, days)
		assert.Less(t, r, prev, "retrievability must strictly fall as time passes (day %v)", days)
		assert.Greater(t, r, 0.0)
		prev = r
	}
}

func TestRetrievability_HigherStabilityDecaysSlower(t *testing.T) {
	weak := Retrievability(2, 10)
	strong := Retrievability(50, 10)
	assert.Greater(t, strong, weak)
}

func TestUpdateStability(t *testing.T) {
	// 5.0 * 1.5 * (1.3 - 0.25) * (1 + 0.25) = 9.84375
	got := UpdateStability(5.0, 5.0, 0.5, GradeGood)
	assert.InDelta(t, 9.84375, got, 0.00001)
}

func TestUpdateStability_AgainNeverIncreases(t *testing.T) {
	for _, stability := range []float64{0.5, 1, 5, 50, 365} {
		for _, r := range []float64{0, 0.3, 0.7, 1} {
			next := UpdateStability(stability, 5, r, GradeAgain)
			assert.LessOrEqual(t, next, stability,
				"failed recall must not grow stability (s=%v r=%v)", stability, r)
		}
	}
}

func TestUpdateStability_DesirableDifficulty(t *testing.T) {
	// A success at low retrievability earns a bigger boost than one at
	// high retrievability.
	hard := UpdateStability(5, 5, 0.2, GradeGood)
	easy := UpdateStability(5, 5, 0.95, GradeGood)
	assert.Greater(t, hard, easy)
}

func TestUpdateStability_Clamped(t *testing.T) {
	assert.LessOrEqual(t, UpdateStability(365, 1, 0, GradeEasy), MaxStability)
	assert.GreaterOrEqual(t, UpdateStability(0.1, 10, 1, GradeAgain), MinStability)
}

func TestOptimalInterval(t *testing.T) {
	stability := 20.0
	target := 0.9
	interval := OptimalInterval(stability, target)

	// Round-tripping the interval through the forgetting curve must land
	// back on the target.
	assert.InDelta(t, target, Retrievability(stability, interval), 0.0001)
}

func TestUpdateDifficulty(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		grade ReviewGrade
		want  float64
	}{
		{"again raises by one", 5, GradeAgain, 6},
		{"hard raises by half", 5, GradeHard, 5.5},
		{"good leaves unchanged", 5, GradeGood, 5},
		{"easy lowers by half", 5, GradeEasy, 4.5},
		{"clamped at max", 9.8, GradeAgain, 10},
		{"clamped at min", 1.2, GradeEasy, 1},
		{"unset difficulty seeds at midpoint", 0, GradeGood, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, UpdateDifficulty(tt.start, tt.grade), 0.0001)
		})
	}
}

func TestGradeFromSimilarity(t *testing.T) {
	tests := []struct {
		similarity float64
		want       ReviewGrade
	}{
		{0.99, GradeEasy},
		{0.95, GradeEasy},
		{0.90, GradeGood},
		{0.80, GradeGood},
		{0.70, GradeHard},
		{0.60, GradeHard},
		{0.40, GradeAgain},
		{0, GradeAgain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFromSimilarity(tt.similarity), "similarity %v", tt.similarity)
	}
}
