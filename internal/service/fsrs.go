package service

import "math"

// FSRS forgetting-curve constants. Retrievability follows the power-law
// curve R = (1 + f*t/S)^d, which decays slower than an exponential for
// well-established memories.
const (
	fsrsFactor = 0.235
	fsrsPower  = -0.5

	MinStability  = 0.1
	MaxStability  = 365.0
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// ReviewGrade is the outcome of a recall attempt.
type ReviewGrade int

const (
	GradeAgain ReviewGrade = 1 // failed recall
	GradeHard  ReviewGrade = 2
	GradeGood  ReviewGrade = 3
	GradeEasy  ReviewGrade = 4
)

// baseMultiplier maps a grade to its stability multiplier.
func (g ReviewGrade) baseMultiplier() float64 {
	switch g {
	case GradeAgain:
		return 0.5
	case GradeHard:
		return 0.8
	case GradeEasy:
		return 2.0
	default:
		return 1.5
	}
}

// Retrievability returns the modeled recall probability after elapsedDays
// for a memory with the given stability. Malformed inputs fall back to
// documented defaults (stability 1.0, elapsed 0) instead of erroring:
// decay math must never block a read path.
func Retrievability(stability, elapsedDays float64) float64 {
	if !isFinite(stability) || stability <= 0 {
		stability = 1.0
	}
	if !isFinite(elapsedDays) || elapsedDays <= 0 {
		return 1.0
	}
	r := math.Pow(1+fsrsFactor*elapsedDays/stability, fsrsPower)
	return clamp(r, 0, 1)
}

// UpdateStability applies a review outcome. Growth combines the grade's
// base multiplier, a difficulty damping factor, and a desirable-difficulty
// factor that rewards successful recall of weak memories the most.
func UpdateStability(stability, difficulty, retrievability float64, grade ReviewGrade) float64 {
	if !isFinite(stability) || stability <= 0 {
		stability = 1.0
	}
	difficulty = sanitizeDifficulty(difficulty)
	if !isFinite(retrievability) {
		retrievability = 1.0
	}
	retrievability = clamp(retrievability, 0, 1)

	difficultyFactor := 1.3 - (difficulty/10)*0.5

	var retrievabilityFactor float64
	if grade == GradeAgain {
		retrievabilityFactor = 0.8 + retrievability*0.2
	} else {
		retrievabilityFactor = 1 + (1-retrievability)*0.5
	}

	next := stability * grade.baseMultiplier() * difficultyFactor * retrievabilityFactor
	return clamp(next, MinStability, MaxStability)
}

// OptimalInterval returns the number of days until retrievability falls to
// targetR, the closed-form inverse of the forgetting curve.
func OptimalInterval(stability, targetR float64) float64 {
	if !isFinite(stability) || stability <= 0 {
		stability = 1.0
	}
	if !isFinite(targetR) || targetR <= 0 || targetR > 1 {
		targetR = 0.9
	}
	// R = (1 + f*t/S)^p  =>  t = S/f * (R^(1/p) - 1)
	t := stability / fsrsFactor * (math.Pow(targetR, 1/fsrsPower) - 1)
	return clamp(t, MinStability, MaxStability)
}

// UpdateDifficulty nudges difficulty by a half-point step per grade.
func UpdateDifficulty(difficulty float64, grade ReviewGrade) float64 {
	difficulty = sanitizeDifficulty(difficulty)
	switch grade {
	case GradeAgain:
		difficulty += 1.0
	case GradeHard:
		difficulty += 0.5
	case GradeEasy:
		difficulty -= 0.5
	}
	return clamp(difficulty, MinDifficulty, MaxDifficulty)
}

// GradeFromSimilarity infers a recall grade from a search similarity
// score, the bridge between vector retrieval and the scheduler.
func GradeFromSimilarity(similarity float64) ReviewGrade {
	switch {
	case similarity >= 0.95:
		return GradeEasy
	case similarity >= 0.80:
		return GradeGood
	case similarity >= 0.60:
		return GradeHard
	default:
		return GradeAgain
	}
}

func sanitizeDifficulty(d float64) float64 {
	if !isFinite(d) || d == 0 {
		return 5.0
	}
	return clamp(d, MinDifficulty, MaxDifficulty)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
