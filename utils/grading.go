package utils

import "math"

// LetterGrade maps a percentage to the institutional letter scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	case percentage >= 50:
		return "D"
	case percentage >= 40:
		return "E"
	default:
		return "F"
	}
}

var gradePoints = map[string]float64{
	"A+": 4,
	"A":  4,
	"B":  3,
	"C":  2,
	"D":  1,
	"E":  0.5,
	"F":  0,
}

func GradePoint(letter string) float64 {
	return gradePoints[letter]
}

type CreditGrade struct {
	Credits int
	Letter  string
}

// CGPA is the credit-weighted mean of grade points, rounded to two decimals.
func CGPA(entries []CreditGrade) float64 {
	var points, credits float64
	for _, e := range entries {
		points += GradePoint(e.Letter) * float64(e.Credits)
		credits += float64(e.Credits)
	}
	if credits == 0 {
		return 0
	}
	return Round2(points / credits)
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GradeOf grades obtained out of maximum on the unrounded percentage.
func GradeOf(obtained, maximum float64) string {
	if maximum == 0 {
		return LetterGrade(0)
	}
	return LetterGrade(obtained / maximum * 100)
}

// Percent returns part/whole*100 rounded to two decimals, or zero for an empty whole.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(part / whole * 100)
}
