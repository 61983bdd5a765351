package models

import (
	"github.com/shopspring/decimal"
)

// ComponentScores are the four reviewed inputs feeding the ranking score.
// A nil component means the review stage never supplied it.
type ComponentScores struct {
	Academic             *decimal.Decimal `json:"academic"`
	ProfessorReview      *decimal.Decimal `json:"professor_review"`
	CollegeCriteria      *decimal.Decimal `json:"college_criteria"`
	SpecialCircumstances *decimal.Decimal `json:"special_circumstances"`
}

type ScoreWeights struct {
	Academic             decimal.Decimal `json:"academic"`
	ProfessorReview      decimal.Decimal `json:"professor_review"`
	CollegeCriteria      decimal.Decimal `json:"college_criteria"`
	SpecialCircumstances decimal.Decimal `json:"special_circumstances"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Academic:             decimal.NewFromFloat(0.30),
		ProfessorReview:      decimal.NewFromFloat(0.40),
		CollegeCriteria:      decimal.NewFromFloat(0.20),
		SpecialCircumstances: decimal.NewFromFloat(0.10),
	}
}

func (w ScoreWeights) Sum() decimal.Decimal {
	return w.Academic.Add(w.ProfessorReview).Add(w.CollegeCriteria).Add(w.SpecialCircumstances)
}

// Normalize scales the weights so they sum to 1. A zero-sum weight set is
// returned unchanged.
func (w ScoreWeights) Normalize() ScoreWeights {
	sum := w.Sum()
	if sum.IsZero() {
		return w
	}
	return ScoreWeights{
		Academic:             w.Academic.Div(sum),
		ProfessorReview:      w.ProfessorReview.Div(sum),
		CollegeCriteria:      w.CollegeCriteria.Div(sum),
		SpecialCircumstances: w.SpecialCircumstances.Div(sum),
	}
}

// CalculateRankingScore combines the component scores into one comparable
// total, rounded to 2 places. Missing components count as zero; the returned
// list names them so callers can flag partially-scored applications instead
// of hiding the gap. Weights default to 0.30/0.40/0.20/0.10 and are used as
// given (not forced to sum to 1).
func CalculateRankingScore(scores ComponentScores, weights *ScoreWeights) (decimal.Decimal, []string) {
	w := DefaultScoreWeights()
	if weights != nil {
		w = *weights
	}

	var missing []string
	zero := decimal.Zero

	component := func(v *decimal.Decimal, name string) decimal.Decimal {
		if v == nil {
			missing = append(missing, name)
			return zero
		}
		return *v
	}

	total := component(scores.Academic, "academic").Mul(w.Academic).
		Add(component(scores.ProfessorReview, "professor_review").Mul(w.ProfessorReview)).
		Add(component(scores.CollegeCriteria, "college_criteria").Mul(w.CollegeCriteria)).
		Add(component(scores.SpecialCircumstances, "special_circumstances").Mul(w.SpecialCircumstances))

	return total.Round(2), missing
}
