package services

import "math"

// Scores are the two composite diagnostic scores of a submission.
type Scores struct {
	Noise float64 `json:"noise_score"`
	Power float64 `json:"power_score"`
}

// invertedBase is the reflection point for inverted noise answers. It is
// fixed at 10 regardless of the question's scale bounds.
const invertedBase = 10

// Score reduces answers to the noise and power scores. Only scale answers to
// known scale questions count. Noise is the mean of ruido_mental answers
// (inverted ones reflected as 10-v) times 10. Power is the sum of raw
// potencia answers times 2, which lands in 0..100 only for exactly five
// questions answered 0..10; inversion never applies to power.
func Score(answers []Answer, questions []*Question) Scores {
	byID := make(map[string]*Question, len(questions))
	for _, q := range questions {
		if q != nil {
			byID[q.ID] = q
		}
	}

	var noiseSum, powerSum float64
	var noiseCount, powerCount int
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok || a.Scale == nil {
			continue
		}
		body, ok := q.Body.(ScaleBody)
		if !ok {
			continue
		}
		v := *a.Scale
		switch body.Category {
		case CategoryNoise:
			if body.Inverted {
				v = invertedBase - v
			}
			noiseSum += float64(v)
			noiseCount++
		case CategoryPower:
			powerSum += float64(v)
			powerCount++
		}
	}

	var s Scores
	if noiseCount > 0 {
		s.Noise = round2(noiseSum / float64(noiseCount) * 10)
	}
	if powerCount > 0 {
		s.Power = round2(powerSum * 2)
	}
	return s
}

// round2 rounds half-up to two decimals.
func round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
