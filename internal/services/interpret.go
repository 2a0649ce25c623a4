package services

type NoiseBand string

const (
	BandCalm     NoiseBand = "calm"
	BandModerate NoiseBand = "moderate"
	BandHigh     NoiseBand = "high"
	BandOverload NoiseBand = "overload"
	BandMaxAlert NoiseBand = "max_alert"
)

type Recommendation string

const (
	RecPotentDysregulated Recommendation = "potent_dysregulated"
	RecPauseAndRegulate   Recommendation = "pause_and_regulate"
	RecDailyConsistency   Recommendation = "daily_consistency"
	RecFertileGround      Recommendation = "fertile_ground"
)

// recommendationThreshold splits both scores into high and low. A score
// equal to the threshold is low.
const recommendationThreshold = 50

type Interpretation struct {
	NoiseBand          NoiseBand      `json:"noise_band"`
	NoiseLevel         string         `json:"noise_level"`
	Recommendation     Recommendation `json:"recommendation"`
	RecommendationText string         `json:"recommendation_text"`
}

// BandFor maps a noise score to its band. Upper bounds are inclusive.
func BandFor(noise float64) NoiseBand {
	switch {
	case noise <= 20:
		return BandCalm
	case noise <= 40:
		return BandModerate
	case noise <= 60:
		return BandHigh
	case noise <= 80:
		return BandOverload
	default:
		return BandMaxAlert
	}
}

// RecommendationFor picks the recommendation from the 2x2 of high/low noise
// and power.
func RecommendationFor(noise, power float64) Recommendation {
	highNoise := noise > recommendationThreshold
	highPower := power > recommendationThreshold
	switch {
	case highNoise && highPower:
		return RecPotentDysregulated
	case highNoise:
		return RecPauseAndRegulate
	case !highPower:
		return RecDailyConsistency
	default:
		return RecFertileGround
	}
}

// Translator resolves a message key for a locale.
type Translator func(locale, key string) string

// Interpret describes a pair of scores. Texts come from tr in the given
// locale; with a nil tr the keys themselves are returned.
func Interpret(noise, power float64, locale string, tr Translator) Interpretation {
	band := BandFor(noise)
	rec := RecommendationFor(noise, power)
	if tr == nil {
		tr = func(_, key string) string { return key }
	}
	return Interpretation{
		NoiseBand:          band,
		NoiseLevel:         tr(locale, "noise."+string(band)),
		Recommendation:     rec,
		RecommendationText: tr(locale, "recommendation."+string(rec)),
	}
}
