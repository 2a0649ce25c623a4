package services

import (
	"math/rand"
	"testing"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func scaleQ(id string, cat ScoringCategory, inverted bool) *Question {
	return &Question{ID: id, Required: true, Body: ScaleBody{Min: 0, Max: 10, Category: cat, Inverted: inverted}}
}

func scaleA(id string, v int) Answer { return Answer{QuestionID: id, Scale: intp(v)} }

func TestScore_InvertedNoiseContribution(t *testing.T) {
	qs := []*Question{scaleQ("n1", CategoryNoise, true)}
	got := Score([]Answer{scaleA("n1", 3)}, qs)
	// single answer: mean is the contribution
	if got.Noise != 70 {
		t.Fatalf("inverted 3 should contribute 7, noise=%v", got.Noise)
	}
}

func TestScore_PowerIgnoresInversion(t *testing.T) {
	qs := []*Question{scaleQ("p1", CategoryPower, true)}
	got := Score([]Answer{scaleA("p1", 3)}, qs)
	if got.Power != 6 {
		t.Fatalf("power should use raw 3 (sum*2=6), got %v", got.Power)
	}
}

func TestScore_NoScaleQuestions(t *testing.T) {
	qs := []*Question{
		{ID: "t", Body: TextBody{}},
		{ID: "c", Body: SingleChoiceBody{Options: []Option{{ID: "o1", Text: "a"}}}},
	}
	answers := []Answer{
		{QuestionID: "t", Text: strp("hello"), Scale: intp(9)},
		{QuestionID: "c", Options: []string{"o1"}, Scale: intp(9)},
	}
	got := Score(answers, qs)
	if got.Noise != 0 || got.Power != 0 {
		t.Fatalf("want zero scores, got %+v", got)
	}
	if got := Score(nil, nil); got != (Scores{}) {
		t.Fatalf("want zero scores for empty input, got %+v", got)
	}
}

func TestScore_FivePowerQuestions(t *testing.T) {
	var qs []*Question
	var as []Answer
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		qs = append(qs, scaleQ(id, CategoryPower, false))
		as = append(as, scaleA(id, 8))
	}
	if got := Score(as, qs).Power; got != 80 {
		t.Fatalf("want power 80, got %v", got)
	}
}

func TestScore_PowerIsSumNotMean(t *testing.T) {
	var qs []*Question
	var as []Answer
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"} {
		qs = append(qs, scaleQ(id, CategoryPower, false))
		as = append(as, scaleA(id, 10))
	}
	if got := Score(as, qs).Power; got != 140 {
		t.Fatalf("seven maxed power answers should give 140, got %v", got)
	}
}

func TestScore_NoiseMean(t *testing.T) {
	qs := []*Question{scaleQ("n1", CategoryNoise, false), scaleQ("n2", CategoryNoise, false)}
	got := Score([]Answer{scaleA("n1", 4), scaleA("n2", 6)}, qs)
	if got.Noise != 50 {
		t.Fatalf("want noise 50, got %v", got.Noise)
	}
}

func TestScore_Rounding(t *testing.T) {
	qs := []*Question{
		scaleQ("n1", CategoryNoise, false),
		scaleQ("n2", CategoryNoise, false),
		scaleQ("n3", CategoryNoise, false),
	}
	// (1+1+2)/3*10 = 13.333...
	got := Score([]Answer{scaleA("n1", 1), scaleA("n2", 1), scaleA("n3", 2)}, qs)
	if got.Noise != 13.33 {
		t.Fatalf("want 13.33, got %v", got.Noise)
	}
	// (2+2+1)/3*10 = 16.666...
	got = Score([]Answer{scaleA("n1", 2), scaleA("n2", 2), scaleA("n3", 1)}, qs)
	if got.Noise != 16.67 {
		t.Fatalf("want 16.67, got %v", got.Noise)
	}
}

func TestRound2_HalfUp(t *testing.T) {
	cases := map[float64]float64{0.125: 0.13, 0.375: 0.38, 7: 7, 99.994: 99.99, 33.3349: 33.33}
	for in, want := range cases {
		if got := round2(in); got != want {
			t.Fatalf("round2(%v)=%v, want %v", in, got, want)
		}
	}
}

func TestScore_SkipsUnknownAndUnansweredAndUncategorized(t *testing.T) {
	qs := []*Question{
		scaleQ("n1", CategoryNoise, false),
		scaleQ("free", CategoryNone, false),
	}
	answers := []Answer{
		scaleA("n1", 6),
		scaleA("gone", 0),
		scaleA("free", 0),
		{QuestionID: "n1"},
	}
	got := Score(answers, qs)
	if got.Noise != 60 {
		t.Fatalf("only n1=6 should count, got noise %v", got.Noise)
	}
}

func TestScore_OrderIndependent(t *testing.T) {
	var qs []*Question
	var as []Answer
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		cat := CategoryNoise
		if i%2 == 0 {
			cat = CategoryPower
		}
		qs = append(qs, scaleQ(id, cat, i%3 == 0))
		as = append(as, scaleA(id, (i*7)%11))
	}
	want := Score(as, qs)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]Answer(nil), as...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		qsh := append([]*Question(nil), qs...)
		r.Shuffle(len(qsh), func(a, b int) { qsh[a], qsh[b] = qsh[b], qsh[a] })
		if got := Score(shuffled, qsh); got != want {
			t.Fatalf("score depends on order: %+v vs %+v", got, want)
		}
	}
}
