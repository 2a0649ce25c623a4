package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	formOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "silencie_form_open_total",
		Help: "Form open attempts by outcome",
	}, []string{"outcome"})

	submissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "silencie_submission_total",
		Help: "Submit attempts by outcome",
	}, []string{"outcome"})

	submissionScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "silencie_submission_score",
		Help:    "Scores of sealed submissions",
		Buckets: []float64{20, 40, 60, 80, 100, 150},
	}, []string{"score"})

	orphanAnswersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "silencie_orphan_answers_total",
		Help: "Submitted answers dropped because their question no longer exists",
	})
)

// outcomeLabel names an error for the outcome label of a counter.
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if se, ok := AsServiceError(err); ok {
		return string(se.Code)
	}
	return "error"
}
