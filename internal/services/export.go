package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
)

// LongRow is one answer of one sealed submission.
type LongRow struct {
	SubmissionID string
	UserID       string
	QuestionID   string
	QuestionType string
	Value        string
	CompletedAt  string
}

// ExportLongCSV renders one line per answer.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"submission_id", "user_id", "question_id", "question_type", "value", "completed_at"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{r.SubmissionID, r.UserID, r.QuestionID, r.QuestionType, r.Value, r.CompletedAt}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// WideRow is one sealed submission with its rendered answers keyed by
// question id.
type WideRow struct {
	SubmissionID string
	UserID       string
	Email        string
	CompletedAt  string
	Noise        float64
	Power        float64
	Band         NoiseBand
	Answers      map[string]string
}

// ExportWideCSV renders one line per submission and one column per
// question, in the order of questions.
func ExportWideCSV(questions []*Question, rows []WideRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"submission_id", "user_id", "email", "completed_at", "noise_score", "power_score", "noise_band"}
	for _, q := range questions {
		header = append(header, csvSafe(q.Text))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, r.SubmissionID, r.UserID, r.Email, r.CompletedAt, ftoa(r.Noise), ftoa(r.Power), string(r.Band))
		for _, q := range questions {
			rec = append(rec, r.Answers[q.ID])
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// renderAnswer turns an answer into a cell: option texts for choices, joined
// with " | ". Option ids that no longer exist are kept as is.
func renderAnswer(q *Question, a Answer) string {
	switch {
	case a.Scale != nil:
		return strconv.Itoa(*a.Scale)
	case a.Text != nil:
		return csvSafe(*a.Text)
	case a.Options != nil:
		texts := map[string]string{}
		if q != nil {
			for _, o := range q.Options() {
				texts[o.ID] = o.Text
			}
		}
		out := make([]string, 0, len(a.Options))
		for _, id := range a.Options {
			if t, ok := texts[id]; ok {
				out = append(out, t)
			} else {
				out = append(out, id)
			}
		}
		return csvSafe(strings.Join(out, " | "))
	}
	return ""
}

// csvSafe prefixes free text that a spreadsheet would read as a formula
// with a single quote.
func csvSafe(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
