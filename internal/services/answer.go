package services

import (
	"strings"

	"github.com/silencie/silencie/internal/models"
)

// Answer is a member's response to one question. Exactly one payload is
// expected to be set, matching the question type.
type Answer struct {
	QuestionID string   `json:"question_id" validate:"required"`
	Text       *string  `json:"answer_text,omitempty"`
	Scale      *int     `json:"answer_scale,omitempty"`
	Options    []string `json:"answer_options,omitempty"`
}

// payloadFor returns the answer when its payload matches the question type,
// nil otherwise. A mismatched payload counts as no answer.
func payloadFor(q *Question, a *Answer) *Answer {
	if a == nil {
		return nil
	}
	switch q.Type() {
	case TypeScale:
		if a.Scale == nil {
			return nil
		}
	case TypeText, TypeTextarea:
		if a.Text == nil {
			return nil
		}
	case TypeSingleChoice, TypeMultipleChoice:
		if a.Options == nil {
			return nil
		}
	default:
		return nil
	}
	return a
}

// IsAnswerValid decides whether a is admissible for q. A nil answer means
// the question was left unanswered.
func IsAnswerValid(q *Question, a *Answer) bool {
	if q == nil {
		return false
	}
	a = payloadFor(q, a)
	if a != nil && a.Options != nil && !knownOptions(q, a.Options) {
		return false
	}
	if b, ok := q.Body.(MultipleChoiceBody); ok && a != nil {
		if b.MaxSelections > 0 && len(a.Options) > b.MaxSelections {
			return false
		}
	}
	if !q.Required {
		return true
	}
	if a == nil {
		return false
	}
	switch q.Type() {
	case TypeScale:
		return true
	case TypeText, TypeTextarea:
		return strings.TrimSpace(*a.Text) != ""
	case TypeSingleChoice:
		return len(a.Options) == 1
	case TypeMultipleChoice:
		return len(a.Options) >= 1
	}
	return false
}

// knownOptions reports whether ids are distinct options of q.
func knownOptions(q *Question, ids []string) bool {
	valid := make(map[string]bool, len(q.Options()))
	for _, o := range q.Options() {
		valid[o.ID] = true
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !valid[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// CheckAnswers validates a full answer set against the questions and returns
// the first question that fails, in question order.
func CheckAnswers(questions []*Question, answers []Answer) (*Question, bool) {
	byQuestion := make(map[string]*Answer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}
	for _, q := range questions {
		if !IsAnswerValid(q, byQuestion[q.ID]) {
			return q, false
		}
	}
	return nil, true
}

// AnswerFromRow converts a stored answer.
func AnswerFromRow(r *models.FormAnswer) Answer {
	return Answer{QuestionID: r.QuestionID, Text: r.AnswerText, Scale: r.AnswerScale, Options: r.AnswerOptions}
}

// AnswerRow converts an answer into a row, keeping only the payload that
// matches q. Returns nil when nothing matching was given.
func AnswerRow(q *Question, a Answer) *models.FormAnswer {
	p := payloadFor(q, &a)
	if p == nil {
		return nil
	}
	row := &models.FormAnswer{QuestionID: q.ID}
	switch q.Type() {
	case TypeScale:
		v := *p.Scale
		row.AnswerScale = &v
	case TypeText, TypeTextarea:
		v := *p.Text
		row.AnswerText = &v
	default:
		row.AnswerOptions = append([]string(nil), p.Options...)
	}
	return row
}
