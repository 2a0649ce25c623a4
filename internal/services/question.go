package services

import (
	"encoding/json"
	"fmt"

	"github.com/silencie/silencie/internal/models"
)

type QuestionType string

const (
	TypeSingleChoice   QuestionType = "single_choice"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeScale          QuestionType = "scale"
	TypeText           QuestionType = "text"
	TypeTextarea       QuestionType = "textarea"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeSingleChoice, TypeMultipleChoice, TypeScale, TypeText, TypeTextarea:
		return true
	}
	return false
}

// ScoringCategory links a scale question to one of the composite scores.
type ScoringCategory string

const (
	CategoryNone  ScoringCategory = ""
	CategoryNoise ScoringCategory = "ruido_mental"
	CategoryPower ScoringCategory = "potencia"
)

func (c ScoringCategory) Valid() bool {
	return c == CategoryNone || c == CategoryNoise || c == CategoryPower
}

const (
	DefaultScaleMin = 0
	DefaultScaleMax = 10
)

// QuestionBody is the type-specific part of a question. The set of
// implementations is closed.
type QuestionBody interface {
	Type() QuestionType
	isQuestionBody()
}

type Option struct {
	ID         string `json:"id"`
	Text       string `json:"option_text"`
	Value      string `json:"option_value,omitempty"`
	OrderIndex int    `json:"order_index"`
}

type ScaleBody struct {
	Min      int             `json:"scale_min"`
	Max      int             `json:"scale_max"`
	MinLabel string          `json:"scale_min_label,omitempty"`
	MaxLabel string          `json:"scale_max_label,omitempty"`
	Inverted bool            `json:"is_inverted"`
	Category ScoringCategory `json:"scoring_category,omitempty"`
}

type SingleChoiceBody struct {
	Options []Option `json:"options"`
}

// MultipleChoiceBody allows up to MaxSelections options; zero means unlimited.
type MultipleChoiceBody struct {
	Options       []Option `json:"options"`
	MaxSelections int      `json:"max_selections,omitempty"`
}

type TextBody struct{}

type TextareaBody struct{}

func (ScaleBody) Type() QuestionType          { return TypeScale }
func (SingleChoiceBody) Type() QuestionType   { return TypeSingleChoice }
func (MultipleChoiceBody) Type() QuestionType { return TypeMultipleChoice }
func (TextBody) Type() QuestionType           { return TypeText }
func (TextareaBody) Type() QuestionType       { return TypeTextarea }

func (ScaleBody) isQuestionBody()          {}
func (SingleChoiceBody) isQuestionBody()   {}
func (MultipleChoiceBody) isQuestionBody() {}
func (TextBody) isQuestionBody()           {}
func (TextareaBody) isQuestionBody()       {}

type Question struct {
	ID         string       `json:"id"`
	SectionID  string       `json:"section_id"`
	Text       string       `json:"question_text"`
	HelpText   string       `json:"help_text,omitempty"`
	Required   bool         `json:"is_required"`
	OrderIndex int          `json:"order_index"`
	Body       QuestionBody `json:"-"`
}

func (q *Question) Type() QuestionType {
	if q == nil || q.Body == nil {
		return ""
	}
	return q.Body.Type()
}

// Options returns the choice options of a choice question, nil otherwise.
func (q *Question) Options() []Option {
	switch b := q.Body.(type) {
	case SingleChoiceBody:
		return b.Options
	case MultipleChoiceBody:
		return b.Options
	}
	return nil
}

// MarshalJSON renders the question in its flat wire shape, with options
// inlined for choice types.
func (q Question) MarshalJSON() ([]byte, error) {
	row, _ := QuestionRow(&q)
	return json.Marshal(struct {
		*models.FormQuestion
		Options []Option `json:"options,omitempty"`
	}{row, q.Options()})
}

// QuestionFromRow converts a storage row and its options into a typed
// question. Columns that do not belong to the row's type are ignored.
func QuestionFromRow(row *models.FormQuestion, options []*models.FormOption) (*Question, error) {
	q := &Question{
		ID:         row.ID,
		SectionID:  row.SectionID,
		Text:       row.QuestionText,
		HelpText:   row.HelpText,
		Required:   row.IsRequired,
		OrderIndex: row.OrderIndex,
	}
	switch QuestionType(row.QuestionType) {
	case TypeScale:
		b := ScaleBody{
			Min:      DefaultScaleMin,
			Max:      DefaultScaleMax,
			MinLabel: row.ScaleMinLabel,
			MaxLabel: row.ScaleMaxLabel,
			Inverted: row.IsInverted,
			Category: ScoringCategory(row.ScoringCategory),
		}
		if row.ScaleMin != nil {
			b.Min = *row.ScaleMin
		}
		if row.ScaleMax != nil {
			b.Max = *row.ScaleMax
		}
		q.Body = b
	case TypeSingleChoice:
		q.Body = SingleChoiceBody{Options: optionsFromRows(options)}
	case TypeMultipleChoice:
		b := MultipleChoiceBody{Options: optionsFromRows(options)}
		if row.MaxSelections != nil && *row.MaxSelections > 0 {
			b.MaxSelections = *row.MaxSelections
		}
		q.Body = b
	case TypeText:
		q.Body = TextBody{}
	case TypeTextarea:
		q.Body = TextareaBody{}
	default:
		return nil, fmt.Errorf("question %s: unknown type %q", row.ID, row.QuestionType)
	}
	return q, nil
}

// QuestionRow flattens a typed question into its storage row. Options are
// returned separately.
func QuestionRow(q *Question) (*models.FormQuestion, []*models.FormOption) {
	row := &models.FormQuestion{
		ID:           q.ID,
		SectionID:    q.SectionID,
		QuestionText: q.Text,
		QuestionType: string(q.Type()),
		HelpText:     q.HelpText,
		IsRequired:   q.Required,
		OrderIndex:   q.OrderIndex,
	}
	var opts []Option
	switch b := q.Body.(type) {
	case ScaleBody:
		lo, hi := b.Min, b.Max
		row.ScaleMin, row.ScaleMax = &lo, &hi
		row.ScaleMinLabel, row.ScaleMaxLabel = b.MinLabel, b.MaxLabel
		row.IsInverted = b.Inverted
		row.ScoringCategory = string(b.Category)
	case SingleChoiceBody:
		opts = b.Options
	case MultipleChoiceBody:
		opts = b.Options
		if b.MaxSelections > 0 {
			m := b.MaxSelections
			row.MaxSelections = &m
		}
	}
	out := make([]*models.FormOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, &models.FormOption{ID: o.ID, QuestionID: q.ID, OptionText: o.Text, OptionValue: o.Value, OrderIndex: o.OrderIndex})
	}
	return row, out
}

func optionsFromRows(rows []*models.FormOption) []Option {
	out := make([]Option, 0, len(rows))
	for _, r := range rows {
		out = append(out, Option{ID: r.ID, Text: r.OptionText, Value: r.OptionValue, OrderIndex: r.OrderIndex})
	}
	return out
}
