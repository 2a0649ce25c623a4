package services

import (
	"strings"

	"github.com/silencie/silencie/internal/models"
)

// QuestionInput is the authoring shape of a question, as sent by the admin
// panel or read from a template file.
type QuestionInput struct {
	QuestionText    string        `json:"question_text" yaml:"text" validate:"notblank"`
	QuestionType    string        `json:"question_type" yaml:"type" validate:"required,oneof=single_choice multiple_choice scale text textarea"`
	HelpText        string        `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	IsRequired      *bool         `json:"is_required,omitempty" yaml:"required,omitempty"`
	IsInverted      *bool         `json:"is_inverted,omitempty" yaml:"inverted,omitempty"`
	ScaleMin        *int          `json:"scale_min,omitempty" yaml:"scale_min,omitempty"`
	ScaleMax        *int          `json:"scale_max,omitempty" yaml:"scale_max,omitempty"`
	ScaleMinLabel   string        `json:"scale_min_label,omitempty" yaml:"scale_min_label,omitempty"`
	ScaleMaxLabel   string        `json:"scale_max_label,omitempty" yaml:"scale_max_label,omitempty"`
	MaxSelections   *int          `json:"max_selections,omitempty" yaml:"max_selections,omitempty" validate:"omitempty,gt=0"`
	ScoringCategory string        `json:"scoring_category,omitempty" yaml:"category,omitempty" validate:"omitempty,oneof=ruido_mental potencia"`
	OrderIndex      *int          `json:"order_index,omitempty" yaml:"-"`
	Options         []OptionInput `json:"options,omitempty" yaml:"options,omitempty"`
}

type OptionInput struct {
	Text  string `json:"option_text" yaml:"text"`
	Value string `json:"option_value,omitempty" yaml:"value,omitempty"`
}

// buildQuestion validates in and turns it into a typed question. Option ids
// are drawn from newID. Blank options are dropped; choice questions need at
// least one left.
func buildQuestion(in QuestionInput, newID func() string) (*Question, error) {
	in.QuestionText = strings.TrimSpace(in.QuestionText)
	in.QuestionType = strings.TrimSpace(in.QuestionType)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	q := &Question{
		Text:     in.QuestionText,
		HelpText: strings.TrimSpace(in.HelpText),
		Required: true,
	}
	if in.IsRequired != nil {
		q.Required = *in.IsRequired
	}
	if in.OrderIndex != nil {
		q.OrderIndex = *in.OrderIndex
	}
	typ := QuestionType(in.QuestionType)
	inverted := in.IsInverted != nil && *in.IsInverted

	if typ != TypeScale {
		if in.ScaleMin != nil || in.ScaleMax != nil {
			return nil, NewInvalidError("scale bounds are only allowed on scale questions")
		}
		if inverted || in.ScoringCategory != "" {
			return nil, NewInvalidError("only scale questions can be inverted or scored")
		}
	}
	if typ != TypeMultipleChoice && in.MaxSelections != nil {
		return nil, NewInvalidError("max_selections is only allowed on multiple choice questions")
	}

	switch typ {
	case TypeScale:
		b := ScaleBody{
			Min:      DefaultScaleMin,
			Max:      DefaultScaleMax,
			MinLabel: strings.TrimSpace(in.ScaleMinLabel),
			MaxLabel: strings.TrimSpace(in.ScaleMaxLabel),
			Inverted: inverted,
			Category: ScoringCategory(in.ScoringCategory),
		}
		if in.ScaleMin != nil {
			b.Min = *in.ScaleMin
		}
		if in.ScaleMax != nil {
			b.Max = *in.ScaleMax
		}
		if b.Min >= b.Max {
			return nil, NewInvalidError("scale_min must be lower than scale_max")
		}
		q.Body = b
	case TypeSingleChoice, TypeMultipleChoice:
		opts := buildOptions(in.Options, newID)
		if len(opts) == 0 {
			return nil, NewInvalidError("choice questions need at least one option")
		}
		if typ == TypeSingleChoice {
			q.Body = SingleChoiceBody{Options: opts}
		} else {
			b := MultipleChoiceBody{Options: opts}
			if in.MaxSelections != nil {
				b.MaxSelections = *in.MaxSelections
			}
			q.Body = b
		}
	case TypeText:
		q.Body = TextBody{}
	case TypeTextarea:
		q.Body = TextareaBody{}
	}
	return q, nil
}

func buildOptions(in []OptionInput, newID func() string) []Option {
	out := make([]Option, 0, len(in))
	for _, o := range in {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			continue
		}
		out = append(out, Option{ID: newID(), Text: text, Value: strings.TrimSpace(o.Value), OrderIndex: len(out)})
	}
	return out
}

// inputFromRow rebuilds the authoring input of a stored question.
func inputFromRow(row *models.FormQuestion, opts []*models.FormOption) QuestionInput {
	required, inverted := row.IsRequired, row.IsInverted
	in := QuestionInput{
		QuestionText: row.QuestionText,
		QuestionType: row.QuestionType,
		HelpText:     row.HelpText,
		IsRequired:   &required,
	}
	switch QuestionType(row.QuestionType) {
	case TypeScale:
		in.IsInverted = &inverted
		in.ScaleMin, in.ScaleMax = row.ScaleMin, row.ScaleMax
		in.ScaleMinLabel, in.ScaleMaxLabel = row.ScaleMinLabel, row.ScaleMaxLabel
		in.ScoringCategory = row.ScoringCategory
	case TypeMultipleChoice:
		in.MaxSelections = row.MaxSelections
	}
	for _, o := range opts {
		in.Options = append(in.Options, OptionInput{Text: o.OptionText, Value: o.OptionValue})
	}
	return in
}
