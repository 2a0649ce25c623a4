package services

import (
	"bytes"
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TemplateSpec is a whole template as written in a YAML file.
type TemplateSpec struct {
	TemplateInput `yaml:",inline"`
	Sections      []SectionSpec `yaml:"sections"`
}

type SectionSpec struct {
	SectionInput `yaml:",inline"`
	Questions    []QuestionInput `yaml:"questions"`
}

// ParseTemplateSpec decodes a YAML template. Unknown keys are rejected.
func ParseTemplateSpec(data []byte) (*TemplateSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var spec TemplateSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, NewInvalidError(fmt.Sprintf("template file: %v", err))
	}
	return &spec, nil
}

// Import creates the template described by spec. Every section and question
// is validated before anything is stored, and the whole tree is written in
// one store call so a failure leaves nothing behind. Sections and questions
// without an explicit order index keep their position in the file.
func (s *TemplateService) Import(ctx context.Context, spec *TemplateSpec) (*Template, error) {
	t, err := s.newTemplateRow(spec.TemplateInput)
	if err != nil {
		return nil, err
	}
	rows := &TemplateRows{Template: t}
	now := s.now()
	for i, secSpec := range spec.Sections {
		sec, err := s.newSectionRow(t.ID, secSpec.SectionInput)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i+1, err)
		}
		if secSpec.OrderIndex == nil {
			sec.OrderIndex = i
		}
		rows.Sections = append(rows.Sections, sec)
		for j, in := range secSpec.Questions {
			q, err := buildQuestion(in, s.idGen)
			if err != nil {
				return nil, fmt.Errorf("section %d question %d: %w", i+1, j+1, err)
			}
			q.ID = s.idGen()
			q.SectionID = sec.ID
			if in.OrderIndex == nil {
				q.OrderIndex = j
			}
			row, opts := QuestionRow(q)
			row.CreatedAt = now
			for _, o := range opts {
				o.CreatedAt = now
			}
			rows.Questions = append(rows.Questions, row)
			rows.Options = append(rows.Options, opts...)
		}
	}

	if err := s.store.InsertTemplateRows(ctx, rows); err != nil {
		return nil, err
	}
	s.logger.Info("template imported", "template_id", t.ID, "sections", len(rows.Sections), "questions", len(rows.Questions))
	return s.GetTemplate(ctx, t.ID)
}
