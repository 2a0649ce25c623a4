package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/silencie/silencie/internal/models"
)

// Getters on store interfaces return (nil, nil) when the row does not exist.

type TemplateStore interface {
	InsertTemplate(ctx context.Context, t *models.FormTemplate) error
	GetTemplate(ctx context.Context, id string) (*models.FormTemplate, error)
	UpdateTemplate(ctx context.Context, t *models.FormTemplate) error
	// DeleteTemplate returns ErrInUse while a program form references it.
	DeleteTemplate(ctx context.Context, id string) error
	ListTemplates(ctx context.Context) ([]*models.FormTemplate, error)
	LoadTemplateRows(ctx context.Context, templateID string) (*TemplateRows, error)

	// InsertSection stores s. With appendLast its order index is set to one
	// past the current maximum of its template, 0 for the first section,
	// inside the insert transaction.
	InsertSection(ctx context.Context, s *models.FormSection, appendLast bool) error
	GetSection(ctx context.Context, id string) (*models.FormSection, error)
	UpdateSection(ctx context.Context, s *models.FormSection) error
	// DeleteSection removes the section with its questions and options.
	// Answers referencing them are kept.
	DeleteSection(ctx context.Context, id string) error

	// InsertQuestion stores q with its options; appendLast works as for
	// sections, within q's section.
	InsertQuestion(ctx context.Context, q *models.FormQuestion, opts []*models.FormOption, appendLast bool) error
	GetQuestion(ctx context.Context, id string) (*models.FormQuestion, []*models.FormOption, error)
	UpdateQuestion(ctx context.Context, q *models.FormQuestion) error
	// ReplaceOptions deletes every option of the question and inserts opts,
	// in one transaction.
	ReplaceOptions(ctx context.Context, questionID string, opts []*models.FormOption) error
	DeleteQuestion(ctx context.Context, id string) error

	// InsertTemplateRows stores a whole template with its sections,
	// questions and options in one transaction. Order indexes are taken as
	// given.
	InsertTemplateRows(ctx context.Context, rows *TemplateRows) error
}

// TemplateService implements template authoring. Callers are expected to be
// administrators; the HTTP layer enforces that.
type TemplateService struct {
	store  TemplateStore
	now    func() time.Time
	idGen  func() string
	logger *slog.Logger
}

func NewTemplateService(store TemplateStore, logger *slog.Logger) *TemplateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateService{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		idGen:  uuid.NewString,
		logger: logger,
	}
}

type TemplateInput struct {
	Name             string `json:"name" yaml:"name" validate:"notblank"`
	Description      string `json:"description,omitempty" yaml:"description,omitempty"`
	IntroTitle       string `json:"intro_title,omitempty" yaml:"intro_title,omitempty"`
	IntroDescription string `json:"intro_description,omitempty" yaml:"intro_description,omitempty"`
	IsActive         *bool  `json:"is_active,omitempty" yaml:"active,omitempty"`
}

type TemplatePatch struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	IntroTitle       *string `json:"intro_title,omitempty"`
	IntroDescription *string `json:"intro_description,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

type SectionInput struct {
	Title       string `json:"title" yaml:"title" validate:"notblank"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	OrderIndex  *int   `json:"order_index,omitempty" yaml:"-"`
}

type SectionPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	OrderIndex  *int    `json:"order_index,omitempty"`
}

func (s *TemplateService) CreateTemplate(ctx context.Context, in TemplateInput) (*models.FormTemplate, error) {
	t, err := s.newTemplateRow(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("template created", "template_id", t.ID, "name", t.Name)
	return t, nil
}

func (s *TemplateService) newTemplateRow(in TemplateInput) (*models.FormTemplate, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	t := &models.FormTemplate{
		ID:               s.idGen(),
		Name:             in.Name,
		Description:      strings.TrimSpace(in.Description),
		IntroTitle:       strings.TrimSpace(in.IntroTitle),
		IntroDescription: strings.TrimSpace(in.IntroDescription),
		IsActive:         in.IsActive == nil || *in.IsActive,
		CreatedAt:        s.now(),
	}
	t.UpdatedAt = t.CreatedAt
	return t, nil
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, p TemplatePatch) (*models.FormTemplate, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("template not found")
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, NewInvalidError("name is required")
		}
		t.Name = name
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.IntroTitle != nil {
		t.IntroTitle = strings.TrimSpace(*p.IntroTitle)
	}
	if p.IntroDescription != nil {
		t.IntroDescription = strings.TrimSpace(*p.IntroDescription)
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return NewNotFoundError("template not found")
	}
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		if errors.Is(err, ErrInUse) {
			return NewConflictError("template is attached to a program")
		}
		return err
	}
	s.logger.Info("template deleted", "template_id", id)
	return nil
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]*models.FormTemplate, error) {
	return s.store.ListTemplates(ctx)
}

// GetTemplate returns the materialized template tree.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*Template, error) {
	rows, err := s.store.LoadTemplateRows(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == nil || rows.Template == nil {
		return nil, NewNotFoundError("template not found")
	}
	return Materialize(*rows), nil
}

// AddSection appends a section to a template. Without an explicit order
// index it goes after the last one.
func (s *TemplateService) AddSection(ctx context.Context, templateID string, in SectionInput) (*models.FormSection, error) {
	sec, err := s.newSectionRow(templateID, in)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("template not found")
	}
	if err := s.store.InsertSection(ctx, sec, in.OrderIndex == nil); err != nil {
		return nil, err
	}
	return sec, nil
}

func (s *TemplateService) newSectionRow(templateID string, in SectionInput) (*models.FormSection, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	sec := &models.FormSection{
		ID:             s.idGen(),
		FormTemplateID: templateID,
		Title:          in.Title,
		Description:    strings.TrimSpace(in.Description),
		CreatedAt:      s.now(),
	}
	if in.OrderIndex != nil {
		sec.OrderIndex = *in.OrderIndex
	}
	return sec, nil
}

func (s *TemplateService) UpdateSection(ctx context.Context, id string, p SectionPatch) (*models.FormSection, error) {
	sec, err := s.store.GetSection(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, NewNotFoundError("section not found")
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, NewInvalidError("title is required")
		}
		sec.Title = title
	}
	if p.Description != nil {
		sec.Description = strings.TrimSpace(*p.Description)
	}
	if p.OrderIndex != nil {
		sec.OrderIndex = *p.OrderIndex
	}
	if err := s.store.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// DeleteSection removes a section with its questions and options. Answers
// already given to those questions stay behind as orphans.
func (s *TemplateService) DeleteSection(ctx context.Context, id string) error {
	sec, err := s.store.GetSection(ctx, id)
	if err != nil {
		return err
	}
	if sec == nil {
		return NewNotFoundError("section not found")
	}
	if err := s.store.DeleteSection(ctx, id); err != nil {
		return err
	}
	s.logger.Info("section deleted", "section_id", id, "template_id", sec.FormTemplateID)
	return nil
}

func (s *TemplateService) AddQuestion(ctx context.Context, sectionID string, in QuestionInput) (*Question, error) {
	q, err := buildQuestion(in, s.idGen)
	if err != nil {
		return nil, err
	}
	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, NewNotFoundError("section not found")
	}
	q.ID = s.idGen()
	q.SectionID = sectionID
	row, opts := QuestionRow(q)
	now := s.now()
	row.CreatedAt = now
	for _, o := range opts {
		o.CreatedAt = now
	}
	if err := s.store.InsertQuestion(ctx, row, opts, in.OrderIndex == nil); err != nil {
		return nil, err
	}
	q.OrderIndex = row.OrderIndex
	return q, nil
}

// UpdateQuestion replaces the question's definition with in. When
// in.Options is nil the stored options are kept; otherwise they are
// replaced, issuing new option ids.
func (s *TemplateService) UpdateQuestion(ctx context.Context, id string, in QuestionInput) (*Question, error) {
	row, opts, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewNotFoundError("question not found")
	}
	keepOptions := in.Options == nil
	if keepOptions {
		in.Options = inputFromRow(row, opts).Options
	}
	if in.OrderIndex == nil {
		idx := row.OrderIndex
		in.OrderIndex = &idx
	}
	q, err := buildQuestion(in, s.idGen)
	if err != nil {
		return nil, err
	}
	q.ID, q.SectionID = row.ID, row.SectionID
	next, nextOpts := QuestionRow(q)
	next.CreatedAt = row.CreatedAt
	if err := s.store.UpdateQuestion(ctx, next); err != nil {
		return nil, err
	}

	isChoice := q.Type() == TypeSingleChoice || q.Type() == TypeMultipleChoice
	switch {
	case isChoice && keepOptions:
		return QuestionFromRow(next, opts)
	case isChoice || len(opts) > 0:
		now := s.now()
		for _, o := range nextOpts {
			o.CreatedAt = now
		}
		if err := s.store.ReplaceOptions(ctx, id, nextOpts); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// UpdateQuestionOptions replaces the whole option set of a choice question.
// Every option gets a new id, so answers pointing at the old ones are
// orphaned.
func (s *TemplateService) UpdateQuestionOptions(ctx context.Context, id string, options []OptionInput) (*Question, error) {
	row, _, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewNotFoundError("question not found")
	}
	typ := QuestionType(row.QuestionType)
	if typ != TypeSingleChoice && typ != TypeMultipleChoice {
		return nil, NewInvalidError("only choice questions have options")
	}
	opts := buildOptions(options, s.idGen)
	if len(opts) == 0 {
		return nil, NewInvalidError("choice questions need at least one option")
	}
	now := s.now()
	rows := make([]*models.FormOption, 0, len(opts))
	for _, o := range opts {
		rows = append(rows, &models.FormOption{ID: o.ID, QuestionID: id, OptionText: o.Text, OptionValue: o.Value, OrderIndex: o.OrderIndex, CreatedAt: now})
	}
	if err := s.store.ReplaceOptions(ctx, id, rows); err != nil {
		return nil, err
	}
	return QuestionFromRow(row, rows)
}

func (s *TemplateService) DeleteQuestion(ctx context.Context, id string) error {
	row, _, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if row == nil {
		return NewNotFoundError("question not found")
	}
	return s.store.DeleteQuestion(ctx, id)
}
