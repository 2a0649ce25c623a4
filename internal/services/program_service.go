package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/silencie/silencie/internal/models"
)

type ProgramStore interface {
	InsertProgram(ctx context.Context, p *models.Program) error
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	ListPrograms(ctx context.Context) ([]*models.Program, error)
	// DeleteProgram removes the program with its phases, enrollments and
	// program forms; ErrInUse while any of its forms has submissions.
	DeleteProgram(ctx context.Context, id string) error

	// InsertPhase works like InsertSection: with appendLast the order index
	// is one past the program's current maximum.
	InsertPhase(ctx context.Context, p *models.Phase, appendLast bool) error
	GetPhase(ctx context.Context, id string) (*models.Phase, error)
	UpdatePhase(ctx context.Context, p *models.Phase) error
	DeletePhase(ctx context.Context, id string) error
	ListPhases(ctx context.Context, programID string) ([]*models.Phase, error)

	// InsertEnrollment returns ErrDuplicate for an existing (user, program).
	InsertEnrollment(ctx context.Context, e *models.Enrollment) error
	DeleteEnrollment(ctx context.Context, userID, programID string) error
	ListEnrollments(ctx context.Context, programID string) ([]*models.Enrollment, error)
	ListUserEnrollments(ctx context.Context, userID string) ([]*models.Enrollment, error)

	// InsertProgramForm returns ErrDuplicate for an existing (program, template).
	InsertProgramForm(ctx context.Context, pf *models.ProgramForm) error
	GetProgramForm(ctx context.Context, id string) (*models.ProgramForm, error)
	UpdateProgramForm(ctx context.Context, pf *models.ProgramForm) error
	// DeleteProgramForm returns ErrInUse while submissions reference it.
	DeleteProgramForm(ctx context.Context, id string) error
	ListProgramForms(ctx context.Context, programID string) ([]*models.ProgramForm, error)

	GetTemplate(ctx context.Context, id string) (*models.FormTemplate, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetSubmission(ctx context.Context, userID, programFormID string) (*models.FormSubmission, error)
}

type ProgramService struct {
	store ProgramStore
	now   func() time.Time
	idGen func() string
}

func NewProgramService(store ProgramStore) *ProgramService {
	return &ProgramService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

type ProgramInput struct {
	Name        string     `json:"name" validate:"notblank"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type PhaseInput struct {
	Name        string    `json:"name" validate:"notblank"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	OrderIndex  *int      `json:"order_index,omitempty"`
}

type PhasePatch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	OrderIndex  *int       `json:"order_index,omitempty"`
}

// ProgramDetail is a program with its phases in order.
type ProgramDetail struct {
	*models.Program
	Phases []*models.Phase `json:"phases"`
}

type ProgramFormInput struct {
	FormTemplateID string     `json:"form_template_id" validate:"required"`
	AvailableUntil *time.Time `json:"available_until,omitempty"`
	IsRequired     bool       `json:"is_required"`
}

// ProgramFormPatch changes a binding. ClearDeadline removes the deadline.
type ProgramFormPatch struct {
	AvailableUntil *time.Time `json:"available_until,omitempty"`
	ClearDeadline  bool       `json:"clear_deadline,omitempty"`
	IsRequired     *bool      `json:"is_required,omitempty"`
}

type FormStatus string

const (
	StatusPending    FormStatus = "pending"
	StatusInProgress FormStatus = "in_progress"
	StatusCompleted  FormStatus = "completed"
	StatusExpired    FormStatus = "expired"
)

// MemberForm is a program form as seen by an enrolled member.
type MemberForm struct {
	ProgramFormID  string     `json:"program_form_id"`
	ProgramID      string     `json:"program_id"`
	ProgramName    string     `json:"program_name"`
	TemplateID     string     `json:"form_template_id"`
	TemplateName   string     `json:"template_name"`
	AvailableUntil *time.Time `json:"available_until,omitempty"`
	IsRequired     bool       `json:"is_required"`
	Status         FormStatus `json:"status"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (s *ProgramService) CreateProgram(ctx context.Context, in ProgramInput) (*models.Program, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, NewInvalidError("end_date must not be before start_date")
	}
	now := s.now()
	p := &models.Program{
		ID:          s.idGen(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertProgram(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProgramService) ListPrograms(ctx context.Context) ([]*models.Program, error) {
	return s.store.ListPrograms(ctx)
}

func (s *ProgramService) GetProgram(ctx context.Context, id string) (*ProgramDetail, error) {
	p, err := s.requireProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	phases, err := s.store.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(phases, func(i, j int) bool {
		if phases[i].OrderIndex != phases[j].OrderIndex {
			return phases[i].OrderIndex < phases[j].OrderIndex
		}
		return phases[i].CreatedAt.Before(phases[j].CreatedAt)
	})
	return &ProgramDetail{Program: p, Phases: phases}, nil
}

func (s *ProgramService) DeleteProgram(ctx context.Context, id string) error {
	if _, err := s.requireProgram(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteProgram(ctx, id); err != nil {
		if errors.Is(err, ErrInUse) {
			return NewConflictError("program forms already have submissions")
		}
		return err
	}
	return nil
}

func (s *ProgramService) AddPhase(ctx context.Context, programID string, in PhaseInput) (*models.Phase, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, NewInvalidError("end_date must not be before start_date")
	}
	if _, err := s.requireProgram(ctx, programID); err != nil {
		return nil, err
	}
	now := s.now()
	ph := &models.Phase{
		ID:          s.idGen(),
		ProgramID:   programID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.OrderIndex != nil {
		ph.OrderIndex = *in.OrderIndex
	}
	if err := s.store.InsertPhase(ctx, ph, in.OrderIndex == nil); err != nil {
		return nil, err
	}
	return ph, nil
}

func (s *ProgramService) UpdatePhase(ctx context.Context, id string, p PhasePatch) (*models.Phase, error) {
	ph, err := s.store.GetPhase(ctx, id)
	if err != nil {
		return nil, err
	}
	if ph == nil {
		return nil, NewNotFoundError("phase not found")
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, NewInvalidError("name must not be blank")
		}
		ph.Name = name
	}
	if p.Description != nil {
		ph.Description = strings.TrimSpace(*p.Description)
	}
	if p.StartDate != nil {
		ph.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		ph.EndDate = *p.EndDate
	}
	if p.OrderIndex != nil {
		ph.OrderIndex = *p.OrderIndex
	}
	if ph.EndDate.Before(ph.StartDate) {
		return nil, NewInvalidError("end_date must not be before start_date")
	}
	ph.UpdatedAt = s.now()
	if err := s.store.UpdatePhase(ctx, ph); err != nil {
		return nil, err
	}
	return ph, nil
}

func (s *ProgramService) DeletePhase(ctx context.Context, id string) error {
	return s.store.DeletePhase(ctx, id)
}

func (s *ProgramService) requireProgram(ctx context.Context, id string) (*models.Program, error) {
	p, err := s.store.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("program not found")
	}
	return p, nil
}

func (s *ProgramService) Enroll(ctx context.Context, programID, userID string) (*models.Enrollment, error) {
	if _, err := s.requireProgram(ctx, programID); err != nil {
		return nil, err
	}
	u, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewNotFoundError("user not found")
	}
	e := &models.Enrollment{ID: s.idGen(), UserID: userID, ProgramID: programID, EnrolledAt: s.now()}
	if err := s.store.InsertEnrollment(ctx, e); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, newKeyedError(ErrorConflict, "enrollment.duplicate", "user is already enrolled in this program")
		}
		return nil, err
	}
	return e, nil
}

func (s *ProgramService) Unenroll(ctx context.Context, programID, userID string) error {
	return s.store.DeleteEnrollment(ctx, userID, programID)
}

func (s *ProgramService) ListEnrollments(ctx context.Context, programID string) ([]*models.Enrollment, error) {
	if _, err := s.requireProgram(ctx, programID); err != nil {
		return nil, err
	}
	return s.store.ListEnrollments(ctx, programID)
}

// AttachForm binds a template to a program. A template can be attached to a
// program only once.
func (s *ProgramService) AttachForm(ctx context.Context, programID string, in ProgramFormInput) (*models.ProgramForm, error) {
	in.FormTemplateID = strings.TrimSpace(in.FormTemplateID)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := s.requireProgram(ctx, programID); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, in.FormTemplateID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("template not found")
	}
	pf := &models.ProgramForm{
		ID:             s.idGen(),
		ProgramID:      programID,
		FormTemplateID: in.FormTemplateID,
		AvailableUntil: in.AvailableUntil,
		IsRequired:     in.IsRequired,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertProgramForm(ctx, pf); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, newKeyedError(ErrorConflict, "program_form.duplicate", "this form is already attached to this program")
		}
		return nil, err
	}
	return pf, nil
}

func (s *ProgramService) GetProgramForm(ctx context.Context, id string) (*models.ProgramForm, error) {
	pf, err := s.store.GetProgramForm(ctx, id)
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, NewNotFoundError("program form not found")
	}
	return pf, nil
}

func (s *ProgramService) UpdateProgramForm(ctx context.Context, id string, p ProgramFormPatch) (*models.ProgramForm, error) {
	pf, err := s.GetProgramForm(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.ClearDeadline:
		pf.AvailableUntil = nil
	case p.AvailableUntil != nil:
		pf.AvailableUntil = p.AvailableUntil
	}
	if p.IsRequired != nil {
		pf.IsRequired = *p.IsRequired
	}
	if err := s.store.UpdateProgramForm(ctx, pf); err != nil {
		return nil, err
	}
	return pf, nil
}

func (s *ProgramService) DetachForm(ctx context.Context, id string) error {
	if _, err := s.GetProgramForm(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteProgramForm(ctx, id); err != nil {
		if errors.Is(err, ErrInUse) {
			return NewConflictError("program form already has submissions")
		}
		return err
	}
	return nil
}

func (s *ProgramService) ListProgramForms(ctx context.Context, programID string) ([]*models.ProgramForm, error) {
	if _, err := s.requireProgram(ctx, programID); err != nil {
		return nil, err
	}
	return s.store.ListProgramForms(ctx, programID)
}

// MemberForms lists the forms of every program the user is enrolled in,
// with the user's progress on each.
func (s *ProgramService) MemberForms(ctx context.Context, userID string) ([]MemberForm, error) {
	enrollments, err := s.store.ListUserEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	templates := map[string]*models.FormTemplate{}
	out := []MemberForm{}
	for _, e := range enrollments {
		prog, err := s.store.GetProgram(ctx, e.ProgramID)
		if err != nil {
			return nil, err
		}
		if prog == nil {
			continue
		}
		pfs, err := s.store.ListProgramForms(ctx, e.ProgramID)
		if err != nil {
			return nil, err
		}
		for _, pf := range pfs {
			t, ok := templates[pf.FormTemplateID]
			if !ok {
				if t, err = s.store.GetTemplate(ctx, pf.FormTemplateID); err != nil {
					return nil, err
				}
				templates[pf.FormTemplateID] = t
			}
			if t == nil || !t.IsActive {
				continue
			}
			sub, err := s.store.GetSubmission(ctx, userID, pf.ID)
			if err != nil {
				return nil, err
			}
			mf := MemberForm{
				ProgramFormID:  pf.ID,
				ProgramID:      prog.ID,
				ProgramName:    prog.Name,
				TemplateID:     t.ID,
				TemplateName:   t.Name,
				AvailableUntil: pf.AvailableUntil,
				IsRequired:     pf.IsRequired,
				Status:         formStatus(sub, pf, now),
			}
			if sub != nil {
				mf.CompletedAt = sub.CompletedAt
			}
			out = append(out, mf)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProgramName != out[j].ProgramName {
			return out[i].ProgramName < out[j].ProgramName
		}
		return out[i].TemplateName < out[j].TemplateName
	})
	return out, nil
}

func formStatus(sub *models.FormSubmission, pf *models.ProgramForm, now time.Time) FormStatus {
	switch {
	case sub != nil && sub.CompletedAt != nil:
		return StatusCompleted
	case pf.AvailableUntil != nil && now.After(*pf.AvailableUntil):
		return StatusExpired
	case sub != nil:
		return StatusInProgress
	}
	return StatusPending
}
