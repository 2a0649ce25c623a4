package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/silencie/silencie/internal/models"
)

type SubmissionStore interface {
	GetProgramForm(ctx context.Context, id string) (*models.ProgramForm, error)
	IsEnrolled(ctx context.Context, userID, programID string) (bool, error)
	LoadTemplateRows(ctx context.Context, templateID string) (*TemplateRows, error)

	GetSubmission(ctx context.Context, userID, programFormID string) (*models.FormSubmission, error)
	// CreateSubmission inserts an in-progress row; ErrDuplicate if the pair
	// already has one.
	CreateSubmission(ctx context.Context, s *models.FormSubmission) error
	// SealSubmission stores s as completed and replaces its answers in one
	// transaction. An in-progress row for the pair is updated (s.ID is set
	// to its id); otherwise s is inserted. Returns ErrSealed when the row is
	// already completed and ErrDuplicate when a concurrent insert won.
	SealSubmission(ctx context.Context, s *models.FormSubmission, answers []*models.FormAnswer) error
	ListAnswers(ctx context.Context, submissionID string) ([]*models.FormAnswer, error)
}

// SubmissionService runs the member side of a program form: opening it,
// checking answers, submitting once and reading the result.
type SubmissionService struct {
	store     SubmissionStore
	translate Translator
	now       func() time.Time
	idGen     func() string
	logger    *slog.Logger
}

func NewSubmissionService(store SubmissionStore, translate Translator, logger *slog.Logger) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{
		store:     store,
		translate: translate,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		logger:    logger,
	}
}

type FormSession struct {
	ProgramForm *models.ProgramForm    `json:"program_form"`
	Submission  *models.FormSubmission `json:"submission"`
	Template    *Template              `json:"template"`
}

type SubmitResult struct {
	Submission *models.FormSubmission `json:"submission"`
	Scores     Scores                 `json:"scores"`
}

type ResultView struct {
	Submission     *models.FormSubmission `json:"submission"`
	Template       *Template              `json:"template"`
	Answers        []Answer               `json:"answers"`
	Scores         Scores                 `json:"scores"`
	Interpretation Interpretation         `json:"interpretation"`
}

// eligibility checks, in order, that the program form exists, the user is
// enrolled in its program, the deadline has not passed and no sealed
// submission exists. It returns the program form and any existing
// submission.
func (s *SubmissionService) eligibility(ctx context.Context, userID, programFormID string) (*models.ProgramForm, *models.FormSubmission, error) {
	pf, err := s.store.GetProgramForm(ctx, programFormID)
	if err != nil {
		return nil, nil, err
	}
	if pf == nil {
		return nil, nil, newKeyedError(ErrorNotFound, "form.not_found", "form not found")
	}
	enrolled, err := s.store.IsEnrolled(ctx, userID, pf.ProgramID)
	if err != nil {
		return nil, nil, err
	}
	if !enrolled {
		return nil, nil, newKeyedError(ErrorForbidden, "form.not_enrolled", "you are not enrolled in this program")
	}
	if pf.AvailableUntil != nil && s.now().After(*pf.AvailableUntil) {
		return nil, nil, NewDeadlineExpiredError()
	}
	sub, err := s.store.GetSubmission(ctx, userID, programFormID)
	if err != nil {
		return nil, nil, err
	}
	if sub != nil && sub.CompletedAt != nil {
		return nil, nil, NewAlreadySubmittedError()
	}
	return pf, sub, nil
}

func (s *SubmissionService) loadTemplate(ctx context.Context, templateID string) (*Template, error) {
	rows, err := s.store.LoadTemplateRows(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if rows == nil || rows.Template == nil {
		return nil, NewNotFoundError("template not found")
	}
	return Materialize(*rows), nil
}

// Open starts or resumes a form. It creates the in-progress submission the
// first time and returns the materialized template to fill.
func (s *SubmissionService) Open(ctx context.Context, userID, programFormID string) (session *FormSession, err error) {
	defer func() { formOpenTotal.WithLabelValues(outcomeLabel(err)).Inc() }()

	pf, sub, err := s.eligibility(ctx, userID, programFormID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.loadTemplate(ctx, pf.FormTemplateID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		now := s.now()
		sub = &models.FormSubmission{ID: s.idGen(), UserID: userID, ProgramFormID: programFormID, CreatedAt: now, UpdatedAt: now}
		if err := s.store.CreateSubmission(ctx, sub); err != nil {
			if !errors.Is(err, ErrDuplicate) {
				return nil, err
			}
			// Lost a race with another open of the same pair.
			if sub, err = s.store.GetSubmission(ctx, userID, programFormID); err != nil {
				return nil, err
			}
			if sub != nil && sub.CompletedAt != nil {
				return nil, NewAlreadySubmittedError()
			}
		}
	}
	return &FormSession{ProgramForm: pf, Submission: sub, Template: tpl}, nil
}

// CheckAnswer validates a single answer while the member is filling in the
// form.
func (s *SubmissionService) CheckAnswer(ctx context.Context, userID, programFormID string, a Answer) (bool, error) {
	pf, _, err := s.eligibility(ctx, userID, programFormID)
	if err != nil {
		return false, err
	}
	tpl, err := s.loadTemplate(ctx, pf.FormTemplateID)
	if err != nil {
		return false, err
	}
	q, ok := tpl.Question(a.QuestionID)
	if !ok {
		return false, NewNotFoundError("question not found")
	}
	return IsAnswerValid(q, &a), nil
}

// Submit seals the form with the complete answer set. Eligibility is checked
// again since the deadline or enrollment may have changed since Open.
func (s *SubmissionService) Submit(ctx context.Context, userID, programFormID string, answers []Answer) (res *SubmitResult, err error) {
	defer func() { submissionTotal.WithLabelValues(outcomeLabel(err)).Inc() }()

	pf, existing, err := s.eligibility(ctx, userID, programFormID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.loadTemplate(ctx, pf.FormTemplateID)
	if err != nil {
		return nil, err
	}
	questions := tpl.Questions()

	kept := s.dropOrphans(tpl, programFormID, answers)
	if q, ok := CheckAnswers(questions, kept); !ok {
		return nil, newKeyedError(ErrorInvalid, "form.required_missing", fmt.Sprintf("question %q is missing or invalid", q.Text))
	}
	scores := Score(kept, questions)

	now := s.now()
	sub := &models.FormSubmission{ID: s.idGen(), UserID: userID, ProgramFormID: programFormID, CreatedAt: now}
	if existing != nil {
		sub.ID, sub.CreatedAt = existing.ID, existing.CreatedAt
	}
	noise, power := scores.Noise, scores.Power
	sub.NoiseScore, sub.PowerScore = &noise, &power
	sub.CompletedAt, sub.UpdatedAt = &now, now

	rows := make([]*models.FormAnswer, 0, len(kept))
	for _, a := range kept {
		q, _ := tpl.Question(a.QuestionID)
		row := AnswerRow(q, a)
		if row == nil {
			continue
		}
		row.ID = s.idGen()
		rows = append(rows, row)
	}

	if err := s.store.SealSubmission(ctx, sub, rows); err != nil {
		switch {
		case errors.Is(err, ErrSealed):
			return nil, NewAlreadySubmittedError()
		case errors.Is(err, ErrDuplicate):
			cur, gerr := s.store.GetSubmission(ctx, userID, programFormID)
			if gerr != nil {
				return nil, gerr
			}
			if cur != nil && cur.CompletedAt != nil {
				return nil, NewAlreadySubmittedError()
			}
			return nil, NewConflictError("submission is being saved by another request")
		}
		return nil, err
	}

	submissionScore.WithLabelValues("noise").Observe(scores.Noise)
	submissionScore.WithLabelValues("power").Observe(scores.Power)
	s.logger.Info("submission sealed",
		"submission_id", sub.ID,
		"program_form_id", programFormID,
		"user_id", userID,
		"noise", scores.Noise,
		"power", scores.Power,
	)
	return &SubmitResult{Submission: sub, Scores: scores}, nil
}

// dropOrphans removes answers to questions no longer in the template and
// keeps the last answer given per question.
func (s *SubmissionService) dropOrphans(tpl *Template, programFormID string, answers []Answer) []Answer {
	last := make(map[string]int, len(answers))
	for i, a := range answers {
		last[a.QuestionID] = i
	}
	out := make([]Answer, 0, len(answers))
	for i, a := range answers {
		if last[a.QuestionID] != i {
			continue
		}
		if _, ok := tpl.Question(a.QuestionID); !ok {
			orphanAnswersTotal.Inc()
			s.logger.Warn("dropping answer to unknown question", "program_form_id", programFormID, "question_id", a.QuestionID)
			continue
		}
		out = append(out, a)
	}
	return out
}

// Result returns a sealed submission with its interpretation in locale.
func (s *SubmissionService) Result(ctx context.Context, userID, programFormID, locale string) (*ResultView, error) {
	sub, err := s.store.GetSubmission(ctx, userID, programFormID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, newKeyedError(ErrorNotFound, "form.not_found", "submission not found")
	}
	if sub.CompletedAt == nil {
		return nil, newKeyedError(ErrorInvalid, "form.not_completed", "form not completed yet")
	}
	pf, err := s.store.GetProgramForm(ctx, programFormID)
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, newKeyedError(ErrorNotFound, "form.not_found", "form not found")
	}
	tpl, err := s.loadTemplate(ctx, pf.FormTemplateID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAnswers(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	answers := make([]Answer, 0, len(rows))
	for _, r := range rows {
		answers = append(answers, AnswerFromRow(r))
	}
	var scores Scores
	if sub.NoiseScore != nil {
		scores.Noise = *sub.NoiseScore
	}
	if sub.PowerScore != nil {
		scores.Power = *sub.PowerScore
	}
	return &ResultView{
		Submission:     sub,
		Template:       tpl,
		Answers:        answers,
		Scores:         scores,
		Interpretation: Interpret(scores.Noise, scores.Power, locale, s.translate),
	}, nil
}
