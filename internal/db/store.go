package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/silencie/silencie/internal/models"
	"github.com/silencie/silencie/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists every aggregate through GORM. It works on SQLite and
// Postgres alike.
type Store struct {
	db *gorm.DB
}

var (
	_ services.TemplateStore   = (*Store)(nil)
	_ services.SubmissionStore = (*Store)(nil)
	_ services.ProgramStore    = (*Store)(nil)
	_ services.AnalyticsStore  = (*Store)(nil)
	_ services.AuthStore       = (*Store)(nil)
)

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", services.ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}

// take returns the first row matching q, or nil when there is none.
func take[T any](q *gorm.DB) (*T, error) {
	var row T
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// nextOrderIndex is one past the largest order_index of the rows matching
// column = value, 0 when there are none. On Postgres the parent row is
// locked first so concurrent appends under one parent run one at a time.
// SQLite already serializes writers on its single connection.
func nextOrderIndex(tx *gorm.DB, parent any, model any, column, value string) (int, error) {
	if tx.Dialector.Name() != "sqlite" {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", value).Take(parent).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("lock parent: %w", err)
		}
	}
	var max sql.NullInt64
	row := tx.Model(model).Where(column+" = ?", value).Select("MAX(order_index)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// --- templates ---

func (s *Store) InsertTemplate(ctx context.Context, t *models.FormTemplate) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*models.FormTemplate, error) {
	return take[models.FormTemplate](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) UpdateTemplate(ctx context.Context, t *models.FormTemplate) error {
	return translate(s.db.WithContext(ctx).Save(t).Error)
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bound int64
		if err := tx.Model(&models.ProgramForm{}).Where("form_template_id = ?", id).Count(&bound).Error; err != nil {
			return err
		}
		if bound > 0 {
			return services.ErrInUse
		}
		var sectionIDs []string
		if err := tx.Model(&models.FormSection{}).Where("form_template_id = ?", id).Pluck("id", &sectionIDs).Error; err != nil {
			return err
		}
		for _, sid := range sectionIDs {
			if err := deleteSection(tx, sid); err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&models.FormTemplate{}).Error
	})
}

func (s *Store) ListTemplates(ctx context.Context) ([]*models.FormTemplate, error) {
	var out []*models.FormTemplate
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&out).Error
	return out, err
}

// LoadTemplateRows reads a template with all of its sections, questions and
// options, unordered. Nil when the template does not exist.
func (s *Store) LoadTemplateRows(ctx context.Context, templateID string) (*services.TemplateRows, error) {
	db := s.db.WithContext(ctx)
	t, err := take[models.FormTemplate](db.Where("id = ?", templateID))
	if err != nil || t == nil {
		return nil, err
	}
	rows := &services.TemplateRows{Template: t}
	if err := db.Where("form_template_id = ?", templateID).Find(&rows.Sections).Error; err != nil {
		return nil, err
	}
	if len(rows.Sections) == 0 {
		return rows, nil
	}
	sectionIDs := make([]string, 0, len(rows.Sections))
	for _, sec := range rows.Sections {
		sectionIDs = append(sectionIDs, sec.ID)
	}
	if err := db.Where("section_id IN ?", sectionIDs).Find(&rows.Questions).Error; err != nil {
		return nil, err
	}
	if len(rows.Questions) == 0 {
		return rows, nil
	}
	questionIDs := make([]string, 0, len(rows.Questions))
	for _, q := range rows.Questions {
		questionIDs = append(questionIDs, q.ID)
	}
	if err := db.Where("question_id IN ?", questionIDs).Find(&rows.Options).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) InsertTemplateRows(ctx context.Context, rows *services.TemplateRows) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rows.Template).Error; err != nil {
			return err
		}
		if len(rows.Sections) > 0 {
			if err := tx.Create(rows.Sections).Error; err != nil {
				return err
			}
		}
		if len(rows.Questions) > 0 {
			if err := tx.Create(rows.Questions).Error; err != nil {
				return err
			}
		}
		if len(rows.Options) > 0 {
			return tx.Create(rows.Options).Error
		}
		return nil
	}))
}

// --- sections ---

func (s *Store) InsertSection(ctx context.Context, sec *models.FormSection, appendLast bool) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if appendLast {
			next, err := nextOrderIndex(tx, &models.FormTemplate{}, &models.FormSection{}, "form_template_id", sec.FormTemplateID)
			if err != nil {
				return err
			}
			sec.OrderIndex = next
		}
		return tx.Create(sec).Error
	}))
}

func (s *Store) GetSection(ctx context.Context, id string) (*models.FormSection, error) {
	return take[models.FormSection](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) UpdateSection(ctx context.Context, sec *models.FormSection) error {
	return translate(s.db.WithContext(ctx).Save(sec).Error)
}

func (s *Store) DeleteSection(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteSection(tx, id)
	})
}

// deleteSection removes a section with its questions and their options.
// Answers stay behind.
func deleteSection(tx *gorm.DB, id string) error {
	var questionIDs []string
	if err := tx.Model(&models.FormQuestion{}).Where("section_id = ?", id).Pluck("id", &questionIDs).Error; err != nil {
		return err
	}
	if len(questionIDs) > 0 {
		if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.FormOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", questionIDs).Delete(&models.FormQuestion{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("id = ?", id).Delete(&models.FormSection{}).Error
}

// --- questions ---

func (s *Store) InsertQuestion(ctx context.Context, q *models.FormQuestion, opts []*models.FormOption, appendLast bool) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if appendLast {
			next, err := nextOrderIndex(tx, &models.FormSection{}, &models.FormQuestion{}, "section_id", q.SectionID)
			if err != nil {
				return err
			}
			q.OrderIndex = next
		}
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		if len(opts) == 0 {
			return nil
		}
		return tx.Create(opts).Error
	}))
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*models.FormQuestion, []*models.FormOption, error) {
	db := s.db.WithContext(ctx)
	q, err := take[models.FormQuestion](db.Where("id = ?", id))
	if err != nil || q == nil {
		return nil, nil, err
	}
	var opts []*models.FormOption
	if err := db.Where("question_id = ?", id).Order("order_index, created_at, id").Find(&opts).Error; err != nil {
		return nil, nil, err
	}
	return q, opts, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, q *models.FormQuestion) error {
	return translate(s.db.WithContext(ctx).Save(q).Error)
}

func (s *Store) ReplaceOptions(ctx context.Context, questionID string, opts []*models.FormOption) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", questionID).Delete(&models.FormOption{}).Error; err != nil {
			return err
		}
		if len(opts) == 0 {
			return nil
		}
		return tx.Create(opts).Error
	}))
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&models.FormOption{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.FormQuestion{}).Error
	})
}

// --- programs and enrollments ---

func (s *Store) InsertProgram(ctx context.Context, p *models.Program) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	return take[models.Program](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) ListPrograms(ctx context.Context) ([]*models.Program, error) {
	var out []*models.Program
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&out).Error
	return out, err
}

func (s *Store) DeleteProgram(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pfIDs []string
		if err := tx.Model(&models.ProgramForm{}).Where("program_id = ?", id).Pluck("id", &pfIDs).Error; err != nil {
			return err
		}
		if len(pfIDs) > 0 {
			var subs int64
			if err := tx.Model(&models.FormSubmission{}).Where("program_form_id IN ?", pfIDs).Count(&subs).Error; err != nil {
				return err
			}
			if subs > 0 {
				return services.ErrInUse
			}
		}
		for _, model := range []any{&models.ProgramForm{}, &models.Enrollment{}, &models.Phase{}} {
			if err := tx.Where("program_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&models.Program{}).Error
	})
}

func (s *Store) InsertPhase(ctx context.Context, p *models.Phase, appendLast bool) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if appendLast {
			next, err := nextOrderIndex(tx, &models.Program{}, &models.Phase{}, "program_id", p.ProgramID)
			if err != nil {
				return err
			}
			p.OrderIndex = next
		}
		return tx.Create(p).Error
	}))
}

func (s *Store) GetPhase(ctx context.Context, id string) (*models.Phase, error) {
	return take[models.Phase](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) UpdatePhase(ctx context.Context, p *models.Phase) error {
	return translate(s.db.WithContext(ctx).Save(p).Error)
}

func (s *Store) DeletePhase(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Phase{}).Error
}

func (s *Store) ListPhases(ctx context.Context, programID string) ([]*models.Phase, error) {
	var out []*models.Phase
	err := s.db.WithContext(ctx).Where("program_id = ?", programID).Order("order_index, created_at, id").Find(&out).Error
	return out, err
}

func (s *Store) InsertEnrollment(ctx context.Context, e *models.Enrollment) error {
	return translate(s.db.WithContext(ctx).Create(e).Error)
}

func (s *Store) DeleteEnrollment(ctx context.Context, userID, programID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND program_id = ?", userID, programID).
		Delete(&models.Enrollment{}).Error
}

func (s *Store) ListEnrollments(ctx context.Context, programID string) ([]*models.Enrollment, error) {
	var out []*models.Enrollment
	err := s.db.WithContext(ctx).Where("program_id = ?", programID).Order("enrolled_at, id").Find(&out).Error
	return out, err
}

func (s *Store) ListUserEnrollments(ctx context.Context, userID string) ([]*models.Enrollment, error) {
	var out []*models.Enrollment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("enrolled_at, id").Find(&out).Error
	return out, err
}

func (s *Store) IsEnrolled(ctx context.Context, userID, programID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ? AND program_id = ?", userID, programID).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) CountEnrollments(ctx context.Context, programID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).Where("program_id = ?", programID).Count(&n).Error
	return int(n), err
}

// --- program forms ---

func (s *Store) InsertProgramForm(ctx context.Context, pf *models.ProgramForm) error {
	return translate(s.db.WithContext(ctx).Create(pf).Error)
}

func (s *Store) GetProgramForm(ctx context.Context, id string) (*models.ProgramForm, error) {
	return take[models.ProgramForm](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) UpdateProgramForm(ctx context.Context, pf *models.ProgramForm) error {
	return translate(s.db.WithContext(ctx).Save(pf).Error)
}

func (s *Store) DeleteProgramForm(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subs int64
		if err := tx.Model(&models.FormSubmission{}).Where("program_form_id = ?", id).Count(&subs).Error; err != nil {
			return err
		}
		if subs > 0 {
			return services.ErrInUse
		}
		return tx.Where("id = ?", id).Delete(&models.ProgramForm{}).Error
	})
}

func (s *Store) ListProgramForms(ctx context.Context, programID string) ([]*models.ProgramForm, error) {
	var out []*models.ProgramForm
	err := s.db.WithContext(ctx).Where("program_id = ?", programID).Order("created_at, id").Find(&out).Error
	return out, err
}

// --- submissions ---

func (s *Store) GetSubmission(ctx context.Context, userID, programFormID string) (*models.FormSubmission, error) {
	return take[models.FormSubmission](s.db.WithContext(ctx).
		Where("user_id = ? AND program_form_id = ?", userID, programFormID))
}

func (s *Store) CreateSubmission(ctx context.Context, sub *models.FormSubmission) error {
	return translate(s.db.WithContext(ctx).Create(sub).Error)
}

// SealSubmission completes the pair's submission and stores its answers. The
// completing update only matches a row whose completed_at is still NULL, so
// of two concurrent seals exactly one wins.
func (s *Store) SealSubmission(ctx context.Context, sub *models.FormSubmission, answers []*models.FormAnswer) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := take[models.FormSubmission](tx.Where("user_id = ? AND program_form_id = ?", sub.UserID, sub.ProgramFormID))
		if err != nil {
			return err
		}
		switch {
		case cur == nil:
			if err := tx.Create(sub).Error; err != nil {
				return err
			}
		case cur.CompletedAt != nil:
			return services.ErrSealed
		default:
			sub.ID, sub.CreatedAt = cur.ID, cur.CreatedAt
			res := tx.Model(&models.FormSubmission{}).
				Where("id = ? AND completed_at IS NULL", cur.ID).
				Updates(map[string]any{
					"noise_score":  sub.NoiseScore,
					"power_score":  sub.PowerScore,
					"completed_at": sub.CompletedAt,
					"updated_at":   sub.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return services.ErrSealed
			}
		}
		if err := tx.Where("submission_id = ?", sub.ID).Delete(&models.FormAnswer{}).Error; err != nil {
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		for _, a := range answers {
			a.SubmissionID = sub.ID
		}
		return tx.Create(answers).Error
	}))
}

func (s *Store) ListAnswers(ctx context.Context, submissionID string) ([]*models.FormAnswer, error) {
	var out []*models.FormAnswer
	err := s.db.WithContext(ctx).Where("submission_id = ?", submissionID).Order("id").Find(&out).Error
	return out, err
}

// ListSubmissions orders completed submissions newest first, then the ones
// still in progress.
func (s *Store) ListSubmissions(ctx context.Context, programFormID string) ([]*models.FormSubmission, error) {
	var out []*models.FormSubmission
	err := s.db.WithContext(ctx).
		Where("program_form_id = ?", programFormID).
		Order("completed_at IS NULL, completed_at DESC, id").
		Find(&out).Error
	return out, err
}

func (s *Store) ListAnswersByProgramForm(ctx context.Context, programFormID string) ([]*models.FormAnswer, error) {
	var out []*models.FormAnswer
	err := s.db.WithContext(ctx).
		Select("form_answers.*").
		Joins("JOIN form_submissions ON form_submissions.id = form_answers.submission_id").
		Where("form_submissions.program_form_id = ?", programFormID).
		Order("form_answers.submission_id, form_answers.id").
		Find(&out).Error
	return out, err
}

// --- profiles ---

func (s *Store) FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return take[models.Profile](s.db.WithContext(ctx).Where("email = ?", email))
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return take[models.Profile](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) InsertProfile(ctx context.Context, p *models.Profile) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	var out []*models.Profile
	err := s.db.WithContext(ctx).Order("email").Find(&out).Error
	return out, err
}

func (s *Store) ListProfilesByID(ctx context.Context, ids []string) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*models.Profile
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}
