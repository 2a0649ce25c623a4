package models

import "time"

// Profile is a user record. Role is "admin" or "member".
type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `gorm:"not null;default:member" json:"role"`
	PassHash  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Program groups members and the forms assigned to them.
type Program struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Phase is a dated stage of a program, shown in order.
type Phase struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ProgramID   string    `gorm:"size:36;not null;index" json:"program_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	OrderIndex  int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Enrollment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"size:36;not null;uniqueIndex:ux_enrollment_user_program" json:"user_id"`
	ProgramID  string    `gorm:"size:36;not null;uniqueIndex:ux_enrollment_user_program;index" json:"program_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type FormTemplate struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	Name             string    `gorm:"not null" json:"name"`
	Description      string    `json:"description,omitempty"`
	IntroTitle       string    `json:"intro_title,omitempty"`
	IntroDescription string    `json:"intro_description,omitempty"`
	IsActive         bool      `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type FormSection struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	FormTemplateID string    `gorm:"size:36;not null;index" json:"form_template_id"`
	Title          string    `gorm:"not null" json:"title"`
	Description    string    `json:"description,omitempty"`
	OrderIndex     int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt      time.Time `json:"created_at"`
}

// FormQuestion is the flat storage row of a question. Type specific columns
// are nullable; services.QuestionFromRow turns it into a typed question.
type FormQuestion struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	SectionID       string    `gorm:"size:36;not null;index" json:"section_id"`
	QuestionText    string    `gorm:"not null" json:"question_text"`
	QuestionType    string    `gorm:"not null;check:chk_question_type,question_type IN ('single_choice','multiple_choice','scale','text','textarea')" json:"question_type"`
	HelpText        string    `json:"help_text,omitempty"`
	IsRequired      bool      `gorm:"not null" json:"is_required"`
	IsInverted      bool      `gorm:"not null" json:"is_inverted"`
	ScaleMin        *int      `json:"scale_min,omitempty"`
	ScaleMax        *int      `json:"scale_max,omitempty"`
	ScaleMinLabel   string    `json:"scale_min_label,omitempty"`
	ScaleMaxLabel   string    `json:"scale_max_label,omitempty"`
	MaxSelections   *int      `json:"max_selections,omitempty"`
	ScoringCategory string    `json:"scoring_category,omitempty"`
	OrderIndex      int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt       time.Time `json:"created_at"`
}

type FormOption struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	QuestionID  string    `gorm:"size:36;not null;index" json:"question_id"`
	OptionText  string    `gorm:"not null" json:"option_text"`
	OptionValue string    `json:"option_value,omitempty"`
	OrderIndex  int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProgramForm binds a template to a program.
type ProgramForm struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ProgramID      string     `gorm:"size:36;not null;uniqueIndex:ux_program_form" json:"program_id"`
	FormTemplateID string     `gorm:"size:36;not null;uniqueIndex:ux_program_form;index" json:"form_template_id"`
	AvailableUntil *time.Time `json:"available_until,omitempty"`
	IsRequired     bool       `gorm:"not null;default:false" json:"is_required"`
	CreatedAt      time.Time  `json:"created_at"`
}

// FormSubmission is one user's attempt at a program form. CompletedAt is set
// exactly once, when the submission is sealed.
type FormSubmission struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        string     `gorm:"size:36;not null;uniqueIndex:ux_submission_user_form" json:"user_id"`
	ProgramFormID string     `gorm:"size:36;not null;uniqueIndex:ux_submission_user_form;index" json:"program_form_id"`
	NoiseScore    *float64   `json:"noise_score,omitempty"`
	PowerScore    *float64   `json:"power_score,omitempty"`
	CompletedAt   *time.Time `gorm:"index" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type FormAnswer struct {
	ID            string   `gorm:"primaryKey;size:36" json:"id"`
	SubmissionID  string   `gorm:"size:36;not null;uniqueIndex:ux_answer_submission_question" json:"submission_id"`
	QuestionID    string   `gorm:"size:36;not null;uniqueIndex:ux_answer_submission_question;index" json:"question_id"`
	AnswerText    *string  `json:"answer_text,omitempty"`
	AnswerScale   *int     `json:"answer_scale,omitempty"`
	AnswerOptions []string `gorm:"serializer:json" json:"answer_options,omitempty"`
}
