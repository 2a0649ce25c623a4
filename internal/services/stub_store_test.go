package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/silencie/silencie/internal/models"
)

// memStore is an in-memory store backing the service tests.
type memStore struct {
	mu           sync.Mutex
	templates    map[string]*models.FormTemplate
	sections     map[string]*models.FormSection
	questions    map[string]*models.FormQuestion
	options      map[string]*models.FormOption
	programs     map[string]*models.Program
	phases       map[string]*models.Phase
	enrollments  map[string]*models.Enrollment
	programForms map[string]*models.ProgramForm
	submissions  map[string]*models.FormSubmission
	answers      map[string][]*models.FormAnswer
	profiles     map[string]*models.Profile

	// sealHook runs inside SealSubmission before the row is checked.
	sealHook func()
	// failTreeInsert makes InsertTemplateRows fail without storing anything.
	failTreeInsert error
}

func newMemStore() *memStore {
	return &memStore{
		templates:    map[string]*models.FormTemplate{},
		sections:     map[string]*models.FormSection{},
		questions:    map[string]*models.FormQuestion{},
		options:      map[string]*models.FormOption{},
		programs:     map[string]*models.Program{},
		phases:       map[string]*models.Phase{},
		enrollments:  map[string]*models.Enrollment{},
		programForms: map[string]*models.ProgramForm{},
		submissions:  map[string]*models.FormSubmission{},
		answers:      map[string][]*models.FormAnswer{},
		profiles:     map[string]*models.Profile{},
	}
}

func pairKey(a, b string) string { return a + "|" + b }

func (s *memStore) InsertTemplate(_ context.Context, t *models.FormTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

func (s *memStore) InsertTemplateRows(_ context.Context, rows *TemplateRows) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTreeInsert != nil {
		return s.failTreeInsert
	}
	t := *rows.Template
	s.templates[t.ID] = &t
	for _, sec := range rows.Sections {
		cp := *sec
		s.sections[cp.ID] = &cp
	}
	for _, q := range rows.Questions {
		cp := *q
		s.questions[cp.ID] = &cp
	}
	for _, o := range rows.Options {
		cp := *o
		s.options[cp.ID] = &cp
	}
	return nil
}

func (s *memStore) GetTemplate(_ context.Context, id string) (*models.FormTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.templates[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) UpdateTemplate(_ context.Context, t *models.FormTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

func (s *memStore) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pf := range s.programForms {
		if pf.FormTemplateID == id {
			return ErrInUse
		}
	}
	delete(s.templates, id)
	return nil
}

func (s *memStore) ListTemplates(_ context.Context) ([]*models.FormTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.FormTemplate{}
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) LoadTemplateRows(_ context.Context, id string) (*TemplateRows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, nil
	}
	rows := &TemplateRows{Template: t}
	secIDs := map[string]bool{}
	for _, sec := range s.sections {
		if sec.FormTemplateID == id {
			rows.Sections = append(rows.Sections, sec)
			secIDs[sec.ID] = true
		}
	}
	qIDs := map[string]bool{}
	for _, q := range s.questions {
		if secIDs[q.SectionID] {
			rows.Questions = append(rows.Questions, q)
			qIDs[q.ID] = true
		}
	}
	for _, o := range s.options {
		if qIDs[o.QuestionID] {
			rows.Options = append(rows.Options, o)
		}
	}
	return rows, nil
}

func (s *memStore) InsertSection(_ context.Context, sec *models.FormSection, appendLast bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appendLast {
		next := 0
		for _, other := range s.sections {
			if other.FormTemplateID == sec.FormTemplateID && other.OrderIndex+1 > next {
				next = other.OrderIndex + 1
			}
		}
		sec.OrderIndex = next
	}
	cp := *sec
	s.sections[sec.ID] = &cp
	return nil
}

func (s *memStore) GetSection(_ context.Context, id string) (*models.FormSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sec, ok := s.sections[id]; ok {
		cp := *sec
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) UpdateSection(_ context.Context, sec *models.FormSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sec
	s.sections[sec.ID] = &cp
	return nil
}

func (s *memStore) DeleteSection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for qid, q := range s.questions {
		if q.SectionID == id {
			s.deleteQuestionLocked(qid)
		}
	}
	delete(s.sections, id)
	return nil
}

func (s *memStore) InsertQuestion(_ context.Context, q *models.FormQuestion, opts []*models.FormOption, appendLast bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appendLast {
		next := 0
		for _, other := range s.questions {
			if other.SectionID == q.SectionID && other.OrderIndex+1 > next {
				next = other.OrderIndex + 1
			}
		}
		q.OrderIndex = next
	}
	cp := *q
	s.questions[q.ID] = &cp
	for _, o := range opts {
		oc := *o
		s.options[o.ID] = &oc
	}
	return nil
}

func (s *memStore) GetQuestion(_ context.Context, id string) (*models.FormQuestion, []*models.FormOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, nil, nil
	}
	cp := *q
	var opts []*models.FormOption
	for _, o := range s.options {
		if o.QuestionID == id {
			oc := *o
			opts = append(opts, &oc)
		}
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].OrderIndex < opts[j].OrderIndex })
	return &cp, opts, nil
}

func (s *memStore) UpdateQuestion(_ context.Context, q *models.FormQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.questions[q.ID] = &cp
	return nil
}

func (s *memStore) ReplaceOptions(_ context.Context, questionID string, opts []*models.FormOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.options {
		if o.QuestionID == questionID {
			delete(s.options, id)
		}
	}
	for _, o := range opts {
		oc := *o
		s.options[o.ID] = &oc
	}
	return nil
}

func (s *memStore) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteQuestionLocked(id)
	return nil
}

func (s *memStore) deleteQuestionLocked(id string) {
	for oid, o := range s.options {
		if o.QuestionID == id {
			delete(s.options, oid)
		}
	}
	delete(s.questions, id)
}

func (s *memStore) InsertProgram(_ context.Context, p *models.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.programs[p.ID] = &cp
	return nil
}

func (s *memStore) GetProgram(_ context.Context, id string) (*models.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.programs[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) ListPrograms(_ context.Context) ([]*models.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Program{}
	for _, p := range s.programs {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) DeleteProgram(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pf := range s.programForms {
		if pf.ProgramID != id {
			continue
		}
		for _, sub := range s.submissions {
			if sub.ProgramFormID == pf.ID {
				return ErrInUse
			}
		}
	}
	for pid, pf := range s.programForms {
		if pf.ProgramID == id {
			delete(s.programForms, pid)
		}
	}
	for key, e := range s.enrollments {
		if e.ProgramID == id {
			delete(s.enrollments, key)
		}
	}
	for pid, ph := range s.phases {
		if ph.ProgramID == id {
			delete(s.phases, pid)
		}
	}
	delete(s.programs, id)
	return nil
}

func (s *memStore) InsertPhase(_ context.Context, p *models.Phase, appendLast bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appendLast {
		next := 0
		for _, other := range s.phases {
			if other.ProgramID == p.ProgramID && other.OrderIndex+1 > next {
				next = other.OrderIndex + 1
			}
		}
		p.OrderIndex = next
	}
	cp := *p
	s.phases[p.ID] = &cp
	return nil
}

func (s *memStore) GetPhase(_ context.Context, id string) (*models.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.phases[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) UpdatePhase(_ context.Context, p *models.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.phases[p.ID] = &cp
	return nil
}

func (s *memStore) DeletePhase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.phases, id)
	return nil
}

func (s *memStore) ListPhases(_ context.Context, programID string) ([]*models.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Phase{}
	for _, p := range s.phases {
		if p.ProgramID == programID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) InsertEnrollment(_ context.Context, e *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(e.UserID, e.ProgramID)
	if _, ok := s.enrollments[key]; ok {
		return ErrDuplicate
	}
	cp := *e
	s.enrollments[key] = &cp
	return nil
}

func (s *memStore) DeleteEnrollment(_ context.Context, userID, programID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enrollments, pairKey(userID, programID))
	return nil
}

func (s *memStore) ListEnrollments(_ context.Context, programID string) ([]*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Enrollment{}
	for _, e := range s.enrollments {
		if e.ProgramID == programID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) ListUserEnrollments(_ context.Context, userID string) ([]*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Enrollment{}
	for _, e := range s.enrollments {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) IsEnrolled(_ context.Context, userID, programID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enrollments[pairKey(userID, programID)]
	return ok, nil
}

func (s *memStore) CountEnrollments(ctx context.Context, programID string) (int, error) {
	es, err := s.ListEnrollments(ctx, programID)
	return len(es), err
}

func (s *memStore) InsertProgramForm(_ context.Context, pf *models.ProgramForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.programForms {
		if other.ProgramID == pf.ProgramID && other.FormTemplateID == pf.FormTemplateID {
			return ErrDuplicate
		}
	}
	cp := *pf
	s.programForms[pf.ID] = &cp
	return nil
}

func (s *memStore) GetProgramForm(_ context.Context, id string) (*models.ProgramForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pf, ok := s.programForms[id]; ok {
		cp := *pf
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) UpdateProgramForm(_ context.Context, pf *models.ProgramForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pf
	s.programForms[pf.ID] = &cp
	return nil
}

func (s *memStore) DeleteProgramForm(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.submissions {
		if sub.ProgramFormID == id {
			return ErrInUse
		}
	}
	delete(s.programForms, id)
	return nil
}

func (s *memStore) ListProgramForms(_ context.Context, programID string) ([]*models.ProgramForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.ProgramForm{}
	for _, pf := range s.programForms {
		if pf.ProgramID == programID {
			cp := *pf
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetSubmission(_ context.Context, userID, programFormID string) (*models.FormSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.submissions[pairKey(userID, programFormID)]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) CreateSubmission(_ context.Context, sub *models.FormSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sub.UserID, sub.ProgramFormID)
	if _, ok := s.submissions[key]; ok {
		return ErrDuplicate
	}
	cp := *sub
	s.submissions[key] = &cp
	return nil
}

func (s *memStore) SealSubmission(_ context.Context, sub *models.FormSubmission, answers []*models.FormAnswer) error {
	if s.sealHook != nil {
		s.sealHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sub.UserID, sub.ProgramFormID)
	if cur, ok := s.submissions[key]; ok {
		if cur.CompletedAt != nil {
			return ErrSealed
		}
		sub.ID = cur.ID
	}
	cp := *sub
	s.submissions[key] = &cp
	stored := make([]*models.FormAnswer, 0, len(answers))
	for _, a := range answers {
		ac := *a
		ac.SubmissionID = sub.ID
		stored = append(stored, &ac)
	}
	s.answers[sub.ID] = stored
	return nil
}

func (s *memStore) ListAnswers(_ context.Context, submissionID string) ([]*models.FormAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.FormAnswer(nil), s.answers[submissionID]...), nil
}

func (s *memStore) ListSubmissions(_ context.Context, programFormID string) ([]*models.FormSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.FormSubmission{}
	for _, sub := range s.submissions {
		if sub.ProgramFormID == programFormID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListAnswersByProgramForm(_ context.Context, programFormID string) ([]*models.FormAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.FormAnswer
	for _, sub := range s.submissions {
		if sub.ProgramFormID == programFormID {
			out = append(out, s.answers[sub.ID]...)
		}
	}
	return out, nil
}

func (s *memStore) FindProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) InsertProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.profiles {
		if other.Email == p.Email {
			return ErrDuplicate
		}
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *memStore) ListProfiles(_ context.Context) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Profile{}
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) ListProfilesByID(_ context.Context, ids []string) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Profile{}
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// seqIDs returns an id generator yielding prefix1, prefix2, ...
func seqIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}
