package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/silencie/silencie/internal/models"
)

type submissionFixture struct {
	store   *memStore
	svc     *SubmissionService
	clock   time.Time
	pfID    string
	noise   []*Question
	power   []*Question
	text    *Question
	choice  *Question
	userID  string
	program string
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()
	tsvc := newTestTemplateService(store)
	tpl, err := tsvc.CreateTemplate(ctx, TemplateInput{Name: "Diagnóstico"})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	sec, _ := tsvc.AddSection(ctx, tpl.ID, SectionInput{Title: "Ruído"})
	f := &submissionFixture{store: store, userID: "u1", program: "prog"}
	for i, inv := range []bool{false, true} {
		q, err := tsvc.AddQuestion(ctx, sec.ID, QuestionInput{QuestionText: "noise " + string(rune('a'+i)), QuestionType: "scale", ScoringCategory: "ruido_mental", IsInverted: boolp(inv)})
		if err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
		f.noise = append(f.noise, q)
	}
	sec2, _ := tsvc.AddSection(ctx, tpl.ID, SectionInput{Title: "Potência"})
	for i := 0; i < 5; i++ {
		q, err := tsvc.AddQuestion(ctx, sec2.ID, QuestionInput{QuestionText: "power " + string(rune('a'+i)), QuestionType: "scale", ScoringCategory: "potencia"})
		if err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
		f.power = append(f.power, q)
	}
	f.text, _ = tsvc.AddQuestion(ctx, sec2.ID, QuestionInput{QuestionText: "Why?", QuestionType: "textarea", IsRequired: boolp(false)})
	f.choice, _ = tsvc.AddQuestion(ctx, sec2.ID, QuestionInput{QuestionText: "Pick", QuestionType: "single_choice", Options: []OptionInput{{Text: "a"}, {Text: "b"}}})

	deadline := time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)
	store.programs[f.program] = &models.Program{ID: f.program, Name: "Silencie 21 dias"}
	store.programForms["pf1"] = &models.ProgramForm{ID: "pf1", ProgramID: f.program, FormTemplateID: tpl.ID, AvailableUntil: &deadline}
	store.enrollments[pairKey(f.userID, f.program)] = &models.Enrollment{ID: "e1", UserID: f.userID, ProgramID: f.program}
	f.pfID = "pf1"

	f.clock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.svc = NewSubmissionService(store, func(locale, key string) string { return locale + ":" + key }, nil)
	f.svc.now = func() time.Time { return f.clock }
	f.svc.idGen = seqIDs("sub")
	return f
}

// fullAnswers answers every required question: noise 4 and 6 (the second
// inverted, so 4), power 8 each and the first option.
func (f *submissionFixture) fullAnswers() []Answer {
	out := []Answer{scaleA(f.noise[0].ID, 4), scaleA(f.noise[1].ID, 6)}
	for _, q := range f.power {
		out = append(out, scaleA(q.ID, 8))
	}
	out = append(out, Answer{QuestionID: f.choice.ID, Options: []string{f.choice.Options()[0].ID}})
	return out
}

func TestSubmission_OpenCreatesInProgress(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Open(ctx, f.userID, f.pfID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sess.Submission == nil || sess.Submission.CompletedAt != nil {
		t.Fatalf("expected in-progress submission, got %+v", sess.Submission)
	}
	if len(sess.Template.Sections) != 2 || len(sess.Template.Questions()) != 9 {
		t.Fatalf("unexpected template in session")
	}
	again, err := f.svc.Open(ctx, f.userID, f.pfID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again.Submission.ID != sess.Submission.ID {
		t.Fatalf("reopening should resume the same submission")
	}
}

func TestSubmission_Eligibility(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Open(ctx, f.userID, "missing"); !IsCode(err, ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.Open(ctx, "stranger", f.pfID); !IsCode(err, ErrorForbidden) {
		t.Fatalf("expected forbidden for non-member, got %v", err)
	}
	if _, err := f.svc.Submit(ctx, "stranger", f.pfID, f.fullAnswers()); !IsCode(err, ErrorForbidden) {
		t.Fatalf("expected forbidden submit for non-member, got %v", err)
	}

	f.clock = time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)
	if _, err := f.svc.Open(ctx, f.userID, f.pfID); err != nil {
		t.Fatalf("open exactly at the deadline should pass: %v", err)
	}
	f.clock = f.clock.Add(time.Second)
	if _, err := f.svc.Open(ctx, f.userID, f.pfID); !IsCode(err, ErrorDeadlineExpired) {
		t.Fatalf("expected deadline expired, got %v", err)
	}
}

func TestSubmission_DeadlinePassesWhileInProgress(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Open(ctx, f.userID, f.pfID); err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.clock = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.Submit(ctx, f.userID, f.pfID, f.fullAnswers())
	if !IsCode(err, ErrorDeadlineExpired) {
		t.Fatalf("expected deadline expired at submit, got %v", err)
	}
	sub, _ := f.store.GetSubmission(ctx, f.userID, f.pfID)
	if sub.CompletedAt != nil {
		t.Fatalf("submission must stay in progress")
	}
	se, _ := AsServiceError(err)
	if se.Key != "form.deadline_expired" {
		t.Fatalf("unexpected message key %q", se.Key)
	}
}

func TestSubmission_SubmitScoresAndSeals(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Open(ctx, f.userID, f.pfID); err != nil {
		t.Fatalf("Open: %v", err)
	}
	answers := append(f.fullAnswers(), scaleA("deleted-question", 10))
	res, err := f.svc.Submit(ctx, f.userID, f.pfID, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Scores.Noise != 40 || res.Scores.Power != 80 {
		t.Fatalf("unexpected scores %+v", res.Scores)
	}
	if res.Submission.CompletedAt == nil || !res.Submission.CompletedAt.Equal(f.clock) {
		t.Fatalf("completed_at not stamped: %+v", res.Submission)
	}
	stored, _ := f.store.ListAnswers(ctx, res.Submission.ID)
	if len(stored) != 8 {
		t.Fatalf("want 8 stored answers (orphan dropped), got %d", len(stored))
	}
	for _, a := range stored {
		if a.QuestionID == "deleted-question" {
			t.Fatalf("orphan answer stored")
		}
	}
}

func TestSubmission_RejectsIncomplete(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	answers := f.fullAnswers()
	answers[len(answers)-1].Options = []string{"x", "y"}
	_, err := f.svc.Submit(ctx, f.userID, f.pfID, answers)
	if !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid for two options on single choice, got %v", err)
	}
	sub, _ := f.store.GetSubmission(ctx, f.userID, f.pfID)
	if sub != nil {
		t.Fatalf("nothing should be stored on a rejected submit")
	}
}

func TestSubmission_RejectsForeignOptionIDs(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	answers := f.fullAnswers()
	answers[len(answers)-1].Options = []string{"not-an-option-of-this-question"}
	if _, err := f.svc.Submit(ctx, f.userID, f.pfID, answers); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid for an unknown option id, got %v", err)
	}
	if sub, _ := f.store.GetSubmission(ctx, f.userID, f.pfID); sub != nil {
		t.Fatalf("a submission with unknown option ids must not be sealed")
	}
	if _, err := f.svc.Submit(ctx, f.userID, f.pfID, f.fullAnswers()); err != nil {
		t.Fatalf("the member can still submit valid answers: %v", err)
	}
}

func TestSubmission_SubmitTwice(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	first, err := f.svc.Submit(ctx, f.userID, f.pfID, f.fullAnswers())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	other := f.fullAnswers()
	for i := range other {
		if other[i].Scale != nil {
			other[i].Scale = intp(0)
		}
	}
	if _, err := f.svc.Submit(ctx, f.userID, f.pfID, other); !IsCode(err, ErrorAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}
	sub, _ := f.store.GetSubmission(ctx, f.userID, f.pfID)
	if *sub.NoiseScore != first.Scores.Noise || *sub.PowerScore != first.Scores.Power {
		t.Fatalf("sealed scores changed: %+v", sub)
	}
	if _, err := f.svc.Open(ctx, f.userID, f.pfID); !IsCode(err, ErrorAlreadySubmitted) {
		t.Fatalf("expected already submitted on reopen, got %v", err)
	}
	if _, err := f.svc.CheckAnswer(ctx, f.userID, f.pfID, scaleA(f.noise[0].ID, 1)); !IsCode(err, ErrorAlreadySubmitted) {
		t.Fatalf("expected already submitted on check, got %v", err)
	}
}

func TestSubmission_ConcurrentSubmitSealsOnce(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()

	// Both submits pass eligibility before either seals.
	var gate sync.WaitGroup
	gate.Add(2)
	f.store.sealHook = func() {
		gate.Done()
		gate.Wait()
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Submit(ctx, f.userID, f.pfID, f.fullAnswers())
		}(i)
	}
	wg.Wait()

	ok, already := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case IsCode(err, ErrorAlreadySubmitted):
			already++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || already != 1 {
		t.Fatalf("want one success and one already-submitted, got %d/%d", ok, already)
	}
}

func TestSubmission_CheckAnswer(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()
	ok, err := f.svc.CheckAnswer(ctx, f.userID, f.pfID, Answer{QuestionID: f.choice.ID, Options: []string{"a", "b"}})
	if err != nil || ok {
		t.Fatalf("two options on single choice should be invalid: %v %v", ok, err)
	}
	ok, err = f.svc.CheckAnswer(ctx, f.userID, f.pfID, scaleA(f.noise[0].ID, 3))
	if err != nil || !ok {
		t.Fatalf("scale answer should be valid: %v %v", ok, err)
	}
	if _, err := f.svc.CheckAnswer(ctx, f.userID, f.pfID, scaleA("nope", 3)); !IsCode(err, ErrorNotFound) {
		t.Fatalf("expected not found for unknown question, got %v", err)
	}
}

func TestSubmission_Result(t *testing.T) {
	f := newSubmissionFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Result(ctx, f.userID, f.pfID, "pt"); !IsCode(err, ErrorNotFound) {
		t.Fatalf("expected not found before any submission, got %v", err)
	}
	if _, err := f.svc.Open(ctx, f.userID, f.pfID); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.svc.Result(ctx, f.userID, f.pfID, "pt"); !IsCode(err, ErrorInvalid) {
		t.Fatalf("expected not completed, got %v", err)
	}
	if _, err := f.svc.Submit(ctx, f.userID, f.pfID, f.fullAnswers()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Results stay readable after the deadline.
	f.clock = f.clock.AddDate(1, 0, 0)
	view, err := f.svc.Result(ctx, f.userID, f.pfID, "pt")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if view.Interpretation.NoiseBand != BandModerate || view.Interpretation.Recommendation != RecFertileGround {
		t.Fatalf("unexpected interpretation %+v", view.Interpretation)
	}
	if view.Interpretation.NoiseLevel != "pt:noise.moderate" {
		t.Fatalf("interpretation not localized: %q", view.Interpretation.NoiseLevel)
	}
	if len(view.Answers) != 8 || view.Template == nil {
		t.Fatalf("result should carry answers and template")
	}
}
