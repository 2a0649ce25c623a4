package services

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/silencie/silencie/internal/models"
)

func sampleRows() TemplateRows {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return TemplateRows{
		Template: &models.FormTemplate{ID: "tpl", Name: "Diagnóstico", IsActive: true},
		Sections: []*models.FormSection{
			{ID: "s2", FormTemplateID: "tpl", Title: "Second", OrderIndex: 1, CreatedAt: t0},
			{ID: "s1", FormTemplateID: "tpl", Title: "First", OrderIndex: 0, CreatedAt: t0},
			{ID: "s3", FormTemplateID: "tpl", Title: "Tie later", OrderIndex: 1, CreatedAt: t0.Add(time.Minute)},
			{ID: "other", FormTemplateID: "another", Title: "Foreign", OrderIndex: 0, CreatedAt: t0},
		},
		Questions: []*models.FormQuestion{
			{ID: "q3", SectionID: "s1", QuestionText: "c", QuestionType: "text", OrderIndex: 5, CreatedAt: t0},
			{ID: "q1", SectionID: "s1", QuestionText: "a", QuestionType: "scale", OrderIndex: 0, ScoringCategory: "ruido_mental", CreatedAt: t0},
			{ID: "q2", SectionID: "s1", QuestionText: "b", QuestionType: "single_choice", OrderIndex: 2, CreatedAt: t0},
			{ID: "q4", SectionID: "s2", QuestionText: "d", QuestionType: "bogus", OrderIndex: 0, CreatedAt: t0},
			{ID: "q5", SectionID: "missing", QuestionText: "e", QuestionType: "text", CreatedAt: t0},
		},
		Options: []*models.FormOption{
			{ID: "o2", QuestionID: "q2", OptionText: "two", OrderIndex: 1, CreatedAt: t0},
			{ID: "o1", QuestionID: "q2", OptionText: "one", OrderIndex: 0, CreatedAt: t0},
		},
	}
}

func TestMaterialize_Orders(t *testing.T) {
	tpl := Materialize(sampleRows())
	if tpl == nil {
		t.Fatalf("expected template")
	}
	var secIDs []string
	for _, s := range tpl.Sections {
		secIDs = append(secIDs, s.ID)
	}
	if !reflect.DeepEqual(secIDs, []string{"s1", "s2", "s3"}) {
		t.Fatalf("unexpected section order %v", secIDs)
	}
	var qIDs []string
	for _, q := range tpl.Sections[0].Questions {
		qIDs = append(qIDs, q.ID)
	}
	if !reflect.DeepEqual(qIDs, []string{"q1", "q2", "q3"}) {
		t.Fatalf("unexpected question order %v", qIDs)
	}
	opts := tpl.Sections[0].Questions[1].Options()
	if len(opts) != 2 || opts[0].ID != "o1" || opts[1].ID != "o2" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if len(tpl.Sections[1].Questions) != 0 {
		t.Fatalf("unknown question type should be dropped")
	}
	if _, ok := tpl.Question("q5"); ok {
		t.Fatalf("question with missing section should be dropped")
	}
	body, ok := tpl.Sections[0].Questions[0].Body.(ScaleBody)
	if !ok || body.Min != 0 || body.Max != 10 || body.Category != CategoryNoise {
		t.Fatalf("scale defaults not applied: %+v", tpl.Sections[0].Questions[0].Body)
	}
}

func TestMaterialize_Idempotent(t *testing.T) {
	rows := sampleRows()
	a := Materialize(rows)
	b := Materialize(rows)
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("materialize is not idempotent:\n%s\n%s", ja, jb)
	}
	if rows.Sections[0].ID != "s2" || rows.Options[0].ID != "o2" {
		t.Fatalf("input rows were reordered")
	}
}

func TestMaterialize_NilTemplate(t *testing.T) {
	if Materialize(TemplateRows{}) != nil {
		t.Fatalf("expected nil for missing template")
	}
}

func TestQuestionJSON_Flat(t *testing.T) {
	q := Question{ID: "q", Text: "How busy?", Required: true, Body: MultipleChoiceBody{Options: choiceOpts("a"), MaxSelections: 2}}
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["question_type"] != "multiple_choice" || got["max_selections"] != float64(2) {
		t.Fatalf("unexpected json %s", data)
	}
	if _, ok := got["scale_min"]; ok {
		t.Fatalf("choice question must not carry scale bounds: %s", data)
	}
}

func TestQuestionRowRoundTrip(t *testing.T) {
	q := &Question{ID: "q", SectionID: "s", Text: "Noise", Required: true, OrderIndex: 3, Body: ScaleBody{Min: 1, Max: 5, Inverted: true, Category: CategoryNoise}}
	row, opts := QuestionRow(q)
	if len(opts) != 0 {
		t.Fatalf("scale question has no options")
	}
	back, err := QuestionFromRow(row, nil)
	if err != nil {
		t.Fatalf("QuestionFromRow: %v", err)
	}
	if !reflect.DeepEqual(back, q) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, q)
	}
}
