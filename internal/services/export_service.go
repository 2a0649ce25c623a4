package services

import (
	"context"
	"fmt"
	"time"
)

type ExportParams struct {
	ProgramFormID string
	Format        string
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders sealed submissions as CSV. It reads through the
// analytics store.
type ExportService struct {
	store AnalyticsStore
}

func NewExportService(store AnalyticsStore) *ExportService {
	return &ExportService{store: store}
}

// ExportCSV renders the program form's sealed submissions. Format "wide"
// (default) gives one row per submission, "long" one row per answer.
func (s *ExportService) ExportCSV(ctx context.Context, params ExportParams) (*ExportResult, error) {
	if params.ProgramFormID == "" {
		return nil, NewInvalidError("program_form_id required")
	}
	format := params.Format
	if format == "" {
		format = "wide"
	}
	if format != "wide" && format != "long" {
		return nil, NewInvalidError("unsupported format")
	}
	pf, err := s.store.GetProgramForm(ctx, params.ProgramFormID)
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, NewNotFoundError("program form not found")
	}
	tplRows, err := s.store.LoadTemplateRows(ctx, pf.FormTemplateID)
	if err != nil {
		return nil, err
	}
	if tplRows == nil || tplRows.Template == nil {
		return nil, NewNotFoundError("template not found")
	}
	tpl := Materialize(*tplRows)

	subs, err := s.store.ListSubmissions(ctx, pf.ID)
	if err != nil {
		return nil, err
	}
	subs = completedOnly(subs)
	answers, err := s.store.ListAnswersByProgramForm(ctx, pf.ID)
	if err != nil {
		return nil, err
	}
	bySub := map[string][]Answer{}
	for _, a := range answers {
		bySub[a.SubmissionID] = append(bySub[a.SubmissionID], AnswerFromRow(a))
	}

	var data []byte
	if format == "long" {
		rows := make([]LongRow, 0, len(answers))
		for _, sub := range subs {
			for _, a := range bySub[sub.ID] {
				q, _ := tpl.Question(a.QuestionID)
				rows = append(rows, LongRow{
					SubmissionID: sub.ID,
					UserID:       sub.UserID,
					QuestionID:   a.QuestionID,
					QuestionType: string(q.Type()),
					Value:        renderAnswer(q, a),
					CompletedAt:  sub.CompletedAt.UTC().Format(time.RFC3339),
				})
			}
		}
		data, err = ExportLongCSV(rows)
	} else {
		subRows, rerr := (&AnalyticsService{store: s.store}).submissionRows(ctx, subs)
		if rerr != nil {
			return nil, rerr
		}
		rows := make([]WideRow, 0, len(subRows))
		for _, sr := range subRows {
			cells := map[string]string{}
			for _, a := range bySub[sr.SubmissionID] {
				q, _ := tpl.Question(a.QuestionID)
				cells[a.QuestionID] = renderAnswer(q, a)
			}
			rows = append(rows, WideRow{
				SubmissionID: sr.SubmissionID,
				UserID:       sr.UserID,
				Email:        sr.Email,
				CompletedAt:  sr.CompletedAt.UTC().Format(time.RFC3339),
				Noise:        sr.NoiseScore,
				Power:        sr.PowerScore,
				Band:         sr.NoiseBand,
				Answers:      cells,
			})
		}
		data, err = ExportWideCSV(tpl.Questions(), rows)
	}
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("submissions_%s_%s.csv", pf.ID, format),
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
	}, nil
}
