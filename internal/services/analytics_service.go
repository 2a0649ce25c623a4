package services

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/silencie/silencie/internal/models"
)

type AnalyticsStore interface {
	GetProgramForm(ctx context.Context, id string) (*models.ProgramForm, error)
	LoadTemplateRows(ctx context.Context, templateID string) (*TemplateRows, error)
	CountEnrollments(ctx context.Context, programID string) (int, error)
	// ListSubmissions returns the program form's submissions, most recently
	// completed first and in-progress ones last.
	ListSubmissions(ctx context.Context, programFormID string) ([]*models.FormSubmission, error)
	ListAnswersByProgramForm(ctx context.Context, programFormID string) ([]*models.FormAnswer, error)
	ListProfilesByID(ctx context.Context, ids []string) ([]*models.Profile, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

type SubmissionRow struct {
	SubmissionID string     `json:"submission_id"`
	UserID       string     `json:"user_id"`
	Email        string     `json:"email,omitempty"`
	FullName     string     `json:"full_name,omitempty"`
	NoiseScore   float64    `json:"noise_score"`
	PowerScore   float64    `json:"power_score"`
	NoiseBand    NoiseBand  `json:"noise_band"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type SubmissionSummary struct {
	ProgramFormID string            `json:"program_form_id"`
	TemplateID    string            `json:"form_template_id"`
	Enrolled      int               `json:"enrolled"`
	Started       int               `json:"started"`
	Completed     int               `json:"completed"`
	AverageNoise  float64           `json:"average_noise"`
	AveragePower  float64           `json:"average_power"`
	Bands         map[NoiseBand]int `json:"bands"`
	// Alpha is Cronbach's alpha over the noise items, computed from the N
	// completed submissions that answered all of them.
	Alpha       float64         `json:"alpha"`
	N           int             `json:"n"`
	Submissions []SubmissionRow `json:"submissions"`
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Summary aggregates the completed submissions of a program form.
func (s *AnalyticsService) Summary(ctx context.Context, programFormID string) (*SubmissionSummary, error) {
	pf, err := s.store.GetProgramForm(ctx, programFormID)
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, NewNotFoundError("program form not found")
	}
	var (
		enrolled int
		subs     []*models.FormSubmission
		tplRows  *TemplateRows
		answers  []*models.FormAnswer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		enrolled, err = s.store.CountEnrollments(gctx, pf.ProgramID)
		return err
	})
	g.Go(func() (err error) {
		subs, err = s.store.ListSubmissions(gctx, programFormID)
		return err
	})
	g.Go(func() (err error) {
		tplRows, err = s.store.LoadTemplateRows(gctx, pf.FormTemplateID)
		return err
	})
	g.Go(func() (err error) {
		answers, err = s.store.ListAnswersByProgramForm(gctx, programFormID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	completed := completedOnly(subs)
	rows, err := s.submissionRows(ctx, completed)
	if err != nil {
		return nil, err
	}

	sum := &SubmissionSummary{
		ProgramFormID: programFormID,
		TemplateID:    pf.FormTemplateID,
		Enrolled:      enrolled,
		Started:       len(subs),
		Completed:     len(completed),
		Bands:         map[NoiseBand]int{},
		Submissions:   rows,
	}
	if len(rows) > 0 {
		var noise, power float64
		for _, r := range rows {
			noise += r.NoiseScore
			power += r.PowerScore
			sum.Bands[r.NoiseBand]++
		}
		sum.AverageNoise = round2(noise / float64(len(rows)))
		sum.AveragePower = round2(power / float64(len(rows)))
	}

	if tplRows != nil && tplRows.Template != nil {
		items := noiseItems(Materialize(*tplRows).Questions())
		matrix, n := buildAlphaMatrix(items, completed, answers)
		sum.Alpha = CronbachAlpha(matrix)
		sum.N = n
	}
	return sum, nil
}

func (s *AnalyticsService) submissionRows(ctx context.Context, subs []*models.FormSubmission) ([]SubmissionRow, error) {
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.UserID)
	}
	profiles, err := s.store.ListProfilesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	rows := make([]SubmissionRow, 0, len(subs))
	for _, sub := range subs {
		r := SubmissionRow{SubmissionID: sub.ID, UserID: sub.UserID, CompletedAt: sub.CompletedAt}
		if sub.NoiseScore != nil {
			r.NoiseScore = *sub.NoiseScore
		}
		if sub.PowerScore != nil {
			r.PowerScore = *sub.PowerScore
		}
		r.NoiseBand = BandFor(r.NoiseScore)
		if p := byID[sub.UserID]; p != nil {
			r.Email, r.FullName = p.Email, p.FullName
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func completedOnly(subs []*models.FormSubmission) []*models.FormSubmission {
	out := make([]*models.FormSubmission, 0, len(subs))
	for _, sub := range subs {
		if sub.CompletedAt != nil {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
	return out
}

func noiseItems(questions []*Question) []*Question {
	out := make([]*Question, 0, len(questions))
	for _, q := range questions {
		if b, ok := q.Body.(ScaleBody); ok && b.Category == CategoryNoise {
			out = append(out, q)
		}
	}
	return out
}

// buildAlphaMatrix lays out one row per completed submission that answered
// every item, with inverted items reflected as the noise score does.
func buildAlphaMatrix(items []*Question, subs []*models.FormSubmission, answers []*models.FormAnswer) ([][]float64, int) {
	completed := make(map[string]bool, len(subs))
	for _, sub := range subs {
		completed[sub.ID] = true
	}
	mp := map[string]map[string]float64{}
	for _, a := range answers {
		if !completed[a.SubmissionID] || a.AnswerScale == nil {
			continue
		}
		if mp[a.SubmissionID] == nil {
			mp[a.SubmissionID] = map[string]float64{}
		}
		mp[a.SubmissionID][a.QuestionID] = float64(*a.AnswerScale)
	}
	subIDs := make([]string, 0, len(mp))
	for id := range mp {
		subIDs = append(subIDs, id)
	}
	sort.Strings(subIDs)

	matrix := make([][]float64, 0, len(mp))
	for _, sid := range subIDs {
		m := mp[sid]
		row := make([]float64, 0, len(items))
		complete := true
		for _, q := range items {
			v, ok := m[q.ID]
			if !ok {
				complete = false
				break
			}
			if q.Body.(ScaleBody).Inverted {
				v = invertedBase - v
			}
			row = append(row, v)
		}
		if complete {
			matrix = append(matrix, row)
		}
	}
	return matrix, len(matrix)
}
