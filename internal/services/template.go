package services

import (
	"sort"
	"time"

	"github.com/silencie/silencie/internal/models"
)

// TemplateRows is the flat row set a template is stored as.
type TemplateRows struct {
	Template  *models.FormTemplate
	Sections  []*models.FormSection
	Questions []*models.FormQuestion
	Options   []*models.FormOption
}

type Template struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	IntroTitle       string     `json:"intro_title,omitempty"`
	IntroDescription string     `json:"intro_description,omitempty"`
	IsActive         bool       `json:"is_active"`
	Sections         []*Section `json:"sections"`
}

type Section struct {
	ID          string      `json:"id"`
	TemplateID  string      `json:"form_template_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	OrderIndex  int         `json:"order_index"`
	Questions   []*Question `json:"questions"`
}

// Questions returns every question of the template in display order.
func (t *Template) Questions() []*Question {
	var out []*Question
	for _, s := range t.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// Question looks a question up by id.
func (t *Template) Question(id string) (*Question, bool) {
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return nil, false
}

type orderKey struct {
	order   int
	created time.Time
	id      string
}

func (a orderKey) less(b orderKey) bool {
	if a.order != b.order {
		return a.order < b.order
	}
	if !a.created.Equal(b.created) {
		return a.created.Before(b.created)
	}
	return a.id < b.id
}

// Materialize builds the ordered template tree from its rows. Sections,
// questions and options are sorted by order_index, ties by creation time
// then id. Rows whose parent is missing, and questions of an unknown type,
// are dropped. The input is not modified.
func Materialize(rows TemplateRows) *Template {
	if rows.Template == nil {
		return nil
	}
	tpl := &Template{
		ID:               rows.Template.ID,
		Name:             rows.Template.Name,
		Description:      rows.Template.Description,
		IntroTitle:       rows.Template.IntroTitle,
		IntroDescription: rows.Template.IntroDescription,
		IsActive:         rows.Template.IsActive,
		Sections:         []*Section{},
	}

	optsByQuestion := map[string][]*models.FormOption{}
	for _, o := range rows.Options {
		optsByQuestion[o.QuestionID] = append(optsByQuestion[o.QuestionID], o)
	}
	for _, opts := range optsByQuestion {
		sort.SliceStable(opts, func(i, j int) bool {
			return orderKey{opts[i].OrderIndex, opts[i].CreatedAt, opts[i].ID}.less(orderKey{opts[j].OrderIndex, opts[j].CreatedAt, opts[j].ID})
		})
	}

	questionsBySection := map[string][]*models.FormQuestion{}
	for _, q := range rows.Questions {
		questionsBySection[q.SectionID] = append(questionsBySection[q.SectionID], q)
	}

	sections := make([]*models.FormSection, 0, len(rows.Sections))
	for _, s := range rows.Sections {
		if s.FormTemplateID == tpl.ID {
			sections = append(sections, s)
		}
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return orderKey{sections[i].OrderIndex, sections[i].CreatedAt, sections[i].ID}.less(orderKey{sections[j].OrderIndex, sections[j].CreatedAt, sections[j].ID})
	})

	for _, s := range sections {
		qs := questionsBySection[s.ID]
		sort.SliceStable(qs, func(i, j int) bool {
			return orderKey{qs[i].OrderIndex, qs[i].CreatedAt, qs[i].ID}.less(orderKey{qs[j].OrderIndex, qs[j].CreatedAt, qs[j].ID})
		})
		sec := &Section{
			ID:          s.ID,
			TemplateID:  s.FormTemplateID,
			Title:       s.Title,
			Description: s.Description,
			OrderIndex:  s.OrderIndex,
			Questions:   []*Question{},
		}
		for _, row := range qs {
			q, err := QuestionFromRow(row, optsByQuestion[row.ID])
			if err != nil {
				continue
			}
			sec.Questions = append(sec.Questions, q)
		}
		tpl.Sections = append(tpl.Sections, sec)
	}
	return tpl
}
