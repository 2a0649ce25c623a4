package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/silencie/silencie/internal/services"
)

// bind decodes the body into v and answers 400 itself when that fails.
func (rt *Router) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		rt.writeError(w, r, err)
		return false
	}
	return true
}

// reply writes v with status, or the error when err is set.
func (rt *Router) reply(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, status, v)
}

func id(r *http.Request) string { return chi.URLParam(r, "id") }

// Templates

func (rt *Router) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Templates.ListTemplates(r.Context())
	rt.reply(w, r, http.StatusOK, map[string]any{"templates": list}, err)
}

func (rt *Router) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in services.TemplateInput
	if !rt.bind(w, r, &in) {
		return
	}
	t, err := rt.svc.Templates.CreateTemplate(r.Context(), in)
	rt.reply(w, r, http.StatusCreated, t, err)
}

// POST /api/admin/templates/import takes a YAML template document.
func (rt *Router) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		rt.writeError(w, r, services.NewInvalidError("read body: "+err.Error()))
		return
	}
	spec, err := services.ParseTemplateSpec(data)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	t, err := rt.svc.Templates.Import(r.Context(), spec)
	rt.reply(w, r, http.StatusCreated, t, err)
}

func (rt *Router) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := rt.svc.Templates.GetTemplate(r.Context(), id(r))
	rt.reply(w, r, http.StatusOK, t, err)
}

func (rt *Router) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var p services.TemplatePatch
	if !rt.bind(w, r, &p) {
		return
	}
	t, err := rt.svc.Templates.UpdateTemplate(r.Context(), id(r), p)
	rt.reply(w, r, http.StatusOK, t, err)
}

func (rt *Router) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	rt.reply(w, r, 0, nil, rt.svc.Templates.DeleteTemplate(r.Context(), id(r)))
}

func (rt *Router) handleAddSection(w http.ResponseWriter, r *http.Request) {
	var in services.SectionInput
	if !rt.bind(w, r, &in) {
		return
	}
	sec, err := rt.svc.Templates.AddSection(r.Context(), id(r), in)
	rt.reply(w, r, http.StatusCreated, sec, err)
}

// Sections and questions

func (rt *Router) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	var p services.SectionPatch
	if !rt.bind(w, r, &p) {
		return
	}
	sec, err := rt.svc.Templates.UpdateSection(r.Context(), id(r), p)
	rt.reply(w, r, http.StatusOK, sec, err)
}

func (rt *Router) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	rt.reply(w, r, 0, nil, rt.svc.Templates.DeleteSection(r.Context(), id(r)))
}

func (rt *Router) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var in services.QuestionInput
	if !rt.bind(w, r, &in) {
		return
	}
	q, err := rt.svc.Templates.AddQuestion(r.Context(), id(r), in)
	rt.reply(w, r, http.StatusCreated, q, err)
}

func (rt *Router) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var in services.QuestionInput
	if !rt.bind(w, r, &in) {
		return
	}
	q, err := rt.svc.Templates.UpdateQuestion(r.Context(), id(r), in)
	rt.reply(w, r, http.StatusOK, q, err)
}

func (rt *Router) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	rt.reply(w, r, 0, nil, rt.svc.Templates.DeleteQuestion(r.Context(), id(r)))
}

type optionsRequest struct {
	Options []services.OptionInput `json:"options"`
}

func (rt *Router) handleReplaceOptions(w http.ResponseWriter, r *http.Request) {
	var req optionsRequest
	if !rt.bind(w, r, &req) {
		return
	}
	q, err := rt.svc.Templates.UpdateQuestionOptions(r.Context(), id(r), req.Options)
	rt.reply(w, r, http.StatusOK, q, err)
}

// Programs

func (rt *Router) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Programs.ListPrograms(r.Context())
	rt.reply(w, r, http.StatusOK, map[string]any{"programs": list}, err)
}

func (rt *Router) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var in services.ProgramInput
	if !rt.bind(w, r, &in) {
		return
	}
	p, err := rt.svc.Programs.CreateProgram(r.Context(), in)
	rt.reply(w, r, http.StatusCreated, p, err)
}

func (rt *Router) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := rt.svc.Programs.GetProgram(r.Context(), id(r))
	rt.reply(w, r, http.StatusOK, p, err)
}

func (rt *Router) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	rt.reply(w, r, 0, nil, rt.svc.Programs.DeleteProgram(r.Context(), id(r)))
}

func (rt *Router) handleAddPhase(w http.ResponseWriter, r *http.Request) {
	var in services.PhaseInput
	if !rt.bind(w, r, &in) {
		return
	}
	ph, err := rt.svc.Programs.AddPhase(r.Context(), id(r), in)
	rt.reply(w, r, http.StatusCreated, ph, err)
}

func (rt *Router) handleUpdatePhase(w http.ResponseWriter, r *http.Request) {
	var p services.PhasePatch
	if !rt.bind(w, r, &p) {
		return
	}
	ph, err := rt.svc.Programs.UpdatePhase(r.Context(), id(r), p)
	rt.reply(w, r, http.StatusOK, ph, err)
}

func (rt *Router) handleDeletePhase(w http.ResponseWriter, r *http.Request) {
	rt.reply(w, r, 0, nil, rt.svc.Programs.DeletePhase(r.Context(), id(r)))
}

// Enrollments

func (rt *Router) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Programs.ListEnrollments(r.Context(), id(r))
	rt.reply(w, r, http.StatusOK, map[string]any{"enrollments": list}, err)
}

type enrollRequest struct {
	UserID string `json:"user_id"`
}

func (rt *Router) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !rt.bind(w, r, &req) {
		return
	}
	e, err := rt.svc.Programs.Enroll(r.Context(), id(r), req.UserID)
	rt.reply(w, r, http.StatusCreated, e, err)
}

func (rt *Router) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	rt.reply(w, r, 0, nil, rt.svc.Programs.Unenroll(r.Context(), id(r), chi.URLParam(r, "userID")))
}

// Program forms

func (rt *Router) handleListProgramForms(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Programs.ListProgramForms(r.Context(), id(r))
	rt.reply(w, r, http.StatusOK, map[string]any{"program_forms": list}, err)
}

func (rt *Router) handleAttachForm(w http.ResponseWriter, r *http.Request) {
	var in services.ProgramFormInput
	if !rt.bind(w, r, &in) {
		return
	}
	pf, err := rt.svc.Programs.AttachForm(r.Context(), id(r), in)
	rt.reply(w, r, http.StatusCreated, pf, err)
}

func (rt *Router) handleUpdateProgramForm(w http.ResponseWriter, r *http.Request) {
	var p services.ProgramFormPatch
	if !rt.bind(w, r, &p) {
		return
	}
	pf, err := rt.svc.Programs.UpdateProgramForm(r.Context(), id(r), p)
	rt.reply(w, r, http.StatusOK, pf, err)
}

func (rt *Router) handleDetachForm(w http.ResponseWriter, r *http.Request) {
	rt.reply(w, r, 0, nil, rt.svc.Programs.DetachForm(r.Context(), id(r)))
}

func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	s, err := rt.svc.Analytics.Summary(r.Context(), id(r))
	rt.reply(w, r, http.StatusOK, s, err)
}

// GET /api/admin/program-forms/{id}/export?format=wide|long
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := rt.svc.Exports.ExportCSV(r.Context(), services.ExportParams{
		ProgramFormID: id(r),
		Format:        r.URL.Query().Get("format"),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// Users

func (rt *Router) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Auth.ListUsers(r.Context())
	rt.reply(w, r, http.StatusOK, map[string]any{"users": list}, err)
}

func (rt *Router) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in services.UserInput
	if !rt.bind(w, r, &in) {
		return
	}
	p, err := rt.svc.Auth.CreateUser(r.Context(), in)
	rt.reply(w, r, http.StatusCreated, p, err)
}
