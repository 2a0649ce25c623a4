package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silencie/silencie/internal/middleware"
	"github.com/silencie/silencie/internal/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/me
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := rt.svc.Auth.Me(r.Context(), identity(r).UserID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/me/forms
func (rt *Router) handleMyForms(w http.ResponseWriter, r *http.Request) {
	forms, err := rt.svc.Programs.MemberForms(r.Context(), identity(r).UserID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": forms})
}

// GET /api/forms/{programFormID}
func (rt *Router) handleOpenForm(w http.ResponseWriter, r *http.Request) {
	session, err := rt.svc.Submissions.Open(r.Context(), identity(r).UserID, chi.URLParam(r, "programFormID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/forms/{programFormID}/check
func (rt *Router) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	var a services.Answer
	if err := decodeJSON(w, r, &a); err != nil {
		rt.writeError(w, r, err)
		return
	}
	valid, err := rt.svc.Submissions.CheckAnswer(r.Context(), identity(r).UserID, chi.URLParam(r, "programFormID"), a)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question_id": a.QuestionID, "valid": valid})
}

type submitRequest struct {
	Answers []services.Answer `json:"answers"`
}

// POST /api/forms/{programFormID}/submit
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.svc.Submissions.Submit(r.Context(), identity(r).UserID, chi.URLParam(r, "programFormID"), req.Answers)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/forms/{programFormID}/result
func (rt *Router) handleResult(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	view, err := rt.svc.Submissions.Result(r.Context(), identity(r).UserID, chi.URLParam(r, "programFormID"), locale)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
