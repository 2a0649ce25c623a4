package utils

// Server-side messages: result interpretation and user-facing errors.

// SupportedLocales lists the locales with a translation table.
var SupportedLocales = []string{"pt", "en"}

var translations = map[string]map[string]string{
	"en": {
		"health.ok": "ok",

		"noise.calm":      "Calmer, well-regulated mind",
		"noise.moderate":  "Moderate noise, with good resources",
		"noise.high":      "High noise, attention and energy drained",
		"noise.overload":  "Overload, autopilot taking over",
		"noise.max_alert": "Maximum alert, inner reorganization is urgent",

		"recommendation.potent_dysregulated": "You are potent but dysregulated: Silencie will organize your energy and focus.",
		"recommendation.pause_and_regulate":  "With high Noise, your priority is to pause, regulate and create space between stimulus and response.",
		"recommendation.daily_consistency":   "With low Power, your priority is small daily consistency, even with an imperfect mind.",
		"recommendation.fertile_ground":      "You are on fertile ground: Silencie deepens presence and refinement.",

		"form.not_enrolled":      "You are not enrolled in this program",
		"form.deadline_expired":  "The deadline for this form has passed",
		"form.already_submitted": "You have already submitted this form",
		"form.not_completed":     "Form not completed yet",
		"form.not_found":         "Form not found",
		"form.required_missing":  "Please answer all required questions",
		"program_form.duplicate": "This form is already attached to this program",
		"enrollment.duplicate":   "User is already enrolled in this program",
		"auth.unauthorized":      "Unauthorized",
		"auth.forbidden":         "Forbidden",
		"auth.rate_limited":      "Too many attempts, try again in a minute",
	},
	"pt": {
		"health.ok": "ok",

		"noise.calm":      "Mente mais calma e regulada",
		"noise.moderate":  "Ruído moderado, com bons recursos",
		"noise.high":      "Ruído alto, atenção e energia bem drenadas",
		"noise.overload":  "Sobrecarga, piloto automático dominando",
		"noise.max_alert": "Alerta máximo, urgência de reorganização interna",

		"recommendation.potent_dysregulated": "Você está potente mas desregulado: o Silencie vai organizar energia e foco.",
		"recommendation.pause_and_regulate":  "Se o Ruído estiver alto, sua prioridade é: pausar, regular e criar espaço entre estímulo e resposta.",
		"recommendation.daily_consistency":   "Se a Potência estiver baixa, sua prioridade é: consistência pequena e diária, mesmo com mente imperfeita.",
		"recommendation.fertile_ground":      "Você está em terreno fértil: o Silencie aprofunda presença e refinamento.",

		"form.not_enrolled":      "Você não está matriculado neste programa",
		"form.deadline_expired":  "O prazo para preenchimento deste formulário expirou",
		"form.already_submitted": "Você já preencheu este formulário",
		"form.not_completed":     "Formulário ainda não foi concluído",
		"form.not_found":         "Formulário não encontrado",
		"form.required_missing":  "Por favor, responda todas as perguntas obrigatórias",
		"program_form.duplicate": "Este formulário já está associado a este programa",
		"enrollment.duplicate":   "Este usuário já está matriculado neste programa",
		"auth.unauthorized":      "Não autorizado",
		"auth.forbidden":         "Acesso negado",
		"auth.rate_limited":      "Muitas tentativas, tente novamente em um minuto",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
