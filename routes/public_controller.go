package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/survey-board/app"
	"github.com/mbolis/survey-board/httpx"
	"github.com/mbolis/survey-board/log"
)

func GetSurveyBySlug(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := app.Surveys.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			httpx.WriteError(w, r, "get_survey_by_slug", err)
			return
		}
		render.JSON(w, r, newPublicSurveyResource(app, s))
	}
}

type answerRequest struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

type answerResponse struct {
	ID string `json:"id"`
}

// SubmitAnswer stores one response for the published survey whose slug is
// in the path.
func SubmitAnswer(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := answerRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if req.Answers == nil {
			req.Answers = map[string]json.RawMessage{}
		}

		id, err := app.Surveys.Submit(r.Context(), chi.URLParam(r, "id"), req.Answers)
		if err != nil {
			httpx.WriteError(w, r, "submit_answer", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, answerResponse{ID: id})
	}
}
