package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/survey-board/app"
	"github.com/mbolis/survey-board/httpx"
	"github.com/mbolis/survey-board/log"
	"github.com/mbolis/survey-board/model"
	"github.com/mbolis/survey-board/survey"
)

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, _ := httpx.Owner(r.Context())

		page := queryInt(r, "page", 1)
		perPage := queryInt(r, "per_page", 15)
		if perPage > 100 {
			perPage = 100
		}

		p, err := app.Surveys.ListOwned(r.Context(), ownerID, page, perPage)
		if err != nil {
			httpx.WriteError(w, r, "list_surveys", err)
			return
		}

		res := surveyPage{
			Data: make([]surveyResource, len(p.Surveys)),
			Meta: pageMeta{
				CurrentPage: p.Page,
				PerPage:     p.PerPage,
				Total:       p.Total,
				LastPage:    p.LastPage,
			},
		}
		for i, s := range p.Surveys {
			res.Data[i] = newSurveyResource(app, s)
		}
		render.JSON(w, r, res)
	}
}

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, _ := httpx.Owner(r.Context())

		in := survey.SurveyInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		s, err := app.Surveys.Create(r.Context(), ownerID, in)
		if err != nil {
			httpx.WriteError(w, r, "create_survey", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, newSurveyResource(app, s))
	}
}

func GetSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSurvey(app, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, newSurveyResource(app, s))
	}
}

func UpdateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSurvey(app, w, r)
		if !ok {
			return
		}

		in := survey.SurveyInput{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		s, err = app.Surveys.Update(r.Context(), s, in)
		if err != nil {
			httpx.WriteError(w, r, "update_survey", err)
			return
		}

		render.JSON(w, r, newSurveyResource(app, s))
	}
}

func DeleteSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSurvey(app, w, r)
		if !ok {
			return
		}

		if err := app.Surveys.Delete(r.Context(), s); err != nil {
			httpx.WriteError(w, r, "delete_survey", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ownedSurvey loads the {id} survey for the requester, writing the error
// response itself when that fails.
func ownedSurvey(app app.App, w http.ResponseWriter, r *http.Request) (model.Survey, bool) {
	ownerID, _ := httpx.Owner(r.Context())

	s, err := app.Surveys.GetOwned(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		httpx.WriteError(w, r, "get_survey", err)
		return s, false
	}
	return s, true
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}
