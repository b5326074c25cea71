package routes

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/survey-board/app"
	"github.com/mbolis/survey-board/httpx"
)

// Dashboard returns the owner's overview, or the summary of a single survey
// when survey_id is given.
func Dashboard(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, _ := httpx.Owner(r.Context())

		if id := r.URL.Query().Get("survey_id"); id != "" {
			s, err := app.Surveys.GetOwned(r.Context(), id, ownerID)
			if err != nil {
				httpx.WriteError(w, r, "dashboard.get_survey", err)
				return
			}
			summary, err := app.Surveys.Aggregate(r.Context(), s)
			if err != nil {
				httpx.WriteError(w, r, "dashboard.aggregate", err)
				return
			}
			render.JSON(w, r, summary)
			return
		}

		dash, err := app.Surveys.Dashboard(r.Context(), ownerID)
		if err != nil {
			httpx.WriteError(w, r, "dashboard", err)
			return
		}
		render.JSON(w, r, dash)
	}
}
