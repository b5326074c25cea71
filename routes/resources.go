package routes

import (
	"time"

	"github.com/mbolis/survey-board/app"
	"github.com/mbolis/survey-board/model"
)

type surveyResource struct {
	ID          string             `json:"id"`
	OwnerID     string             `json:"owner_id,omitempty"`
	Title       string             `json:"title"`
	Slug        string             `json:"slug"`
	Status      model.SurveyStatus `json:"status"`
	Description string             `json:"description"`
	Image       *string            `json:"image"`
	ImageURL    *string            `json:"image_url"`
	ExpireDate  *time.Time         `json:"expire_date"`
	Questions   []model.Question   `json:"questions"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func newSurveyResource(app app.App, s model.Survey) surveyResource {
	return surveyResource{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		Title:       s.Title,
		Slug:        s.Slug,
		Status:      s.Status,
		Description: s.Description,
		Image:       s.Image,
		ImageURL:    app.ImageURL(s.Image),
		ExpireDate:  s.ExpireDate,
		Questions:   s.Questions,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// newPublicSurveyResource hides the owner from anonymous respondents.
func newPublicSurveyResource(app app.App, s model.Survey) surveyResource {
	res := newSurveyResource(app, s)
	res.OwnerID = ""
	return res
}

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

type surveyPage struct {
	Data []surveyResource `json:"data"`
	Meta pageMeta         `json:"meta"`
}
