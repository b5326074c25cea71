package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/mbolis/survey-board/config"
	"github.com/mbolis/survey-board/survey"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
	Surveys *survey.Store
}

// ImageURL turns a stored image reference into an absolute URL.
func (app App) ImageURL(ref *string) *string {
	if ref == nil {
		return nil
	}
	url := app.BaseURL + "/" + *ref
	return &url
}
