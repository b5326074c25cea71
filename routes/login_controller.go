package routes

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/mbolis/survey-board/app"
	"github.com/mbolis/survey-board/httpx"
	"github.com/mbolis/survey-board/log"
	"github.com/mbolis/survey-board/model"
	"github.com/mbolis/survey-board/survey"
	"github.com/mbolis/survey-board/users"
)

var refreshHeader = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

func Register(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := users.Registration{}
		err := render.DecodeJSON(r.Body, &reg)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		user, err := users.Register(r.Context(), app.DB, reg)
		if err != nil {
			var verrs validator.ValidationErrors
			switch {
			case errors.As(err, &verrs):
				httpx.WriteError(w, r, "register.validate", registrationError(verrs))
			case errors.Is(err, users.ErrUsernameTaken):
				httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "username_taken", "username %q is already taken", reg.Username)
			default:
				httpx.LogInternalError(w, r, "register", err)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, user)
	}
}

func registrationError(verrs validator.ValidationErrors) error {
	vs := make([]survey.Violation, len(verrs))
	for i, fe := range verrs {
		vs[i] = survey.Violation{
			Code:   survey.CodeInvalidField,
			Field:  strings.ToLower(fe.Field()),
			Reason: fe.Tag(),
		}
	}
	return &survey.ValidationError{Code: survey.CodeInvalidField, Violations: vs}
}

// Login accepts the credentials either as basic auth or as a password grant
// form, and answers with an access and a refresh token.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			if r.FormValue("grant_type") != "password" {
				httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
				return
			}
			app.UserCredentials(w, r)
			return
		}

		grant(r, url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {pass},
		})
		app.UserCredentials(w, r)
	}
}

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := refreshHeader.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		// the bearer server falls back to parsing the authorization header when
		// the form carries no credentials
		r.Header.Del("authorization")
		grant(r, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {match[1]},
		})
		app.UserCredentials(w, r)
	}
}

func CurrentUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requester(app, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, user)
	}
}

// Logout revokes the requester's refresh tokens.
func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requester(app, w, r)
		if !ok {
			return
		}
		if err := httpx.RevokeTokens(r.Context(), app.DB, user.Username); err != nil {
			httpx.LogInternalError(w, r, "logout", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requester(app app.App, w http.ResponseWriter, r *http.Request) (model.User, bool) {
	id, _ := httpx.Owner(r.Context())
	user, err := users.Get(r.Context(), app.DB, id)
	switch {
	case errors.Is(err, users.ErrNotFound):
		httpx.LogNotFound(w, r, "user", id)
		return user, false
	case err != nil:
		httpx.LogInternalError(w, r, "user", err)
		return user, false
	}
	return user, true
}

// grant replaces the request body with the form the bearer server expects.
func grant(r *http.Request, body url.Values) {
	encoded := body.Encode()
	r.Body = io.NopCloser(strings.NewReader(encoded))
	r.ContentLength = int64(len(encoded))
	r.Form = nil
	r.PostForm = nil
	r.Header.Set("content-type", "application/x-www-form-urlencoded")
	r.Header.Set("content-length", strconv.Itoa(len(encoded)))
}
