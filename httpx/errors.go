package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/survey-board/images"
	"github.com/mbolis/survey-board/log"
	"github.com/mbolis/survey-board/survey"
)

// ErrorResponse is the body of every failed API call. Error is a stable code
// clients can switch on.
type ErrorResponse struct {
	Error      string             `json:"error"`
	Message    string             `json:"message,omitempty"`
	Violations []survey.Violation `json:"violations,omitempty"`
}

// Will log an error, and send an HTTP response with status 500
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	send(w, r, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: http.StatusText(http.StatusInternalServerError),
	})
}

// Will log a debug message, and send an HTTP response with status 404
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	send(w, r, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "resource not found"})
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	send(w, r, status, ErrorResponse{Error: code, Message: http.StatusText(status)})
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	send(w, r, status, ErrorResponse{Error: code, Message: errMsg})
}

// WriteError maps an error from the survey domain to its HTTP status.
// Unrecognised errors become a logged 500.
func WriteError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var (
		verr *survey.ValidationError
		serr *images.StorageError
	)
	switch {
	case errors.As(err, &verr):
		log.Debugf("%s: %s", code, verr)
		send(w, r, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      verr.Code,
			Message:    "the given data was invalid",
			Violations: verr.Violations,
		})
	case errors.Is(err, survey.ErrUnauthorized):
		LogStatusMsg(w, r, http.StatusForbidden, log.DebugLevel, "unauthorized", "unauthorized action")
	case errors.Is(err, survey.ErrNotFound):
		LogStatusMsg(w, r, http.StatusNotFound, log.DebugLevel, "not_found", "survey not found")
	case errors.Is(err, survey.ErrSurveyClosed):
		LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "survey_closed", "survey is no longer accepting answers")
	case errors.As(err, &serr):
		log.Errorf("%s: %s", code, err)
		send(w, r, http.StatusInternalServerError, ErrorResponse{Error: "storage_error", Message: "could not store image"})
	default:
		LogInternalError(w, r, code, err)
	}
}

func send(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}
