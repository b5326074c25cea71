package survey

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("survey not found")
	ErrUnauthorized = errors.New("unauthorized action")
	ErrSurveyClosed = errors.New("survey is closed")
)

// Validation error codes. Clients switch on these, never on messages.
const (
	CodeInvalidField          = "invalid_field"
	CodeInvalidQuestionSchema = "invalid_question_schema"
	CodeInvalidImageFormat    = "invalid_image_format"
	CodeUnsupportedImageType  = "unsupported_image_type"
	CodeDecodeError           = "decode_error"
	CodeMissingAnswer         = "missing_answer"
	CodeInvalidAnswerValue    = "invalid_answer_value"
	CodeUnknownQuestion       = "unknown_question"
	CodeInvalidAnswer         = "invalid_answer"
	CodeInvalidSurvey         = "invalid_survey"
)

// Violation is one user-correctable problem found while validating input.
type Violation struct {
	Code       string `json:"code"`
	Field      string `json:"field,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Reason     string `json:"reason"`
}

func (v Violation) String() string {
	var b strings.Builder
	b.WriteString(v.Code)
	switch {
	case v.QuestionID != "":
		fmt.Fprintf(&b, "{%s}", v.QuestionID)
	case v.Index != nil:
		fmt.Fprintf(&b, "[%d]", *v.Index)
	case v.Field != "":
		fmt.Fprintf(&b, "(%s)", v.Field)
	}
	b.WriteString(": ")
	b.WriteString(v.Reason)
	return b.String()
}

// ValidationError carries every violation found in one pass.
type ValidationError struct {
	Code       string      `json:"error"`
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return e.Code + ": " + strings.Join(parts, "; ")
}

// Has reports whether a violation with the given code was recorded.
func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

type violations []Violation

func (vs *violations) add(v Violation) {
	*vs = append(*vs, v)
}

// err wraps the collected violations. The error code is the violations' own
// code when they all agree, fallback otherwise.
func (vs violations) err(fallback string) error {
	if len(vs) == 0 {
		return nil
	}
	code := vs[0].Code
	for _, v := range vs[1:] {
		if v.Code != code {
			code = fallback
			break
		}
	}
	return &ValidationError{Code: code, Violations: vs}
}

func intp(i int) *int { return &i }
