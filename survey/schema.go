package survey

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mbolis/survey-board/model"
)

// SurveyInput is the owner-supplied payload for create and update.
type SurveyInput struct {
	Title       string             `json:"title" validate:"required,max=1000"`
	Description string             `json:"description" validate:"max=65535"`
	Status      model.SurveyStatus `json:"status" validate:"omitempty,oneof=draft published closed"`
	Image       *string            `json:"image"`
	ExpireDate  *string            `json:"expire_date"`
	Questions   []QuestionInput    `json:"questions"`
}

// QuestionInput describes one question. An ID matching an existing question
// updates it in place on survey update; anything else creates a new question.
type QuestionInput struct {
	ID          string             `json:"id"`
	Question    string             `json:"question"`
	Description string             `json:"description"`
	Type        model.QuestionType `json:"type"`
	Options     []string           `json:"options"`
	Required    *bool              `json:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the survey fields and its question schema, collecting
// every violation. The returned time is the parsed expire date, if any.
func (in SurveyInput) Validate() (*time.Time, error) {
	expire, vs, err := in.check()
	if err != nil {
		return nil, err
	}
	if err := vs.err(CodeInvalidSurvey); err != nil {
		return nil, err
	}
	return expire, nil
}

func (in SurveyInput) check() (*time.Time, violations, error) {
	var vs violations

	if err := validate.Struct(in); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, nil, err
		}
		for _, fe := range fieldErrs {
			vs.add(Violation{
				Code:   CodeInvalidField,
				Field:  fe.Field(),
				Reason: fieldReason(fe),
			})
		}
	}
	if strings.TrimSpace(in.Title) == "" && !hasField(vs, "title") {
		vs.add(Violation{Code: CodeInvalidField, Field: "title", Reason: "must not be blank"})
	}

	expire, err := parseExpireDate(in.ExpireDate)
	if err != nil {
		vs.add(Violation{Code: CodeInvalidField, Field: "expire_date", Reason: err.Error()})
	}

	vs = append(vs, ValidateQuestions(in.Questions)...)
	return expire, vs, nil
}

func fieldReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

func hasField(vs violations, field string) bool {
	for _, v := range vs {
		if v.Field == field {
			return true
		}
	}
	return false
}

// parseExpireDate accepts RFC 3339 timestamps or plain dates. A plain date
// means the survey stays open for the whole of that day (UTC).
func parseExpireDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, *s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", *s); err == nil {
		t = t.Add(24 * time.Hour)
		return &t, nil
	}
	return nil, fmt.Errorf("%q is not a date", *s)
}

// ValidateQuestions applies the question schema rules to every question and
// returns all violations, each naming the offending index.
func ValidateQuestions(questions []QuestionInput) []Violation {
	var vs violations
	if len(questions) == 0 {
		vs.add(Violation{Code: CodeInvalidQuestionSchema, Field: "questions", Reason: "at least one question is required"})
		return vs
	}

	ids := make(map[string]int)
	for i, q := range questions {
		bad := func(reason string, args ...any) {
			vs.add(Violation{
				Code:       CodeInvalidQuestionSchema,
				QuestionID: q.ID,
				Index:      intp(i),
				Reason:     fmt.Sprintf(reason, args...),
			})
		}

		if q.ID != "" {
			if prev, dup := ids[q.ID]; dup {
				bad("duplicate question id (also at index %d)", prev)
			}
			ids[q.ID] = i
		}

		if strings.TrimSpace(q.Question) == "" {
			bad("question text is required")
		}

		if !q.Type.Valid() {
			bad("unknown question type %q", q.Type)
			continue
		}

		if !q.Type.HasOptions() {
			if len(q.Options) > 0 {
				bad("%s questions take no options", q.Type)
			}
			continue
		}

		if len(q.Options) == 0 {
			bad("%s questions need at least one option", q.Type)
			continue
		}
		seen := make(map[string]bool, len(q.Options))
		for j, opt := range q.Options {
			switch {
			case strings.TrimSpace(opt) == "":
				bad("option %d is empty", j)
			case seen[opt]:
				bad("option %q is repeated", opt)
			}
			seen[opt] = true
		}
	}
	return vs
}
