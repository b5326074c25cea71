package model

import (
	"encoding/json"
	"time"
)

type SurveyStatus string

const (
	StatusDraft     SurveyStatus = "draft"
	StatusPublished SurveyStatus = "published"
	StatusClosed    SurveyStatus = "closed"
)

type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeSelect   QuestionType = "select"
	TypeRadio    QuestionType = "radio"
	TypeCheckbox QuestionType = "checkbox"
	TypeTextarea QuestionType = "textarea"
)

// Valid reports whether t is one of the recognised question kinds.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeSelect, TypeRadio, TypeCheckbox, TypeTextarea:
		return true
	}
	return false
}

// HasOptions reports whether questions of this type carry a fixed option set.
func (t QuestionType) HasOptions() bool {
	switch t {
	case TypeSelect, TypeRadio, TypeCheckbox:
		return true
	}
	return false
}

type Survey struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Slug        string       `json:"slug"`
	Status      SurveyStatus `json:"status"`
	Image       *string      `json:"image"`
	ExpireDate  *time.Time   `json:"expire_date"`
	Questions   []Question   `json:"questions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Expired reports whether the survey stopped accepting answers at now.
func (s Survey) Expired(now time.Time) bool {
	return s.ExpireDate != nil && !now.Before(*s.ExpireDate)
}

// Question returns the question with the given id, if it belongs to the survey.
func (s Survey) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

type Question struct {
	ID          string       `json:"id"`
	SurveyID    string       `json:"survey_id"`
	Question    string       `json:"question"`
	Description string       `json:"description"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options"`
	Required    bool         `json:"required"`
	OrderIndex  int          `json:"order_index"`
}

type Answer struct {
	ID        string           `json:"id"`
	SurveyID  string           `json:"survey_id"`
	CreatedAt time.Time        `json:"created_at"`
	Values    []QuestionAnswer `json:"values"`
}

type QuestionAnswer struct {
	QuestionID string      `json:"question_id"`
	Value      AnswerValue `json:"value"`
}

// AnswerValue holds either a single string (Multi == false) or a set of
// strings chosen from a checkbox question.
type AnswerValue struct {
	Single string
	Multi  []string
	IsSet  bool
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.IsSet {
		if v.Multi == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Multi)
	}
	return json.Marshal(v.Single)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		v.IsSet = true
		v.Single = ""
		return json.Unmarshal(data, &v.Multi)
	}
	v.IsSet = false
	v.Multi = nil
	return json.Unmarshal(data, &v.Single)
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// DashboardSummary aggregates the stored answers of one survey.
type DashboardSummary struct {
	SurveyID       string            `json:"survey_id"`
	Title          string            `json:"title"`
	Slug           string            `json:"slug"`
	Status         SurveyStatus      `json:"status"`
	TotalAnswers   int               `json:"total_answers"`
	LatestAnswerAt *time.Time        `json:"latest_answer_at"`
	Questions      []QuestionSummary `json:"questions"`
}

type QuestionSummary struct {
	QuestionID string         `json:"question_id"`
	Question   string         `json:"question"`
	Type       QuestionType   `json:"type"`
	Responses  int            `json:"responses"`
	Options    []string       `json:"options,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Values     []string       `json:"values,omitempty"`
	Truncated  bool           `json:"truncated,omitempty"`
}

// MarshalJSON always emits values for free-text questions, even when none
// were submitted.
func (qs QuestionSummary) MarshalJSON() ([]byte, error) {
	type plain QuestionSummary
	if qs.Type.HasOptions() {
		return json.Marshal(plain(qs))
	}
	values := qs.Values
	if values == nil {
		values = []string{}
	}
	return json.Marshal(struct {
		plain
		Values []string `json:"values"`
	}{plain(qs), values})
}

// Dashboard is the owner-wide overview.
type Dashboard struct {
	TotalSurveys  int                `json:"total_surveys"`
	LatestSurvey  *Survey            `json:"latest_survey"`
	TotalAnswers  int                `json:"total_answers"`
	LatestAnswers []AnswerRef        `json:"latest_answers"`
	Surveys       []DashboardSummary `json:"surveys"`
}

type AnswerRef struct {
	ID          string    `json:"id"`
	SurveyID    string    `json:"survey_id"`
	SurveyTitle string    `json:"survey_title"`
	CreatedAt   time.Time `json:"created_at"`
}
