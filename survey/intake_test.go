package survey

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/survey-board/model"
)

func TestSubmitRadio(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	survey := mustCreate(t, s, owner, radioInput("Yes or no"))
	qid := survey.Questions[0].ID

	_, err := s.Submit(ctx, survey.Slug, rawValues(t, map[string]any{qid: "maybe"}))
	verr := validationError(t, err)
	assert.Equal(t, CodeInvalidAnswerValue, verr.Code)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, qid, verr.Violations[0].QuestionID)
	assert.Equal(t, `"maybe" not in options`, verr.Violations[0].Reason)
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM answer`))

	id, err := s.Submit(ctx, survey.Slug, rawValues(t, map[string]any{qid: "yes"}))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	summary, err := s.Aggregate(ctx, survey)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"yes": 1, "no": 0}, summary.Questions[0].Counts)
}

func TestSubmitCollectsEveryViolation(t *testing.T) {
	s, db := newStore(t)
	survey := mustCreate(t, s, owner, mixedInput())
	q := survey.Questions

	_, err := s.Submit(context.Background(), survey.Slug, rawValues(t, map[string]any{
		"stale-question": "x",
		q[1].ID:          "purple",
		q[2].ID:          []string{"yes"},
		q[3].ID:          []string{"web", "web"},
	}))
	verr := validationError(t, err)
	assert.Equal(t, CodeInvalidAnswer, verr.Code)

	got := map[string]string{}
	for _, v := range verr.Violations {
		key := v.QuestionID
		got[key] = v.Code
	}
	assert.Equal(t, map[string]string{
		"stale-question": CodeUnknownQuestion,
		q[0].ID:          CodeMissingAnswer,
		q[1].ID:          CodeInvalidAnswerValue,
		q[2].ID:          CodeInvalidAnswerValue,
		q[3].ID:          CodeInvalidAnswerValue,
	}, got)
	assert.Len(t, verr.Violations, 5)

	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM answer`))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM question_answer`))
}

func TestSubmitStoresValuesInQuestionOrder(t *testing.T) {
	s, db := newStore(t)
	survey := mustCreate(t, s, owner, mixedInput())
	q := survey.Questions

	id := mustSubmit(t, s, survey.Slug, map[string]any{
		q[3].ID: []string{"api", "web"},
		q[0].ID: "Ada",
		q[2].ID: "no",
		q[1].ID: "green",
	})

	rows, err := db.Query(`SELECT question_id, value FROM question_answer WHERE answer_id = ? ORDER BY position`, id)
	require.NoError(t, err)
	defer rows.Close()

	var stored [][2]string
	for rows.Next() {
		var qid, value string
		require.NoError(t, rows.Scan(&qid, &value))
		stored = append(stored, [2]string{qid, value})
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, [][2]string{
		{q[0].ID, `"Ada"`},
		{q[1].ID, `"green"`},
		{q[2].ID, `"no"`},
		{q[3].ID, `["api","web"]`},
	}, stored, "optional textarea left out is not stored")
}

func TestValidateAnswerValues(t *testing.T) {
	survey := model.Survey{
		ID: "s",
		Questions: []model.Question{
			{ID: "text", Type: model.TypeText, Required: true},
			{ID: "select", Type: model.TypeSelect, Options: []string{"a", "b"}, Required: true},
			{ID: "radio", Type: model.TypeRadio, Options: []string{"a", "b"}, Required: true},
			{ID: "check", Type: model.TypeCheckbox, Options: []string{"a", "b", "c"}, Required: true},
			{ID: "area", Type: model.TypeTextarea, Required: true},
		},
	}
	valid := map[string]string{
		"text":   `"hi"`,
		"select": `"a"`,
		"radio":  `"b"`,
		"check":  `["a","c"]`,
		"area":   `"long text"`,
	}

	tests := []struct {
		name     string
		question string
		raw      string
		wantCode string
	}{
		{"valid", "", "", ""},
		{"text must be a string", "text", `42`, CodeInvalidAnswerValue},
		{"required text must not be blank", "text", `"   "`, CodeInvalidAnswerValue},
		{"select outside options", "select", `"z"`, CodeInvalidAnswerValue},
		{"select takes one value", "select", `["a"]`, CodeInvalidAnswerValue},
		{"radio empty", "radio", `""`, CodeInvalidAnswerValue},
		{"checkbox takes a list", "check", `"a"`, CodeInvalidAnswerValue},
		{"checkbox outside options", "check", `["a","d"]`, CodeInvalidAnswerValue},
		{"checkbox duplicates", "check", `["b","b"]`, CodeInvalidAnswerValue},
		{"checkbox empty", "check", `[]`, CodeInvalidAnswerValue},
		{"null counts as missing", "area", `null`, CodeMissingAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]json.RawMessage{}
			for k, v := range valid {
				values[k] = json.RawMessage(v)
			}
			if tt.question != "" {
				values[tt.question] = json.RawMessage(tt.raw)
			}

			answer, err := ValidateAnswers(survey, values)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Len(t, answer.Values, 5)
				assert.Equal(t, model.AnswerValue{Multi: []string{"a", "c"}, IsSet: true}, answer.Values[3].Value)
				return
			}
			verr := validationError(t, err)
			require.Len(t, verr.Violations, 1)
			assert.Equal(t, tt.wantCode, verr.Violations[0].Code)
			assert.Equal(t, tt.question, verr.Violations[0].QuestionID)
		})
	}
}

func TestValidateOptionalQuestions(t *testing.T) {
	survey := model.Survey{
		Questions: []model.Question{
			{ID: "text", Type: model.TypeText},
			{ID: "radio", Type: model.TypeRadio, Options: []string{"a"}},
			{ID: "check", Type: model.TypeCheckbox, Options: []string{"a"}},
		},
	}

	answer, err := ValidateAnswers(survey, nil)
	require.NoError(t, err)
	assert.Empty(t, answer.Values)

	answer, err = ValidateAnswers(survey, map[string]json.RawMessage{
		"text":  json.RawMessage(`""`),
		"radio": json.RawMessage(`""`),
		"check": json.RawMessage(`[]`),
	})
	require.NoError(t, err)
	assert.Empty(t, answer.Values)

	_, err = ValidateAnswers(survey, map[string]json.RawMessage{"radio": json.RawMessage(`"b"`)})
	assert.True(t, validationError(t, err).Has(CodeInvalidAnswerValue), "optional answers are still checked")
}

func TestSubmitRejectsUnavailableSurveys(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	draft := radioInput("Draft")
	draft.Status = model.StatusDraft
	closed := radioInput("Closed")
	closed.Status = model.StatusClosed
	expired := radioInput("Expired")
	expired.ExpireDate = ptr("2025-12-31") // the clock starts on 2026-01-01

	tests := []struct {
		name string
		in   SurveyInput
		want error
	}{
		{"draft", draft, ErrNotFound},
		{"closed", closed, ErrSurveyClosed},
		{"expired", expired, ErrSurveyClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			survey := mustCreate(t, s, owner, tt.in)
			_, err := s.Submit(ctx, survey.Slug, rawValues(t, map[string]any{survey.Questions[0].ID: "yes"}))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := s.Submit(ctx, "no-such-slug", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitConcurrently(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	survey := mustCreate(t, s, owner, radioInput("Busy"))
	qid := survey.Questions[0].ID

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			choice := "yes"
			if i%2 == 1 {
				choice = "no"
			}
			_, err := s.Submit(ctx, survey.Slug, map[string]json.RawMessage{qid: json.RawMessage(`"` + choice + `"`)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	summary, err := s.Aggregate(ctx, survey)
	require.NoError(t, err)
	assert.Equal(t, n, summary.TotalAnswers)
	assert.Equal(t, map[string]int{"yes": n / 2, "no": n / 2}, summary.Questions[0].Counts)
}
