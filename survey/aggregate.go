package survey

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/mbolis/survey-board/model"
)

const latestAnswersLimit = 5

type storedValue struct {
	AnswerID   string
	CreatedAt  time.Time
	QuestionID string
	Value      model.AnswerValue
	HasValue   bool
}

// Aggregate computes the dashboard summary of one survey. A survey without
// answers yields zero counts.
func (s *Store) Aggregate(ctx context.Context, survey model.Survey) (model.DashboardSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.created_at, qa.question_id, qa.value
		FROM answer a
		LEFT OUTER JOIN question_answer qa ON (a.id = qa.answer_id)
		WHERE a.survey_id = ?
		ORDER BY a.created_at, a.id, qa.position`,
		survey.ID,
	)
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("db.aggregate: %w", err)
	}
	defer rows.Close()

	var stored []storedValue
	for rows.Next() {
		var (
			v          storedValue
			questionID sql.NullString
			value      sql.NullString
		)
		if err := rows.Scan(&v.AnswerID, &v.CreatedAt, &questionID, &value); err != nil {
			return model.DashboardSummary{}, fmt.Errorf("db.aggregate.scan: %w", err)
		}
		if questionID.Valid && value.Valid {
			if err := json.Unmarshal([]byte(value.String), &v.Value); err != nil {
				return model.DashboardSummary{}, fmt.Errorf("db.aggregate.parse_value: %w", err)
			}
			v.QuestionID = questionID.String
			v.HasValue = true
		}
		stored = append(stored, v)
	}
	if err := rows.Err(); err != nil {
		return model.DashboardSummary{}, fmt.Errorf("db.aggregate: %w", err)
	}

	return summarize(survey, stored, s.textSampleLimit), nil
}

// summarize folds stored rows, ordered by answer, into per-question
// statistics. Values no longer among a question's options are counted as
// responses but not attributed to any option.
func summarize(survey model.Survey, stored []storedValue, textLimit int) model.DashboardSummary {
	summary := model.DashboardSummary{
		SurveyID:  survey.ID,
		Title:     survey.Title,
		Slug:      survey.Slug,
		Status:    survey.Status,
		Questions: make([]model.QuestionSummary, len(survey.Questions)),
	}

	index := make(map[string]int, len(survey.Questions))
	for i, q := range survey.Questions {
		index[q.ID] = i
		qs := model.QuestionSummary{
			QuestionID: q.ID,
			Question:   q.Question,
			Type:       q.Type,
		}
		if q.Type.HasOptions() {
			qs.Options = q.Options
			qs.Counts = make(map[string]int, len(q.Options))
			for _, opt := range q.Options {
				qs.Counts[opt] = 0
			}
		} else {
			qs.Values = []string{}
		}
		summary.Questions[i] = qs
	}

	lastAnswer := ""
	for _, v := range stored {
		if v.AnswerID != lastAnswer {
			lastAnswer = v.AnswerID
			summary.TotalAnswers++
			if summary.LatestAnswerAt == nil || v.CreatedAt.After(*summary.LatestAnswerAt) {
				t := v.CreatedAt.UTC()
				summary.LatestAnswerAt = &t
			}
		}
		if !v.HasValue {
			continue
		}

		i, ok := index[v.QuestionID]
		if !ok {
			continue
		}
		q := survey.Questions[i]
		qs := &summary.Questions[i]
		qs.Responses++

		switch {
		case q.Type.HasOptions():
			choices := v.Value.Multi
			if !v.Value.IsSet {
				choices = []string{v.Value.Single}
			}
			for _, c := range choices {
				if slices.Contains(q.Options, c) {
					qs.Counts[c]++
				}
			}
		case len(qs.Values) < textLimit:
			text := v.Value.Single
			if v.Value.IsSet {
				text = fmt.Sprint(v.Value.Multi)
			}
			qs.Values = append(qs.Values, text)
		default:
			qs.Truncated = true
		}
	}

	return summary
}

// Dashboard builds the owner-wide overview: survey and answer totals, the
// newest survey, the latest answers and one summary per survey.
func (s *Store) Dashboard(ctx context.Context, ownerID string) (model.Dashboard, error) {
	dash := model.Dashboard{
		LatestAnswers: []model.AnswerRef{},
		Surveys:       []model.DashboardSummary{},
	}

	ids, err := surveyIDs(ctx, s.db, `
		SELECT id FROM survey
		WHERE owner_id = ?
		ORDER BY created_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return model.Dashboard{}, err
	}
	dash.TotalSurveys = len(ids)

	for i, id := range ids {
		survey, err := s.get(ctx, s.db, id)
		if err != nil {
			return model.Dashboard{}, err
		}
		if i == 0 {
			dash.LatestSurvey = &survey
		}
		summary, err := s.Aggregate(ctx, survey)
		if err != nil {
			return model.Dashboard{}, err
		}
		dash.TotalAnswers += summary.TotalAnswers
		dash.Surveys = append(dash.Surveys, summary)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.survey_id, s.title, a.created_at
		FROM answer a
		INNER JOIN survey s ON (s.id = a.survey_id)
		WHERE s.owner_id = ?
		ORDER BY a.created_at DESC, a.id
		LIMIT ?`,
		ownerID, latestAnswersLimit,
	)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("db.latest_answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref model.AnswerRef
		if err := rows.Scan(&ref.ID, &ref.SurveyID, &ref.SurveyTitle, &ref.CreatedAt); err != nil {
			return model.Dashboard{}, fmt.Errorf("db.latest_answers.scan: %w", err)
		}
		ref.CreatedAt = ref.CreatedAt.UTC()
		dash.LatestAnswers = append(dash.LatestAnswers, ref)
	}
	if err := rows.Err(); err != nil {
		return model.Dashboard{}, fmt.Errorf("db.latest_answers: %w", err)
	}

	return dash, nil
}
