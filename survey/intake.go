package survey

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mbolis/survey-board/log"
	"github.com/mbolis/survey-board/model"
)

// Submit records one respondent's answers to the published survey behind
// slug. The survey is read, the answers validated and the result inserted
// inside one write transaction, so a concurrent schema change is seen either
// entirely before or entirely after. Every problem is reported at once.
func (s *Store) Submit(ctx context.Context, slug string, values map[string]json.RawMessage) (string, error) {
	var answerID string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		survey, err := s.getBySlug(ctx, tx, slug)
		if err != nil {
			return err
		}

		now := s.timestamp()
		switch {
		case survey.Status == model.StatusDraft:
			return ErrNotFound
		case survey.Status == model.StatusClosed, survey.Expired(now):
			return ErrSurveyClosed
		}

		answer, err := ValidateAnswers(survey, values)
		if err != nil {
			return err
		}
		answer.ID = uuid.NewString()
		answer.CreatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO answer (id, survey_id, created_at) VALUES (?, ?, ?)`,
			answer.ID, answer.SurveyID, answer.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("db.insert_answer: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO question_answer (answer_id, question_id, position, value)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("db.insert_answer.values.prepare: %w", err)
		}
		defer stmt.Close()

		for i, qa := range answer.Values {
			value, err := json.Marshal(qa.Value)
			if err != nil {
				return fmt.Errorf("db.insert_answer.values.encode: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, answer.ID, qa.QuestionID, i, string(value)); err != nil {
				return fmt.Errorf("db.insert_answer.values.insert: %w", err)
			}
		}

		answerID = answer.ID
		log.WithFields(log.Fields{
			"survey": answer.SurveyID,
			"answer": answer.ID,
			"values": len(answer.Values),
		}).Debug("survey.submit")
		return nil
	})
	if err != nil {
		return "", err
	}
	return answerID, nil
}

// ValidateAnswers checks raw values against the survey's questions and
// builds the answer to store. Values come back in question order; optional
// questions left blank are omitted.
func ValidateAnswers(survey model.Survey, values map[string]json.RawMessage) (model.Answer, error) {
	var vs violations

	unknown := make([]string, 0)
	for id := range values {
		if _, ok := survey.Question(id); !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		vs.add(Violation{Code: CodeUnknownQuestion, QuestionID: id, Reason: "question does not belong to this survey"})
	}

	answer := model.Answer{SurveyID: survey.ID, Values: []model.QuestionAnswer{}}
	for _, q := range survey.Questions {
		raw, ok := values[q.ID]
		if !ok || isNull(raw) {
			if q.Required {
				vs.add(Violation{Code: CodeMissingAnswer, QuestionID: q.ID, Reason: "an answer is required"})
			}
			continue
		}

		value, present, reason := checkValue(q, raw)
		if reason != "" {
			vs.add(Violation{Code: CodeInvalidAnswerValue, QuestionID: q.ID, Reason: reason})
			continue
		}
		if present {
			answer.Values = append(answer.Values, model.QuestionAnswer{QuestionID: q.ID, Value: value})
		}
	}

	if err := vs.err(CodeInvalidAnswer); err != nil {
		return model.Answer{}, err
	}
	return answer, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// checkValue dispatches on the question type. present is false when an
// optional question was answered with an empty value; reason is non-empty
// when the value is rejected.
func checkValue(q model.Question, raw json.RawMessage) (value model.AnswerValue, present bool, reason string) {
	switch q.Type {
	case model.TypeText, model.TypeTextarea:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return value, false, "expected a string"
		}
		if strings.TrimSpace(text) == "" {
			if q.Required {
				return value, false, "must not be empty"
			}
			return value, false, ""
		}
		return model.AnswerValue{Single: text}, true, ""

	case model.TypeSelect, model.TypeRadio:
		var choice string
		if err := json.Unmarshal(raw, &choice); err != nil {
			return value, false, "expected a single option"
		}
		if choice == "" {
			if q.Required {
				return value, false, "an option must be chosen"
			}
			return value, false, ""
		}
		if !slices.Contains(q.Options, choice) {
			return value, false, fmt.Sprintf("%q not in options", choice)
		}
		return model.AnswerValue{Single: choice}, true, ""

	case model.TypeCheckbox:
		var choices []string
		if err := json.Unmarshal(raw, &choices); err != nil {
			return value, false, "expected a list of options"
		}
		if len(choices) == 0 {
			if q.Required {
				return value, false, "at least one option must be chosen"
			}
			return value, false, ""
		}
		seen := make(map[string]bool, len(choices))
		for _, c := range choices {
			if !slices.Contains(q.Options, c) {
				return value, false, fmt.Sprintf("%q not in options", c)
			}
			if seen[c] {
				return value, false, fmt.Sprintf("%q chosen more than once", c)
			}
			seen[c] = true
		}
		return model.AnswerValue{Multi: choices, IsSet: true}, true, ""
	}

	return value, false, fmt.Sprintf("unsupported question type %q", q.Type)
}
