package survey

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbolis/survey-board/images"
	"github.com/mbolis/survey-board/model"
	"github.com/mbolis/survey-board/testutil"
)

const owner = "owner-1"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so stored timestamps are strictly ordered.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T, opts ...Option) (*Store, *sql.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	opts = append([]Option{WithClock(newClock().Now)}, opts...)
	return NewStore(db, images.NewCodec(t.TempDir()), opts...), db
}

func ptr[T any](v T) *T { return &v }

func radioInput(title string) SurveyInput {
	return SurveyInput{
		Title:  title,
		Status: model.StatusPublished,
		Questions: []QuestionInput{
			{Question: "Do you like it?", Type: model.TypeRadio, Options: []string{"yes", "no"}},
		},
	}
}

func mixedInput() SurveyInput {
	return SurveyInput{
		Title:       "Customer Feedback",
		Description: "Tell us what you think",
		Status:      model.StatusPublished,
		Questions: []QuestionInput{
			{Question: "Your name", Type: model.TypeText},
			{Question: "Favourite colour", Type: model.TypeSelect, Options: []string{"red", "green", "blue"}},
			{Question: "Would you come back?", Type: model.TypeRadio, Options: []string{"yes", "no"}},
			{Question: "What did you use?", Type: model.TypeCheckbox, Options: []string{"web", "mobile", "api"}},
			{Question: "Anything else?", Type: model.TypeTextarea, Required: ptr(false)},
		},
	}
}

func mustCreate(t *testing.T, s *Store, ownerID string, in SurveyInput) model.Survey {
	t.Helper()
	survey, err := s.Create(context.Background(), ownerID, in)
	require.NoError(t, err)
	return survey
}

func mustSubmit(t *testing.T, s *Store, slug string, values map[string]any) string {
	t.Helper()
	id, err := s.Submit(context.Background(), slug, rawValues(t, values))
	require.NoError(t, err)
	return id
}

func rawValues(t *testing.T, values map[string]any) map[string]json.RawMessage {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		raw[k] = b
	}
	return raw
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func validationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}
