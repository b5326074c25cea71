// Package survey owns surveys, their question schema, the answers submitted
// against them and the statistics computed from those answers.
package survey

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/survey-board/images"
	"github.com/mbolis/survey-board/log"
	"github.com/mbolis/survey-board/model"
)

const (
	DefaultTextSampleLimit = 100
	maxSlugLen             = 80
)

type Store struct {
	db              *sql.DB
	images          *images.Codec
	now             func() time.Time
	textSampleLimit int
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTextSampleLimit caps how many free-text values each question summary lists.
func WithTextSampleLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.textSampleLimit = n
		}
	}
}

func NewStore(db *sql.DB, codec *images.Codec, opts ...Option) *Store {
	s := &Store{
		db:              db,
		images:          codec,
		now:             time.Now,
		textSampleLimit: DefaultTextSampleLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Images exposes the codec backing survey images.
func (s *Store) Images() *images.Codec {
	return s.images
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.begin_tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db.commit: %w", err)
	}
	return nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// Create validates the input, stores the image if one was sent and inserts
// the survey with its questions in a single transaction.
func (s *Store) Create(ctx context.Context, ownerID string, in SurveyInput) (model.Survey, error) {
	expire, vs, err := in.check()
	if err != nil {
		return model.Survey{}, err
	}
	img, hasImage := s.decodeImage(in.Image, nil, &vs)
	if err := vs.err(CodeInvalidSurvey); err != nil {
		return model.Survey{}, err
	}

	now := s.timestamp()
	survey := model.Survey{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		ExpireDate:  expire,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if survey.Status == "" {
		survey.Status = model.StatusDraft
	}

	if hasImage {
		ref, err := s.images.Store(img)
		if err != nil {
			return model.Survey{}, err
		}
		survey.Image = &ref
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		slug, err := uniqueSlug(ctx, tx, in.Title)
		if err != nil {
			return err
		}
		survey.Slug = slug

		_, err = tx.ExecContext(ctx, `
			INSERT INTO survey (id, owner_id, title, description, slug, status, image, expire_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			survey.ID, survey.OwnerID, survey.Title, survey.Description, survey.Slug,
			survey.Status, survey.Image, survey.ExpireDate, survey.CreatedAt, survey.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("db.insert_survey: %w", err)
		}

		survey.Questions, err = syncQuestions(ctx, tx, survey.ID, in.Questions)
		return err
	})
	if err != nil {
		return model.Survey{}, s.discardImage(err, survey.Image)
	}

	return survey, nil
}

// Update rewrites the survey fields and synchronises its questions by id.
// A replaced image is released only once the new reference is committed.
func (s *Store) Update(ctx context.Context, survey model.Survey, in SurveyInput) (model.Survey, error) {
	expire, vs, err := in.check()
	if err != nil {
		return model.Survey{}, err
	}
	img, hasImage := s.decodeImage(in.Image, survey.Image, &vs)
	if err := vs.err(CodeInvalidSurvey); err != nil {
		return model.Survey{}, err
	}

	oldImage := survey.Image
	newImage := survey.Image
	if hasImage {
		ref, err := s.images.Store(img)
		if err != nil {
			return model.Survey{}, err
		}
		newImage = &ref
	}

	status := in.Status
	if status == "" {
		status = survey.Status
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE survey
			SET
				title = ?,
				description = ?,
				status = ?,
				image = ?,
				expire_date = ?,
				updated_at = ?
			WHERE id = ?`,
			in.Title, in.Description, status, newImage, expire, s.timestamp(), survey.ID,
		)
		if err != nil {
			return fmt.Errorf("db.update_survey: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db.update_survey.verify: %w", err)
		}
		if n < 1 {
			return ErrNotFound
		}

		_, err = syncQuestions(ctx, tx, survey.ID, in.Questions)
		return err
	})
	if err != nil {
		if hasImage {
			return model.Survey{}, s.discardImage(err, newImage)
		}
		return model.Survey{}, err
	}

	if hasImage && oldImage != nil {
		s.releaseImage(*oldImage)
	}

	return s.get(ctx, s.db, survey.ID)
}

// Delete removes the survey together with its questions and answers, then
// releases its image.
func (s *Store) Delete(ctx context.Context, survey model.Survey) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM survey WHERE id = ?`, survey.ID)
		if err != nil {
			return fmt.Errorf("db.delete_survey: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db.delete_survey.verify: %w", err)
		}
		if n < 1 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	if survey.Image != nil {
		s.releaseImage(*survey.Image)
	}
	return nil
}

// GetOwned loads a survey on behalf of requesterID, who must own it.
func (s *Store) GetOwned(ctx context.Context, id, requesterID string) (model.Survey, error) {
	survey, err := s.get(ctx, s.db, id)
	if err != nil {
		return model.Survey{}, err
	}
	if survey.OwnerID != requesterID {
		return model.Survey{}, ErrUnauthorized
	}
	return survey, nil
}

// GetBySlug is the public lookup. Only published surveys are visible.
func (s *Store) GetBySlug(ctx context.Context, slug string) (model.Survey, error) {
	survey, err := s.getBySlug(ctx, s.db, slug)
	if err != nil {
		return model.Survey{}, err
	}
	if survey.Status != model.StatusPublished {
		return model.Survey{}, ErrNotFound
	}
	return survey, nil
}

type Page struct {
	Surveys  []model.Survey
	Page     int
	PerPage  int
	Total    int
	LastPage int
}

// ListOwned returns one page of the owner's surveys, newest first.
func (s *Store) ListOwned(ctx context.Context, ownerID string, page, perPage int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 15
	}
	p := Page{Page: page, PerPage: perPage, Surveys: []model.Survey{}}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM survey WHERE owner_id = ?`, ownerID).Scan(&p.Total)
	if err != nil {
		return Page{}, fmt.Errorf("db.count_surveys: %w", err)
	}
	p.LastPage = (p.Total + perPage - 1) / perPage
	if p.LastPage < 1 {
		p.LastPage = 1
	}

	ids, err := surveyIDs(ctx, s.db, `
		SELECT id FROM survey
		WHERE owner_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		ownerID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return Page{}, err
	}
	for _, id := range ids {
		survey, err := s.get(ctx, s.db, id)
		if err != nil {
			return Page{}, err
		}
		p.Surveys = append(p.Surveys, survey)
	}
	return p, nil
}

func surveyIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db.get_surveys: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db.get_surveys.scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db.get_surveys: %w", err)
	}
	return ids, nil
}

const surveyColumns = `id, owner_id, title, description, slug, status, image, expire_date, created_at, updated_at`

func (s *Store) get(ctx context.Context, q queryer, id string) (model.Survey, error) {
	row := q.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM survey WHERE id = ?`, id)
	return loadSurvey(ctx, q, row)
}

func (s *Store) getBySlug(ctx context.Context, q queryer, slug string) (model.Survey, error) {
	row := q.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM survey WHERE slug = ?`, slug)
	return loadSurvey(ctx, q, row)
}

func loadSurvey(ctx context.Context, q queryer, row *sql.Row) (model.Survey, error) {
	var (
		survey model.Survey
		image  sql.NullString
		expire sql.NullTime
	)
	err := row.Scan(
		&survey.ID, &survey.OwnerID, &survey.Title, &survey.Description, &survey.Slug,
		&survey.Status, &image, &expire, &survey.CreatedAt, &survey.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Survey{}, ErrNotFound
	}
	if err != nil {
		return model.Survey{}, fmt.Errorf("db.get_survey.scan: %w", err)
	}
	if image.Valid {
		survey.Image = &image.String
	}
	if expire.Valid {
		t := expire.Time.UTC()
		survey.ExpireDate = &t
	}

	survey.Questions, err = loadQuestions(ctx, q, survey.ID)
	if err != nil {
		return model.Survey{}, err
	}
	return survey, nil
}

func loadQuestions(ctx context.Context, q queryer, surveyID string) ([]model.Question, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, survey_id, question, description, type, options, required, order_index
		FROM question
		WHERE survey_id = ?
		ORDER BY order_index`,
		surveyID,
	)
	if err != nil {
		return nil, fmt.Errorf("db.get_questions: %w", err)
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var (
			qu   model.Question
			opts string
		)
		err = rows.Scan(&qu.ID, &qu.SurveyID, &qu.Question, &qu.Description, &qu.Type, &opts, &qu.Required, &qu.OrderIndex)
		if err != nil {
			return nil, fmt.Errorf("db.get_questions.scan: %w", err)
		}
		if err = json.Unmarshal([]byte(opts), &qu.Options); err != nil {
			return nil, fmt.Errorf("db.get_questions.parse_options: %w", err)
		}
		if qu.Options == nil {
			qu.Options = []string{}
		}
		questions = append(questions, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db.get_questions: %w", err)
	}
	return questions, nil
}

// syncQuestions makes the stored question set of a survey match inputs.
// Known ids are updated in place unless their type changes to one whose
// values are read differently; those, and unknown ids, are inserted afresh.
// Stored questions not kept are deleted together with their answer values.
func syncQuestions(ctx context.Context, tx execer, surveyID string, inputs []QuestionInput) ([]model.Question, error) {
	existing := make(map[string]model.QuestionType)
	rows, err := tx.QueryContext(ctx, `SELECT id, type FROM question WHERE survey_id = ?`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("db.sync_questions.existing: %w", err)
	}
	for rows.Next() {
		var (
			id  string
			typ model.QuestionType
		)
		if err := rows.Scan(&id, &typ); err != nil {
			rows.Close()
			return nil, fmt.Errorf("db.sync_questions.existing.scan: %w", err)
		}
		existing[id] = typ
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db.sync_questions.existing: %w", err)
	}

	questions := make([]model.Question, 0, len(inputs))
	kept := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		qu := model.Question{
			ID:          in.ID,
			SurveyID:    surveyID,
			Question:    in.Question,
			Description: in.Description,
			Type:        in.Type,
			Options:     in.Options,
			Required:    in.Required == nil || *in.Required,
			OrderIndex:  i,
		}
		if qu.Options == nil || !qu.Type.HasOptions() {
			qu.Options = []string{}
		}
		optionsJson, err := json.Marshal(qu.Options)
		if err != nil {
			return nil, fmt.Errorf("db.sync_questions.options: %w", err)
		}

		// a question whose answers would no longer fit its type is replaced,
		// so the old answer values go with the old row
		if typ, ok := existing[qu.ID]; ok && sameValueKind(typ, qu.Type) {
			_, err = tx.ExecContext(ctx, `
				UPDATE question
				SET question = ?, description = ?, type = ?, options = ?, required = ?, order_index = ?
				WHERE id = ?`,
				qu.Question, qu.Description, qu.Type, string(optionsJson), qu.Required, qu.OrderIndex, qu.ID,
			)
			if err != nil {
				return nil, fmt.Errorf("db.sync_questions.update: %w", err)
			}
		} else {
			qu.ID = uuid.NewString()
			_, err = tx.ExecContext(ctx, `
				INSERT INTO question (id, survey_id, question, description, type, options, required, order_index)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				qu.ID, surveyID, qu.Question, qu.Description, qu.Type, string(optionsJson), qu.Required, qu.OrderIndex,
			)
			if err != nil {
				return nil, fmt.Errorf("db.sync_questions.insert: %w", err)
			}
		}
		kept[qu.ID] = true
		questions = append(questions, qu)
	}

	for id := range existing {
		if kept[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM question WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("db.sync_questions.delete: %w", err)
		}
	}
	return questions, nil
}

var reNoSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify transliterates title to lowercase ASCII words joined by dashes.
func slugify(title string) string {
	s := slug.Make(title)
	s = strings.Trim(reNoSlug.ReplaceAllLiteralString(s, "-"), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "survey"
	}
	return s
}

// uniqueSlug derives a slug from title, appending -2, -3, ... when taken.
func uniqueSlug(ctx context.Context, q queryer, title string) (string, error) {
	base := slugify(title)
	rows, err := q.QueryContext(ctx, `SELECT slug FROM survey WHERE slug = ? OR slug LIKE ?`, base, base+"-%")
	if err != nil {
		return "", fmt.Errorf("db.unique_slug: %w", err)
	}
	defer rows.Close()

	taken := false
	maxN := 1
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `-(\d+)$`)
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return "", fmt.Errorf("db.unique_slug.scan: %w", err)
		}
		if other == base {
			taken = true
			continue
		}
		if m := re.FindStringSubmatch(other); m != nil {
			var n int
			fmt.Sscanf(m[1], "%d", &n)
			if n > maxN {
				maxN = n
			}
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("db.unique_slug: %w", err)
	}

	if !taken {
		return base, nil
	}
	return fmt.Sprintf("%s-%d", base, maxN+1), nil
}

// decodeImage validates an incoming image field without writing anything.
// A payload equal to the current reference means "unchanged".
func (s *Store) decodeImage(payload *string, current *string, vs *violations) (images.Image, bool) {
	if payload == nil || *payload == "" {
		return images.Image{}, false
	}
	if current != nil && *payload == *current {
		return images.Image{}, false
	}

	img, err := s.images.Decode(*payload)
	if err == nil {
		return img, true
	}

	code := CodeInvalidImageFormat
	switch {
	case errors.Is(err, images.ErrUnsupportedImageType):
		code = CodeUnsupportedImageType
	case errors.Is(err, images.ErrDecode):
		code = CodeDecodeError
	}
	vs.add(Violation{Code: code, Field: "image", Reason: err.Error()})
	return images.Image{}, false
}

// discardImage releases an image written for a record that never committed.
func (s *Store) discardImage(cause error, ref *string) error {
	if ref == nil {
		return cause
	}
	if err := s.images.Release(*ref); err != nil {
		return multierror.Append(cause, err)
	}
	return cause
}

func (s *Store) releaseImage(ref string) {
	if err := s.images.Release(ref); err != nil {
		log.WithFields(log.Fields{"image": ref}).Warnf("survey.release_image: %s", err)
	}
}

// sameValueKind reports whether answers stored for a question of type from
// are still read correctly once it becomes type to.
func sameValueKind(from, to model.QuestionType) bool {
	kind := func(t model.QuestionType) int {
		switch t {
		case model.TypeText, model.TypeTextarea:
			return 0
		case model.TypeSelect, model.TypeRadio:
			return 1
		}
		return 2
	}
	return from == to || kind(from) == kind(to) && kind(from) != 2
}
