package store

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/errors"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type PostgresConfig struct {
	DB *pgxpool.Pool
}

type Postgres struct {
	db *pgxpool.Pool
}

var _ Gateway = (*Postgres)(nil)

func NewPostgres(c PostgresConfig) *Postgres {
	return &Postgres{db: c.DB}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (s *Postgres) CreateSession(ctx context.Context, p CreateSessionParams) (*domain.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Persistence("create", entitySession, "", fmt.Errorf("generate session ID: %w", err))
	}

	const stmt = `
INSERT INTO sessions (id, title, description, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id::text, title, description, source_text, created_by::text, created_at, updated_at;`

	ss, err := scanSession(s.db.QueryRow(ctx, stmt, id.String(), p.Title, p.Description, p.CreatedBy))
	if err != nil {
		return nil, errors.Persistence("create", entitySession, "", err)
	}

	return ss, nil
}

func (s *Postgres) FetchSession(ctx context.Context, id string) (*domain.Session, error) {
	const stmt = `
SELECT id::text, title, description, source_text, created_by::text, created_at, updated_at
FROM sessions
WHERE id = $1;`

	ss, err := scanSession(s.db.QueryRow(ctx, stmt, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(entitySession, id)
	}
	if err != nil {
		return nil, errors.Persistence("fetch", entitySession, id, err)
	}

	return ss, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var ss domain.Session
	err := row.Scan(&ss.ID, &ss.Title, &ss.Description, &ss.SourceText, &ss.CreatedBy, &ss.CreatedAt, &ss.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

func (s *Postgres) FetchSessionList(ctx context.Context, createdBy string) ([]domain.SessionPayload, error) {
	const stmt = `
SELECT
	s.id::text, s.title, s.description, s.created_at, s.updated_at,
	COALESCE((
		SELECT array_agg(t.id::text ORDER BY t.created_at, t.id)
		FROM session_topics t
		WHERE t.session_id = s.id
	), '{}') AS topic_ids,
	COALESCE((
		SELECT SUM(c.count)
		FROM session_question_configs c
		WHERE c.session_id = s.id
	), 0) AS question_count,
	COALESCE((
		SELECT json_agg(json_build_object('id', l.id, 'text', l.text) ORDER BY sl.created_at)
		FROM session_labels sl
		JOIN labels l ON l.id = sl.label_id
		WHERE sl.session_id = s.id
	), '[]') AS labels
FROM sessions s
WHERE s.created_by = $1
ORDER BY s.created_at DESC;`

	rows, err := s.db.Query(ctx, stmt, createdBy)
	if err != nil {
		return nil, errors.Persistence("fetch", entitySessions, "", err)
	}

	sessions, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.SessionPayload, error) {
		var (
			sp       domain.SessionPayload
			topicIDs []string
			count    int64
			labels   []byte
		)
		if err := r.Scan(&sp.ID, &sp.Title, &sp.Description, &sp.CreatedAt, &sp.UpdatedAt, &topicIDs, &count, &labels); err != nil {
			return domain.SessionPayload{}, err
		}

		sp.Topics = make([]domain.TopicRef, 0, len(topicIDs))
		for _, id := range topicIDs {
			sp.Topics = append(sp.Topics, domain.TopicRef{ID: id})
		}
		sp.QuestionCount = int(count)

		if err := json.Unmarshal(labels, &sp.Labels); err != nil {
			return domain.SessionPayload{}, fmt.Errorf("decode labels: %w", err)
		}

		return sp, nil
	})
	if err != nil {
		return nil, errors.Persistence("fetch", entitySessions, "", err)
	}

	if err := domain.ValidateSessionList(sessions); err != nil {
		return nil, errors.Validation(entitySession, err)
	}

	return sessions, nil
}

// FetchFullSession loads the session row first, then its topics, configs and
// questions concurrently.
func (s *Postgres) FetchFullSession(ctx context.Context, id string) (*domain.FullSession, error) {
	ss, err := s.FetchSession(ctx, id)
	if err != nil {
		return nil, err
	}

	fs := &domain.FullSession{
		ID:         ss.ID,
		Title:      ss.Title,
		SourceText: ss.SourceText,
		CreatedBy:  ss.CreatedBy,
	}

	var configs []domain.ConfigRef

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		fs.Topics, err = s.fetchTopics(ctx, id)
		return err
	})
	eg.Go(func() (err error) {
		configs, err = s.fetchConfigs(ctx, id)
		return err
	})
	eg.Go(func() (err error) {
		fs.Questions, err = s.fetchQuestions(ctx, id)
		return err
	})

	if err := eg.Wait(); err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return nil, e
		}
		return nil, errors.Persistence("fetch", entitySession, id, err)
	}

	fs.Configs = domain.GroupConfigs(configs)

	if err := domain.ValidateFullSession(fs); err != nil {
		return nil, errors.Validation(entitySession, err)
	}

	return fs, nil
}

func (s *Postgres) fetchTopics(ctx context.Context, sessionID string) ([]domain.TopicRef, error) {
	const stmt = `
SELECT id::text, text
FROM session_topics
WHERE session_id = $1
ORDER BY created_at, id;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.TopicRef, error) {
		var t domain.TopicRef
		err := r.Scan(&t.ID, &t.Text)
		return t, err
	})
}

func (s *Postgres) fetchConfigs(ctx context.Context, sessionID string) ([]domain.ConfigRef, error) {
	const stmt = `
SELECT id::text, topic_id::text, level, type, count
FROM session_question_configs
WHERE session_id = $1
ORDER BY created_at, id;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query configs: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ConfigRef, error) {
		var c domain.ConfigRef
		err := r.Scan(&c.ID, &c.TopicID, &c.Level, &c.Type, &c.Count)
		return c, err
	})
}

func (s *Postgres) fetchQuestions(ctx context.Context, sessionID string) ([]domain.Question, error) {
	const stmt = `
SELECT id::text, session_id::text, topic_id::text, text, level, type, payload, created_by::text, created_at, updated_at
FROM session_questions
WHERE session_id = $1
ORDER BY created_at, id;`

	rows, err := s.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	qrs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (questionRow, error) {
		var q questionRow
		err := r.Scan(&q.ID, &q.SessionID, &q.TopicID, &q.Text, &q.Level, &q.Type, &q.Payload, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
		return q, err
	})
	if err != nil {
		return nil, err
	}

	qs := make([]domain.Question, 0, len(qrs))
	for _, r := range qrs {
		q, err := r.question()
		if err != nil {
			return nil, errors.Validation("question", err)
		}
		qs = append(qs, q)
	}

	return qs, nil
}

func (s *Postgres) UpdateSessionSourceText(ctx context.Context, id, text string) error {
	const stmt = `UPDATE sessions SET source_text = $2, updated_at = now() WHERE id = $1;`

	tag, err := s.db.Exec(ctx, stmt, id, text)
	if err != nil {
		return errors.Persistence("update", entitySession, id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound(entitySession, id)
	}

	return nil
}

// InsertTopics inserts every topic in one statement.
func (s *Postgres) InsertTopics(ctx context.Context, p InsertTopicsParams) ([]domain.Topic, error) {
	now := time.Now().UTC()
	topics := make([]domain.Topic, 0, len(p.Texts))
	ids := make([]string, 0, len(p.Texts))
	for _, text := range p.Texts {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, errors.Persistence("create", entityTopics, p.SessionID, fmt.Errorf("generate topic ID: %w", err))
		}
		ids = append(ids, id.String())
		topics = append(topics, domain.Topic{
			ID:        id.String(),
			SessionID: p.SessionID,
			Text:      text,
			CreatedBy: p.CreatedBy,
			CreatedAt: now,
		})
	}

	const stmt = `
INSERT INTO session_topics (id, session_id, text, created_by, created_at)
SELECT t.id::uuid, $3::uuid, t.text, $4::uuid, $5::timestamptz
FROM unnest($1::text[], $2::text[]) AS t (id, text);`

	if _, err := s.db.Exec(ctx, stmt, ids, p.Texts, p.SessionID, p.CreatedBy, now); err != nil {
		return nil, persistenceOrNotFound(err, "create", entityTopics, p.SessionID)
	}

	return topics, nil
}

func (s *Postgres) DeleteTopics(ctx context.Context, sessionID string, topicIDs []string) error {
	const stmt = `DELETE FROM session_topics WHERE session_id = $1 AND id = ANY($2::text[]::uuid[]);`

	if _, err := s.db.Exec(ctx, stmt, sessionID, topicIDs); err != nil {
		return errors.Persistence("delete", entityTopics, sessionID, err)
	}

	return nil
}

func (s *Postgres) AddQuestionConfig(ctx context.Context, p AddQuestionConfigParams) (*domain.QuestionConfig, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Persistence("add", entityQuestionConfig, "", fmt.Errorf("generate config ID: %w", err))
	}

	c := &domain.QuestionConfig{
		ID:        id.String(),
		SessionID: p.SessionID,
		TopicID:   p.TopicID,
		Level:     p.Level,
		Type:      p.Type,
		Count:     p.Count,
		CreatedBy: p.CreatedBy,
	}

	// The topic must belong to the session.
	const stmt = `
INSERT INTO session_question_configs (id, session_id, topic_id, level, type, count, created_by)
SELECT $1::uuid, t.session_id, t.id, $4::text, $5::text, $6::int, $7::uuid
FROM session_topics t
WHERE t.id = $3 AND t.session_id = $2
RETURNING created_at;`

	err = s.db.QueryRow(ctx, stmt, c.ID, c.SessionID, c.TopicID, string(c.Level), string(c.Type), c.Count, c.CreatedBy).Scan(&c.CreatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("topic", p.TopicID)
	}
	if err != nil {
		return nil, errors.Persistence("add", entityQuestionConfig, "", err)
	}

	return c, nil
}

func (s *Postgres) UpdateQuestionConfig(ctx context.Context, p UpdateQuestionConfigParams) error {
	const stmt = `
UPDATE session_question_configs
SET count = COALESCE($2, count),
	level = COALESCE($3, level),
	type = COALESCE($4, type),
	updated_at = now()
WHERE id = $1;`

	tag, err := s.db.Exec(ctx, stmt, p.ID, p.Count, (*string)(p.Level), (*string)(p.Type))
	if err != nil {
		return errors.Persistence("update", entityQuestionConfig, p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound(entityQuestionConfig, p.ID)
	}

	return nil
}

func (s *Postgres) DeleteQuestionConfig(ctx context.Context, id string) error {
	const stmt = `DELETE FROM session_question_configs WHERE id = $1;`

	if _, err := s.db.Exec(ctx, stmt, id); err != nil {
		return errors.Persistence("delete", entityQuestionConfig, id, err)
	}

	return nil
}

func (s *Postgres) DeleteAllQuestionConfigsForTopic(ctx context.Context, sessionID, topicID string) error {
	const stmt = `DELETE FROM session_question_configs WHERE session_id = $1 AND topic_id = $2;`

	if _, err := s.db.Exec(ctx, stmt, sessionID, topicID); err != nil {
		return errors.Persistence("delete", "question configs of topic", topicID, err)
	}

	return nil
}

const insertQuestionStmt = `
INSERT INTO session_questions (id, session_id, topic_id, text, level, type, payload, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *Postgres) InsertQuestions(ctx context.Context, qs []domain.Question) error {
	return s.writeQuestions(ctx, "insert", insertQuestionStmt+";", qs)
}

func (s *Postgres) UpsertQuestions(ctx context.Context, qs []domain.Question) error {
	const stmt = insertQuestionStmt + `
ON CONFLICT (id) DO UPDATE SET
	text = EXCLUDED.text,
	level = EXCLUDED.level,
	type = EXCLUDED.type,
	payload = EXCLUDED.payload,
	updated_at = now()
WHERE session_questions.session_id = EXCLUDED.session_id;`

	return s.writeQuestions(ctx, "upsert", stmt, qs)
}

// writeQuestions sends one statement per question in a single batch, inside a
// transaction so either every question is written or none is. A statement that
// touches no row hit a question of another session and fails the batch.
func (s *Postgres) writeQuestions(ctx context.Context, action, stmt string, qs []domain.Question) error {
	if len(qs) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, q := range qs {
		r, err := toQuestionRow(q)
		if err != nil {
			return errors.Persistence(action, entityQuestions, q.ID, err)
		}
		b.Queue(stmt, r.ID, r.SessionID, r.TopicID, r.Text, string(r.Level), string(r.Type), r.Payload, r.CreatedBy).
			Exec(func(ct pgconn.CommandTag) error {
				if ct.RowsAffected() == 0 {
					return errors.NotFound(entityQuestion, r.ID)
				}
				return nil
			})
	}

	if err := s.sendBatch(ctx, b); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return errors.Convert(err)
		}
		return persistenceOrNotFound(err, action, entityQuestions, qs[0].SessionID)
	}

	return nil
}

func (s *Postgres) sendBatch(ctx context.Context, b *pgx.Batch) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Postgres) CreateLabel(ctx context.Context, text, createdBy string) (*domain.Label, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Persistence("create", entityLabel, "", fmt.Errorf("generate label ID: %w", err))
	}

	l := &domain.Label{ID: id.String(), Text: text, CreatedBy: createdBy}

	const stmt = `INSERT INTO labels (id, text, created_by) VALUES ($1, $2, $3) RETURNING created_at;`
	if err := s.db.QueryRow(ctx, stmt, l.ID, l.Text, l.CreatedBy).Scan(&l.CreatedAt); err != nil {
		return nil, errors.Persistence("create", entityLabel, "", err)
	}

	return l, nil
}

func (s *Postgres) AttachLabel(ctx context.Context, sessionID, labelID, createdBy string) (*domain.SessionLabel, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Persistence("attach", entityLabel, labelID, fmt.Errorf("generate ID: %w", err))
	}

	sl := &domain.SessionLabel{ID: id.String(), LabelID: labelID, SessionID: sessionID, CreatedBy: createdBy}

	const stmt = `
INSERT INTO session_labels (id, label_id, session_id, created_by)
VALUES ($1, $2, $3, $4)
RETURNING created_at;`

	err = s.db.QueryRow(ctx, stmt, sl.ID, sl.LabelID, sl.SessionID, sl.CreatedBy).Scan(&sl.CreatedAt)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("label %s is already attached to session %s", labelID, sessionID),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, persistenceOrNotFound(err, "attach", entityLabel, labelID)
	}

	return sl, nil
}

func (s *Postgres) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Persistence("create", entityUser, "", fmt.Errorf("generate user ID: %w", err))
	}

	u := &domain.User{ID: id.String(), Email: strings.ToLower(email), PasswordHash: passwordHash, IsActive: true}

	const stmt = `
INSERT INTO users (id, email, password_hash)
VALUES ($1, $2, $3)
RETURNING created_at;`

	err = s.db.QueryRow(ctx, stmt, u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("email is already registered: %s", u.Email),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, errors.Persistence("create", entityUser, "", err)
	}

	return u, nil
}

func (s *Postgres) FetchUser(ctx context.Context, id string) (*domain.User, error) {
	return s.fetchUser(ctx, "id", id)
}

func (s *Postgres) FetchUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.fetchUser(ctx, "email", strings.ToLower(email))
}

func (s *Postgres) fetchUser(ctx context.Context, column, value string) (*domain.User, error) {
	stmt := `
SELECT id::text, email, password_hash, is_active, avatar_url, created_at, updated_at
FROM users
WHERE ` + column + ` = $1;`

	var u domain.User
	err := s.db.QueryRow(ctx, stmt, value).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(entityUser, value)
	}
	if err != nil {
		return nil, errors.Persistence("fetch", entityUser, value, err)
	}

	return &u, nil
}

// persistenceOrNotFound reports a foreign key violation as a missing parent row.
func persistenceOrNotFound(err error, action, entity, id string) error {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("failed to %s %s: %s", action, entity, pgErr.Detail),
			errors.WithCause(err))
	}

	return errors.Persistence(action, entity, id, err)
}
