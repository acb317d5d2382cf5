package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/pressly/goose/v3"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var gooseMu sync.Mutex

// SQLite time layout with fixed width so that created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultSearchLimit caps Search when the caller passes a non-positive limit
const DefaultSearchLimit = 3

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLite implements PassageStore and InteractionLog on a single database file
type SQLite struct {
	db   *sql.DB
	path string
}

var _ PassageStore = (*SQLite)(nil)
var _ InteractionLog = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and applies the embedded schema
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("database path is required")
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	if path == ":memory:" {
		// every connection of an in-memory database is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate sqlite", goerr.V("path", path))
	}

	return &SQLite{db: db, path: path}, nil
}

func buildDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

func migrate(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseMu.Unlock()
	}()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return goerr.Wrap(err, "failed to set goose dialect")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	return nil
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func validateTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return goerr.Wrap(ErrInvalidTable, "table name must be an identifier", goerr.V("table", table))
	}
	return nil
}

// EnsureTable creates a passage table with the same shape as the built-in one
func (s *SQLite) EnsureTable(ctx context.Context, table string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY,
		title TEXT,
		body TEXT NOT NULL UNIQUE
	)`, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return goerr.Wrap(err, "failed to create passage table", goerr.V("table", table))
	}
	return nil
}

func (s *SQLite) Search(ctx context.Context, table, pattern string, limit int) ([]*model.Passage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	like := "%" + pattern + "%"
	qb := squirrel.Select("id", "title", "body").
		From(table).
		Where(squirrel.Or{
			squirrel.Like{"title": like},
			squirrel.Like{"body": like},
		}).
		OrderBy("id")
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	qb = qb.Limit(uint64(limit))

	return s.queryPassages(ctx, qb, table)
}

func (s *SQLite) FindFirst(ctx context.Context, table string, patterns []string) (*model.Passage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	cond := make(squirrel.Or, 0, len(patterns))
	for _, p := range patterns {
		cond = append(cond, squirrel.Like{"body": "%" + p + "%"})
	}

	qb := squirrel.Select("id", "title", "body").
		From(table).
		Where(cond).
		OrderBy("id").
		Limit(1)

	passages, err := s.queryPassages(ctx, qb, table)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, nil
	}
	return passages[0], nil
}

func (s *SQLite) queryPassages(ctx context.Context, qb squirrel.SelectBuilder, table string) ([]*model.Passage, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build passage query", goerr.V("table", table))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query passages", goerr.V("table", table))
	}
	defer rows.Close()

	var passages []*model.Passage
	for rows.Next() {
		var (
			p     model.Passage
			title sql.NullString
		)
		if err := rows.Scan(&p.ID, &title, &p.Body); err != nil {
			return nil, goerr.Wrap(err, "failed to scan passage", goerr.V("table", table))
		}
		p.Title = title.String
		passages = append(passages, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate passages", goerr.V("table", table))
	}

	return passages, nil
}

func (s *SQLite) Insert(ctx context.Context, table string, passage *model.Passage) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}
	if err := passage.Validate(); err != nil {
		return false, goerr.Wrap(err, "invalid passage")
	}

	var title any
	if t := strings.TrimSpace(passage.Title); t != "" {
		title = t
	}

	query, args, err := squirrel.Insert(table).
		Columns("title", "body").
		Values(title, passage.Body).
		Suffix("ON CONFLICT(body) DO NOTHING").
		ToSql()
	if err != nil {
		return false, goerr.Wrap(err, "failed to build insert query", goerr.V("table", table))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, goerr.Wrap(err, "failed to insert passage", goerr.V("table", table))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to get affected rows", goerr.V("table", table))
	}
	if n == 0 {
		return false, nil
	}

	if id, err := res.LastInsertId(); err == nil {
		passage.ID = id
	}
	return true, nil
}

func (s *SQLite) Count(ctx context.Context, table string) (int, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query, args, err := squirrel.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to build count query", goerr.V("table", table))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count passages", goerr.V("table", table))
	}
	return n, nil
}

func (s *SQLite) PutInteraction(ctx context.Context, interaction *model.Interaction) error {
	query, args, err := squirrel.Insert("interactions").
		Columns("id", "question", "answer", "agent", "created_at").
		Values(
			string(interaction.ID),
			interaction.Question,
			interaction.Answer,
			interaction.Agent,
			interaction.CreatedAt.UTC().Format(timeLayout),
		).
		ToSql()
	if err != nil {
		return goerr.Wrap(err, "failed to build interaction insert")
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return goerr.Wrap(err, "failed to insert interaction", goerr.V("id", interaction.ID))
	}
	return nil
}

func (s *SQLite) GetInteraction(ctx context.Context, id model.InteractionID) (*model.Interaction, error) {
	qb := squirrel.Select("id", "question", "answer", "agent", "created_at").
		From("interactions").
		Where(squirrel.Eq{"id": string(id)})

	interactions, err := s.queryInteractions(ctx, qb)
	if err != nil {
		return nil, err
	}
	if len(interactions) == 0 {
		return nil, goerr.Wrap(ErrInteractionNotFound, "no such interaction", goerr.V("id", id))
	}
	return interactions[0], nil
}

func (s *SQLite) ListInteractions(ctx context.Context, limit int) ([]*model.Interaction, error) {
	qb := squirrel.Select("id", "question", "answer", "agent", "created_at").
		From("interactions").
		OrderBy("created_at DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	return s.queryInteractions(ctx, qb)
}

func (s *SQLite) queryInteractions(ctx context.Context, qb squirrel.SelectBuilder) ([]*model.Interaction, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build interaction query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query interactions")
	}
	defer rows.Close()

	var interactions []*model.Interaction
	for rows.Next() {
		var (
			it        model.Interaction
			id        string
			createdAt string
		)
		if err := rows.Scan(&id, &it.Question, &it.Answer, &it.Agent, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan interaction")
		}
		ts, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid interaction timestamp", goerr.V("id", id), goerr.V("created_at", createdAt))
		}
		it.ID = model.InteractionID(id)
		it.CreatedAt = ts
		interactions = append(interactions, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate interactions")
	}

	return interactions, nil
}
