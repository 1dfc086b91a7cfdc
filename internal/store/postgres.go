package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"autodoc/api/internal/docdata"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM "Users" WHERE "Username"=$1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO "Users" ("Username", "PasswordHash", "Role")
		VALUES ($1, $2, $3)
	`, user.Username, user.PasswordHash, user.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert user %q: %w", user.Username, ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT "Username", "PasswordHash", "Role" FROM "Users" WHERE "Username"=$1
	`, username).Scan(&user.Username, &user.PasswordHash, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, formName string, data docdata.Object) (Document, error) {
	if data == nil {
		data = docdata.Object{}
	}
	doc := Document{FormName: formName, Data: data}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO "Documents" ("FormName", "Data")
		VALUES ($1, $2::jsonb)
		RETURNING "Id"
	`, formName, docdata.NewColumn(data)).Scan(&doc.ID)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	return s.queryDocuments(ctx, `SELECT "Id", "FormName", "Data" FROM "Documents" ORDER BY "Id"`)
}

func (s *PostgresStore) ListDocumentsByFormName(ctx context.Context, formName string) ([]Document, error) {
	return s.queryDocuments(ctx, `
		SELECT "Id", "FormName", "Data" FROM "Documents"
		WHERE "FormName"=$1
		ORDER BY "Id"
	`, formName)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (Document, error) {
	var doc Document
	var data docdata.Column[docdata.Object]
	err := s.db.QueryRowContext(ctx, `
		SELECT "Id", "FormName", "Data" FROM "Documents" WHERE "Id"=$1
	`, id).Scan(&doc.ID, &doc.FormName, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %d: %w", id, err)
	}
	doc.Data = nonNilObject(data.V)
	return doc, nil
}

// UpdateDocument replaces both FormName and Data; keys missing from data
// do not survive.
func (s *PostgresStore) UpdateDocument(ctx context.Context, id int64, formName string, data docdata.Object) (Document, error) {
	if data == nil {
		data = docdata.Object{}
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE "Documents" SET "FormName"=$2, "Data"=$3::jsonb WHERE "Id"=$1
	`, id, formName, docdata.NewColumn(data))
	if err != nil {
		return Document{}, fmt.Errorf("update document %d: %w", id, err)
	}
	if err := expectRow(result); err != nil {
		return Document{}, err
	}
	return Document{ID: id, FormName: formName, Data: data}, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM "Documents" WHERE "Id"=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return expectRow(result)
}

// SchemaNames returns the distinct schemaName labels across all documents,
// whether stored as a string or an array of strings.
func (s *PostgresStore) SchemaNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT "Data"->'schemaName' FROM "Documents"
		WHERE "Data" ? 'schemaName'
	`)
	if err != nil {
		return nil, fmt.Errorf("query schema names: %w", err)
	}
	defer rows.Close()

	var raws [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema names: %w", err)
	}
	return docdata.FlattenSchemaNames(raws), nil
}

// SearchDocuments is the full-text fallback over form name and JSON body.
func (s *PostgresStore) SearchDocuments(ctx context.Context, text string, limit, offset int) ([]SearchHit, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const vector = `to_tsvector('english', "FormName" || ' ' || "Data"::text)`
	const query = `plainto_tsquery('english', $1)`

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM "Documents" WHERE `+vector+` @@ `+query, text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT "Id", "FormName",
			ts_headline('english', "Data"::text, `+query+`, 'MaxFragments=1,MaxWords=30') AS snippet,
			ts_rank(`+vector+`, `+query+`) AS rank
		FROM "Documents"
		WHERE `+vector+` @@ `+query+`
		ORDER BY rank DESC, "Id"
		LIMIT $2 OFFSET $3
	`, text, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	hits := make([]SearchHit, 0)
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(&hit.ID, &hit.FormName, &hit.Snippet, &hit.Rank); err != nil {
			return nil, 0, fmt.Errorf("search scan: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, total, rows.Err()
}

func (s *PostgresStore) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		var data docdata.Column[docdata.Object]
		if err := rows.Scan(&doc.ID, &doc.FormName, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Data = nonNilObject(data.V)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func expectRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNilObject(obj docdata.Object) docdata.Object {
	if obj == nil {
		return docdata.Object{}
	}
	return obj
}
