/*
Package sqlite provides a SQLite-backed implementation of the leave
storage interfaces.

PURPOSE:
  Implements leave.Store (users, categories, requests) using SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  users:      Principals with role and bcrypt password hash
  categories: Caller-keyed category registry
  requests:   Leave requests with lifecycle status

TRANSITION ENFORCEMENT:
  Status transitions are compare-and-set in SQL:

    UPDATE requests SET stato = ? ... WHERE richiesta_id = ? AND stato = 'In attesa'

  RowsAffected distinguishes a successful transition from a lost race; a
  second concurrent evaluate or withdraw fails with ErrInvalidTransition.

CATEGORY DELETION:
  DeleteCategory counts referencing requests inside the same transaction
  as the DELETE, so a concurrent request creation cannot slip between
  check and delete. Request inserts run with foreign keys on, closing the
  race from the other side.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/leave"
)

const dateFormat = "2006-01-02"

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Principals
	CREATE TABLE IF NOT EXISTS users (
		utente_id INTEGER PRIMARY KEY AUTOINCREMENT,
		nome TEXT NOT NULL,
		cognome TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		ruolo TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Category registry (caller-supplied ids)
	CREATE TABLE IF NOT EXISTS categories (
		categoria_id INTEGER PRIMARY KEY,
		descrizione TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS requests (
		richiesta_id INTEGER PRIMARY KEY AUTOINCREMENT,
		utente_id INTEGER NOT NULL REFERENCES users(utente_id),
		categoria_id INTEGER NOT NULL REFERENCES categories(categoria_id),
		data_inizio TEXT NOT NULL,
		data_fine TEXT NOT NULL,
		motivazione TEXT,
		stato TEXT NOT NULL DEFAULT 'In attesa',
		created_at TEXT NOT NULL,
		valutatore_id INTEGER REFERENCES users(utente_id),
		valutato_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_utente
		ON requests(utente_id);
	CREATE INDEX IF NOT EXISTS idx_requests_stato
		ON requests(stato);
	CREATE INDEX IF NOT EXISTS idx_requests_categoria
		ON requests(categoria_id);

	-- For statistics queries over approved requests by evaluation date
	CREATE INDEX IF NOT EXISTS idx_requests_stato_valutato
		ON requests(stato, valutato_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER STORE
// =============================================================================

// SaveUser persists a new user and returns it with the assigned id.
func (s *Store) SaveUser(ctx context.Context, u leave.User) (leave.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (nome, cognome, email, ruolo, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		u.Nome, u.Cognome, u.Email, string(u.Role), u.PasswordHash,
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.User{}, leave.ErrDuplicateEmail
		}
		return leave.User{}, fmt.Errorf("failed to save user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return leave.User{}, err
	}
	u.ID = int(id)
	return u, nil
}

// GetUser returns the user by id, or nil when absent.
func (s *Store) GetUser(ctx context.Context, id int) (*leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT utente_id, nome, cognome, email, ruolo, password_hash, created_at
		FROM users WHERE utente_id = ?
	`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user by email, or nil when absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT utente_id, nome, cognome, email, ruolo, password_hash, created_at
		FROM users WHERE email = ? COLLATE NOCASE
	`, email)
	return scanUser(row)
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT utente_id, nome, cognome, email, ruolo, password_hash, created_at
		FROM users ORDER BY utente_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []leave.User
	for rows.Next() {
		var u leave.User
		var role, createdAt string
		if err := rows.Scan(&u.ID, &u.Nome, &u.Cognome, &u.Email, &role, &u.PasswordHash, &createdAt); err != nil {
			return nil, err
		}
		u.Role = leave.Role(role)
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (*leave.User, error) {
	var u leave.User
	var role, createdAt string
	err := row.Scan(&u.ID, &u.Nome, &u.Cognome, &u.Email, &role, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = leave.Role(role)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// =============================================================================
// CATEGORY STORE
// =============================================================================

// SaveCategory persists a new category with its caller-supplied id.
func (s *Store) SaveCategory(ctx context.Context, c leave.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (categoria_id, descrizione, created_at)
		VALUES (?, ?, ?)
	`, c.ID, c.Description, c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrDuplicateCategory
		}
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// UpdateCategory replaces the description. The id is immutable.
func (s *Store) UpdateCategory(ctx context.Context, id int, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET descrizione = ? WHERE categoria_id = ?
	`, description, id)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &leave.NotFoundError{Kind: "category", ID: id}
	}
	return nil
}

// DeleteCategory removes a category. The referenced-by-requests check and
// the delete run in one transaction.
func (s *Store) DeleteCategory(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var inUse int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE categoria_id = ?`, id,
	).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return leave.ErrCategoryInUse
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE categoria_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &leave.NotFoundError{Kind: "category", ID: id}
	}

	return tx.Commit()
}

// GetCategory returns the category by id, or nil when absent.
func (s *Store) GetCategory(ctx context.Context, id int) (*leave.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c leave.Category
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT categoria_id, descrizione, created_at FROM categories WHERE categoria_id = ?
	`, id).Scan(&c.ID, &c.Description, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// ListCategories returns all categories ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]leave.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT categoria_id, descrizione, created_at FROM categories ORDER BY categoria_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []leave.Category
	for rows.Next() {
		var c leave.Category
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Description, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// SaveRequest persists a new pending request. The foreign key on
// categoria_id makes the category existence check part of the insert.
func (s *Store) SaveRequest(ctx context.Context, r leave.Request) (leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO requests
		(utente_id, categoria_id, data_inizio, data_fine, motivazione, stato, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		r.UserID, r.CategoryID,
		r.StartDate.Format(dateFormat), r.EndDate.Format(dateFormat),
		nullString(r.Motivation), string(r.Status),
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return leave.Request{}, &leave.NotFoundError{Kind: "category", ID: r.CategoryID}
		}
		return leave.Request{}, fmt.Errorf("failed to save request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return leave.Request{}, err
	}
	r.ID = int(id)
	return r, nil
}

// GetRequest returns the request by id, or nil when absent.
func (s *Store) GetRequest(ctx context.Context, id int) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requests, err := s.queryRequests(ctx, `
		SELECT richiesta_id, utente_id, categoria_id, data_inizio, data_fine,
			motivazione, stato, created_at, valutatore_id, valutato_at
		FROM requests WHERE richiesta_id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// ListRequests returns requests matching the filter in insertion order.
func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT richiesta_id, utente_id, categoria_id, data_inizio, data_fine,
			motivazione, stato, created_at, valutatore_id, valutato_at
		FROM requests
	`
	var conds []string
	var args []any
	if f.UserID != nil {
		conds = append(conds, "utente_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Status != nil {
		conds = append(conds, "stato = ?")
		args = append(args, string(*f.Status))
	}
	if f.CategoryID != nil {
		conds = append(conds, "categoria_id = ?")
		args = append(args, *f.CategoryID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY richiesta_id"

	return s.queryRequests(ctx, query, args...)
}

// TransitionRequest is compare-and-set on status: the UPDATE only matches
// while the request is still pending, so at most one transition wins.
func (s *Store) TransitionRequest(ctx context.Context, id int, to leave.Status, evaluatorID int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET stato = ?, valutatore_id = ?, valutato_at = ?
		WHERE richiesta_id = ? AND stato = ?
	`, string(to), evaluatorID, at.UTC().Format(time.RFC3339), id, string(leave.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to transition request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.classifyMissedUpdate(ctx, id)
	}
	return nil
}

// UpdateRequest edits a pending request (compare-and-set on status).
func (s *Store) UpdateRequest(ctx context.Context, id int, categoryID int, start, end time.Time, motivation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET categoria_id = ?, data_inizio = ?, data_fine = ?, motivazione = ?
		WHERE richiesta_id = ? AND stato = ?
	`, categoryID, start.Format(dateFormat), end.Format(dateFormat),
		nullString(motivation), id, string(leave.StatusPending))
	if err != nil {
		if isForeignKeyError(err) {
			return &leave.NotFoundError{Kind: "category", ID: categoryID}
		}
		return fmt.Errorf("failed to update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.classifyMissedUpdate(ctx, id)
	}
	return nil
}

// DeleteRequest removes a request. With onlyPending set, the DELETE is
// compare-and-set on status.
func (s *Store) DeleteRequest(ctx context.Context, id int, onlyPending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `DELETE FROM requests WHERE richiesta_id = ?`
	args := []any{id}
	if onlyPending {
		query += ` AND stato = ?`
		args = append(args, string(leave.StatusPending))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if onlyPending {
			return s.classifyMissedUpdate(ctx, id)
		}
		return &leave.NotFoundError{Kind: "request", ID: id}
	}
	return nil
}

// classifyMissedUpdate distinguishes "row absent" from "row no longer
// pending" after a compare-and-set matched zero rows.
func (s *Store) classifyMissedUpdate(ctx context.Context, id int) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE richiesta_id = ?`, id,
	).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return &leave.NotFoundError{Kind: "request", ID: id}
	}
	return leave.ErrInvalidTransition
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []leave.Request
	for rows.Next() {
		var r leave.Request
		var start, end, status, createdAt string
		var motivation, evaluatedAt sql.NullString
		var evaluatorID sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.CategoryID, &start, &end,
			&motivation, &status, &createdAt, &evaluatorID, &evaluatedAt,
		); err != nil {
			return nil, err
		}

		r.StartDate, _ = time.Parse(dateFormat, start)
		r.EndDate, _ = time.Parse(dateFormat, end)
		r.Motivation = motivation.String
		r.Status = leave.Status(status)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if evaluatorID.Valid {
			id := int(evaluatorID.Int64)
			r.EvaluatorID = &id
		}
		if evaluatedAt.Valid {
			t, _ := time.Parse(time.RFC3339, evaluatedAt.String)
			r.EvaluatedAt = &t
		}

		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
