package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database is the Store: a SQLite connection with the library schema applied.
type Database struct {
	db   *sqlx.DB
	path string
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	if err := applyMigrations(dbPath); err != nil {
		return nil, err
	}

	// Writers take the lock at BEGIN and wait up to 5s for it.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL&_txlock=immediate", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Database{db: db, path: dbPath}, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// DB exposes the handle for read-only queries outside a transaction.
func (d *Database) DB() *sqlx.DB { return d.db }

// Path is the file the database was opened from.
func (d *Database) Path() string { return d.path }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

func applyMigrations(dbPath string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+dbPath)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// InTx runs fn inside one transaction. fn's error rolls everything back.
func (d *Database) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// User helpers
// ---------------------------------------------------------------------------

func insertUser(ctx context.Context, q sqlx.ExtContext, u User) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO Users(name, email, address) VALUES(?, ?, ?)`, u.Name, u.Email, u.Address)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func getUser(ctx context.Context, q sqlx.ExtContext, id int64) (User, error) {
	var u User
	err := sqlx.GetContext(ctx, q, &u, `SELECT userID, name, email, address FROM Users WHERE userID=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return u, err
}

func getUserByEmail(ctx context.Context, q sqlx.ExtContext, email string) (User, error) {
	var u User
	err := sqlx.GetContext(ctx, q, &u, `SELECT userID, name, email, address FROM Users WHERE email=?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return u, err
}

func emailTaken(ctx context.Context, q sqlx.ExtContext, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM Users WHERE email=?)`, email)
	return exists, err
}

func updateUser(ctx context.Context, q sqlx.ExtContext, u User) error {
	_, err := q.ExecContext(ctx, `UPDATE Users SET name=?, email=?, address=? WHERE userID=?`, u.Name, u.Email, u.Address, u.ID)
	return err
}

func deleteUser(ctx context.Context, q sqlx.ExtContext, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM Users WHERE userID=?`, id)
	return err
}

func listUsers(ctx context.Context, q sqlx.ExtContext) ([]User, error) {
	users := make([]User, 0)
	err := sqlx.SelectContext(ctx, q, &users, `SELECT userID, name, email, address FROM Users ORDER BY userID`)
	return users, err
}
