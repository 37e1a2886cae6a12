package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"golang.org/x/exp/slog"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

//go:embed schema_sqlite.sql
var schemaSQLite string

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

// DBTX is implemented by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type statements struct {
	schema string

	createAccount     string
	getAccountByID    string
	getAccountByUID   string
	listAccounts      string
	deleteAccount     string
	deleteUserPosts   string
	createPost        string
	getPostByID       string
	listPostsByUser   string
	updatePostImage   string
	countPosts        string
	countPostsByOwner string
}

var postgresStatements = statements{
	schema: schema,

	createAccount: `
	INSERT INTO users (name, uid, password, dob)
	VALUES($1, $2, $3, $4::date)
	RETURNING id
	`,
	getAccountByID: `
	SELECT
		id,
		name,
		uid,
		password,
		to_char(dob, 'YYYY-MM-DD')
	FROM users
	WHERE id = $1
	`,
	getAccountByUID: `
	SELECT
		id,
		name,
		uid,
		password,
		to_char(dob, 'YYYY-MM-DD')
	FROM users
	WHERE uid = $1
	`,
	listAccounts: `
	SELECT
		id,
		name,
		uid,
		password,
		to_char(dob, 'YYYY-MM-DD')
	FROM users
	ORDER BY id
	`,
	deleteAccount:   `DELETE FROM users WHERE id = $1`,
	deleteUserPosts: `DELETE FROM posts WHERE user_id = $1`,
	createPost: `
	INSERT INTO posts (user_id, note, image)
	VALUES($1, $2, $3)
	RETURNING id
	`,
	getPostByID: `
	SELECT
		id,
		user_id,
		note,
		image
	FROM posts
	WHERE id = $1
	`,
	listPostsByUser: `
	SELECT
		id,
		user_id,
		note,
		image
	FROM posts
	WHERE user_id = $1
	ORDER BY id
	`,
	updatePostImage:   `UPDATE posts SET image = $1 WHERE id = $2`,
	countPosts:        `SELECT COUNT(*) FROM posts`,
	countPostsByOwner: `SELECT COUNT(*) FROM posts WHERE user_id = $1`,
}

var sqliteStatements = statements{
	schema: schemaSQLite,

	createAccount: `
	INSERT INTO users (name, uid, password, dob)
	VALUES(?, ?, ?, ?)
	RETURNING id
	`,
	getAccountByID: `
	SELECT
		id,
		name,
		uid,
		password,
		dob
	FROM users
	WHERE id = ?
	`,
	getAccountByUID: `
	SELECT
		id,
		name,
		uid,
		password,
		dob
	FROM users
	WHERE uid = ?
	`,
	listAccounts: `
	SELECT
		id,
		name,
		uid,
		password,
		dob
	FROM users
	ORDER BY id
	`,
	deleteAccount:   `DELETE FROM users WHERE id = ?`,
	deleteUserPosts: `DELETE FROM posts WHERE user_id = ?`,
	createPost: `
	INSERT INTO posts (user_id, note, image)
	VALUES(?, ?, ?)
	RETURNING id
	`,
	getPostByID: `
	SELECT
		id,
		user_id,
		note,
		image
	FROM posts
	WHERE id = ?
	`,
	listPostsByUser: `
	SELECT
		id,
		user_id,
		note,
		image
	FROM posts
	WHERE user_id = ?
	ORDER BY id
	`,
	updatePostImage:   `UPDATE posts SET image = ? WHERE id = ?`,
	countPosts:        `SELECT COUNT(*) FROM posts`,
	countPostsByOwner: `SELECT COUNT(*) FROM posts WHERE user_id = ?`,
}

func statementsFor(driver string) (statements, error) {
	switch driver {
	case DriverSQLite:
		return sqliteStatements, nil
	case DriverPostgres, DriverPGX:
		return postgresStatements, nil
	default:
		return statements{}, fmt.Errorf("database: unsupported driver %q", driver)
	}
}

// Queries runs the account and post statements against either the
// database or an open transaction.
type Queries struct {
	conn DBTX
	sql  statements
}

type Database struct {
	*Queries
	db     *sql.DB
	driver string
}

func OpenDatabase(ctx context.Context, driver, dsn string) (*Database, error) {
	stmts, err := statementsFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("database: enabling foreign keys: %w", err)
		}
	}

	slog.Debug("Database pinged", "driver", driver)

	return newDatabase(db, driver, stmts), nil
}

func newDatabase(db *sql.DB, driver string, stmts statements) *Database {
	return &Database{
		Queries: &Queries{conn: db, sql: stmts},
		db:      db,
		driver:  driver,
	}
}

// CreateSchema creates the tables when they are absent.
func (d *Database) CreateSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, d.sql.schema); err != nil {
		return fmt.Errorf("database: creating schema: %w", err)
	}

	slog.Info("Database schema is ready", "driver", d.driver)

	return nil
}

func (d *Database) Close() error {
	slog.Info("Closing the database", "driver", d.driver)
	return d.db.Close()
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic; panics are rethrown.
func (d *Database) WithTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(&Queries{conn: tx, sql: d.sql})
	return err
}

// DeleteAccount removes the account and every post it owns in one
// transaction.
func (d *Database) DeleteAccount(ctx context.Context, id int64) error {
	return d.WithTx(ctx, func(q *Queries) error {
		return q.DeleteAccount(ctx, id)
	})
}

func (q *Queries) CreateAccount(ctx context.Context, a Account) (Account, error) {
	row := q.conn.QueryRowContext(ctx, q.sql.createAccount, a.Name, a.UID, a.PasswordHash, a.DOB.Format(DateLayout))
	if err := row.Scan(&a.ID); err != nil {
		return Account{}, fmt.Errorf("creating account %q: %w", a.UID, classifyError(err))
	}

	return a, nil
}

func (q *Queries) GetAccountByID(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(q.conn.QueryRowContext(ctx, q.sql.getAccountByID, id))
	if err != nil {
		return Account{}, fmt.Errorf("selecting account %d: %w", id, err)
	}

	return a, nil
}

func (q *Queries) GetAccountByUID(ctx context.Context, uid string) (Account, error) {
	a, err := scanAccount(q.conn.QueryRowContext(ctx, q.sql.getAccountByUID, uid))
	if err != nil {
		return Account{}, fmt.Errorf("selecting account %q: %w", uid, err)
	}

	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.conn.QueryContext(ctx, q.sql.listAccounts)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var items []Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("listing accounts: %w", err)
		}

		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	return items, nil
}

// DeleteAccount deletes dependent posts before the account itself. Run it
// inside a transaction, see Database.DeleteAccount.
func (q *Queries) DeleteAccount(ctx context.Context, id int64) error {
	if _, err := q.conn.ExecContext(ctx, q.sql.deleteUserPosts, id); err != nil {
		return fmt.Errorf("deleting posts of account %d: %w", id, err)
	}

	res, err := q.conn.ExecContext(ctx, q.sql.deleteAccount, id)
	if err != nil {
		return fmt.Errorf("deleting account %d: %w", id, err)
	}

	if err := expectAffected(res); err != nil {
		return fmt.Errorf("deleting account %d: %w", id, err)
	}

	return nil
}

func (q *Queries) CreatePost(ctx context.Context, p NewPost) (Post, error) {
	post := Post{UserID: p.UserID, Note: p.Note, Image: p.Image}

	row := q.conn.QueryRowContext(ctx, q.sql.createPost, p.UserID, p.Note, p.Image)
	if err := row.Scan(&post.ID); err != nil {
		return Post{}, fmt.Errorf("creating post for account %d: %w", p.UserID, classifyError(err))
	}

	return post, nil
}

func (q *Queries) GetPostByID(ctx context.Context, id int64) (Post, error) {
	p, err := scanPost(q.conn.QueryRowContext(ctx, q.sql.getPostByID, id))
	if err != nil {
		return Post{}, fmt.Errorf("selecting post %d: %w", id, err)
	}

	return p, nil
}

func (q *Queries) ListPostsByUser(ctx context.Context, userID int64) ([]Post, error) {
	rows, err := q.conn.QueryContext(ctx, q.sql.listPostsByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("listing posts of account %d: %w", userID, err)
	}
	defer rows.Close()

	var items []Post

	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("listing posts of account %d: %w", userID, err)
		}

		items = append(items, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing posts of account %d: %w", userID, err)
	}

	return items, nil
}

// UpdatePostImage overwrites the stored image payload in place.
func (q *Queries) UpdatePostImage(ctx context.Context, id int64, image *string) error {
	res, err := q.conn.ExecContext(ctx, q.sql.updatePostImage, image, id)
	if err != nil {
		return fmt.Errorf("updating image of post %d: %w", id, err)
	}

	if err := expectAffected(res); err != nil {
		return fmt.Errorf("updating image of post %d: %w", id, err)
	}

	return nil
}

func (q *Queries) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	if err := q.conn.QueryRowContext(ctx, q.sql.countPosts).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}

	return n, nil
}

func (q *Queries) CountPostsByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	if err := q.conn.QueryRowContext(ctx, q.sql.countPostsByOwner, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts of account %d: %w", userID, err)
	}

	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (Account, error) {
	var (
		a   Account
		dob string
	)

	if err := row.Scan(&a.ID, &a.Name, &a.UID, &a.PasswordHash, &dob); err != nil {
		return Account{}, classifyError(err)
	}

	t, err := time.Parse(DateLayout, dob)
	if err != nil {
		return Account{}, fmt.Errorf("parsing dob %q: %w", dob, err)
	}
	a.DOB = t

	return a, nil
}

func scanPost(row scanner) (Post, error) {
	var p Post
	if err := row.Scan(&p.ID, &p.UserID, &p.Note, &p.Image); err != nil {
		return Post{}, classifyError(err)
	}

	return p, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}
