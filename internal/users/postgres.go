package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// PostgresStore keeps users and profiles in Postgres through the pgx driver.
type PostgresStore struct {
	DB *sql.DB
}

func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      VARCHAR(150) NOT NULL UNIQUE,
		password_hash BYTEA NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS profiles (
		user_id              UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		country              VARCHAR(100),
		budget               NUMERIC(10,2),
		preferred_activities TEXT
	);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, username string, passwordHash []byte) (User, error) {
	if s.DB == nil {
		return User{}, errors.New("user store: db is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("create user: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	u := User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash}
	err = tx.QueryRowContext(ctx, `
	INSERT INTO users (id, username, password_hash)
	VALUES ($1, $2, $3)
	RETURNING created_at;
	`, u.ID, u.Username, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: insert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (user_id) VALUES ($1);`, u.ID); err != nil {
		return User{}, fmt.Errorf("create user: insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("create user commit: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx, `
	SELECT id, username, password_hash, created_at
	FROM users
	WHERE username = $1;
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Profile(ctx context.Context, userID string) (Profile, error) {
	var country, budget, activities sql.NullString
	err := s.DB.QueryRowContext(ctx, `
	SELECT country, budget::text, preferred_activities
	FROM profiles
	WHERE user_id = $1;
	`, userID).Scan(&country, &budget, &activities)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}

	p := Profile{UserID: userID, Country: country.String, PreferredActivities: activities.String}
	if budget.Valid {
		p.Budget = &budget.String
	}
	return p, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p Profile) error {
	res, err := s.DB.ExecContext(ctx, `
	UPDATE profiles
	SET country = $2,
		budget = $3::numeric,
		preferred_activities = $4
	WHERE user_id = $1;
	`, p.UserID, p.Country, p.Budget, p.PreferredActivities)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save profile: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
