package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quizplay/internal/domain"
)

const uniqueViolation = "23505"

// Repository stores platform accounts and plays. The plays primary key on (user_id, quiz_id)
// is what makes a quiz playable once.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, role, password_hash, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, string(user.Role),
		user.PasswordHash, user.Score, user.CreatedAt)
	if err != nil {
		return mapWriteErr("create user", err)
	}
	return nil
}

const selectUser = `SELECT id, username, email, first_name, last_name, role, password_hash, score, created_at FROM users`

func (r *Repository) UserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE lower(email) = lower($1)`, email))
}

// UpdateUser replaces the profile fields; the score column is left to RecordPlay.
func (r *Repository) UpdateUser(ctx context.Context, user domain.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, role = $6, password_hash = $7
		WHERE id = $1`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, string(user.Role), user.PasswordHash)
	if err != nil {
		return mapWriteErr("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Played(ctx context.Context, userID string) ([]domain.PlayRecord, error) {
	if _, err := r.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT quiz_id, answered_at FROM plays WHERE user_id = $1 ORDER BY answered_at, quiz_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load plays: %w", err)
	}
	defer rows.Close()

	records := make([]domain.PlayRecord, 0)
	for rows.Next() {
		var rec domain.PlayRecord
		if err := rows.Scan(&rec.QuizID, &rec.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan play: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordPlay inserts the play and adds points in one transaction, returning the new score.
func (r *Repository) RecordPlay(ctx context.Context, userID, quizID string, points int, at time.Time) (int, error) {
	var score int
	err := r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var exists int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO plays (user_id, quiz_id, answered_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			userID, quizID, at)
		if err != nil {
			return fmt.Errorf("insert play: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		if err := tx.QueryRow(ctx,
			`UPDATE users SET score = score + $2 WHERE id = $1 RETURNING score`, userID, points).Scan(&score); err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

func (r *Repository) scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
		&role, &user.PasswordHash, &user.Score, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	user.Role = domain.Role(role)
	return user, nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
