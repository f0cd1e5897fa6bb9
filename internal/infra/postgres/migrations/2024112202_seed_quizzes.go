package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed seed_quizzes.sql
var seedQuizzesSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, seedQuizzesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DELETE FROM quizzes WHERE id LIKE 'seed-%'`)
			return err
		},
	)
}
