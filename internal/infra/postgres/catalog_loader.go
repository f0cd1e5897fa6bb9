package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quizplay/internal/domain"
)

// CatalogLoader loads the quiz catalog from Postgres in insertion order.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, question, category, response, options FROM quizzes ORDER BY position`)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.QuizItem
	for rows.Next() {
		var (
			quiz domain.QuizItem
			raw  []byte
		)
		if err := rows.Scan(&quiz.ID, &quiz.Question, &quiz.Category, &quiz.CorrectAnswer, &raw); err != nil {
			return domain.Catalog{}, fmt.Errorf("scan quiz: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &quiz.Options); err != nil {
				return domain.Catalog{}, fmt.Errorf("unmarshal options of %s: %w", quiz.ID, err)
			}
		}
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	return domain.Catalog{Quizzes: quizzes, Categories: domain.CategoriesOf(quizzes)}, nil
}
