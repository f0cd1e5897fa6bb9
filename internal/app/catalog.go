package app

import (
	"context"

	"golang.org/x/sync/singleflight"
	"quizplay/internal/domain"
)

// CatalogService lists quizzes, categories and an identity's played quizzes.
type CatalogService interface {
	ListQuizzes(ctx context.Context) ([]domain.QuizItem, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListPlayed(ctx context.Context, userID, token string) ([]domain.PlayRecord, error)
}

// CatalogFetcher is a pure read over the catalog service. It keeps no state between calls;
// concurrent FetchCatalog calls share one request.
type CatalogFetcher struct {
	catalog CatalogService
	sf      singleflight.Group
}

func NewCatalogFetcher(catalog CatalogService) *CatalogFetcher {
	return &CatalogFetcher{catalog: catalog}
}

// FetchCatalog returns all quizzes in server order.
func (f *CatalogFetcher) FetchCatalog(ctx context.Context) ([]domain.QuizItem, error) {
	// The shared call outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	result, err, _ := f.sf.Do("quizzes", func() (interface{}, error) {
		return f.catalog.ListQuizzes(shared)
	})
	if err != nil {
		return nil, err
	}
	quizzes := result.([]domain.QuizItem)
	items := make([]domain.QuizItem, len(quizzes))
	copy(items, quizzes)
	return items, nil
}

// FetchPlayed returns the quizzes identity has already answered.
func (f *CatalogFetcher) FetchPlayed(ctx context.Context, identity domain.Identity) (domain.PlayedSet, error) {
	if !identity.Authenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	records, err := f.catalog.ListPlayed(ctx, identity.ID, identity.Token)
	if err != nil {
		return nil, err
	}
	return domain.NewPlayedSet(records), nil
}

// FetchCategories returns the category list used by the dashboard.
func (f *CatalogFetcher) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	return f.catalog.ListCategories(ctx)
}
