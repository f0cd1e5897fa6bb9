package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quizplay/internal/domain"
)

// CatalogLoader fetches the catalog from a backing store (e.g., Postgres).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogCache keeps the catalog in process with a TTL to avoid repeated DB hits.
type CatalogCache struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	catalog   domain.Catalog
	expiresAt time.Time
	loaded    bool
}

func NewCatalogCache(loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) Quizzes(ctx context.Context) ([]domain.QuizItem, error) {
	catalog, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.QuizItem(nil), catalog.Quizzes...), nil
}

func (c *CatalogCache) Categories(ctx context.Context) ([]domain.Category, error) {
	catalog, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.Category(nil), catalog.Categories...), nil
}

// Invalidate drops the cached catalog so the next read goes to the loader.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

func (c *CatalogCache) get(ctx context.Context) (domain.Catalog, error) {
	if catalog, ok := c.fresh(c.clock()); ok {
		return catalog, nil
	}

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		if catalog, ok := c.fresh(now); ok {
			return catalog, nil
		}

		catalog, err := c.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		c.mu.Lock()
		c.catalog = catalog
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.loaded = true
		c.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (c *CatalogCache) fresh(now time.Time) (domain.Catalog, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded && (c.ttl <= 0 || c.expiresAt.After(now)) {
		return c.catalog, true
	}
	return domain.Catalog{}, false
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves a fixed quiz list (useful for tests/demos).
type StaticCatalogLoader struct {
	quizzes []domain.QuizItem
}

func NewStaticCatalogLoader(quizzes []domain.QuizItem) *StaticCatalogLoader {
	return &StaticCatalogLoader{quizzes: quizzes}
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context) (domain.Catalog, error) {
	return domain.Catalog{
		Quizzes:    append([]domain.QuizItem(nil), l.quizzes...),
		Categories: domain.CategoriesOf(l.quizzes),
	}, nil
}
