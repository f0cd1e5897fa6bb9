package app_test

import (
	"context"
	"errors"
	"sync"

	"quizplay/internal/domain"
	"quizplay/internal/infra/memory"
)

// fakePlatform stands in for the remote platform. Submissions can be held open with hold
// to exercise in-flight behaviour.
type fakePlatform struct {
	mu         sync.Mutex
	users      map[string]domain.Identity
	quizzes    []domain.QuizItem
	categories []domain.Category
	played     map[string][]domain.PlayRecord
	scores     map[string]int

	identityErr error
	playedErr   error
	submitErr   error
	submitHook  func(ctx context.Context, quizID string) error
	listHook    func(ctx context.Context) error

	submitCalls int
	entered     chan string
	hold        chan struct{}
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		users:  make(map[string]domain.Identity),
		played: make(map[string][]domain.PlayRecord),
		scores: make(map[string]int),
	}
}

func (f *fakePlatform) GetIdentity(_ context.Context, id, token string) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identityErr != nil {
		return domain.Identity{}, f.identityErr
	}
	u, ok := f.users[id]
	if !ok {
		return domain.Identity{}, domain.ErrNotFound
	}
	if u.Token != token {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	u.Token = ""
	return u, nil
}

func (f *fakePlatform) ListQuizzes(ctx context.Context) ([]domain.QuizItem, error) {
	f.mu.Lock()
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.QuizItem(nil), f.quizzes...), nil
}

func (f *fakePlatform) ListCategories(_ context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Category(nil), f.categories...), nil
}

func (f *fakePlatform) ListPlayed(_ context.Context, userID, _ string) ([]domain.PlayRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playedErr != nil {
		return nil, f.playedErr
	}
	return append([]domain.PlayRecord(nil), f.played[userID]...), nil
}

func (f *fakePlatform) SubmitAnswer(ctx context.Context, userID, quizID, answer, _ string) (domain.PlayResult, error) {
	f.mu.Lock()
	f.submitCalls++
	entered, hold, hook, submitErr := f.entered, f.hold, f.submitHook, f.submitErr
	f.mu.Unlock()

	if entered != nil {
		entered <- quizID
	}
	if hold != nil {
		<-hold
	}
	if hook != nil {
		if err := hook(ctx, quizID); err != nil {
			return domain.PlayResult{}, err
		}
	}
	if submitErr != nil {
		return domain.PlayResult{}, submitErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[userID] += 10
	f.played[userID] = append(f.played[userID], domain.PlayRecord{QuizID: quizID})
	return domain.PlayResult{Score: f.scores[userID]}, nil
}

func (f *fakePlatform) Login(_ context.Context, creds domain.Credentials) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == creds.Email {
			return u, nil
		}
	}
	return domain.Identity{}, domain.ErrUnauthorized
}

func (f *fakePlatform) Signup(_ context.Context, reg domain.Registration) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := domain.Identity{ID: "new", DisplayName: reg.Username, Email: reg.Email, Role: domain.RolePlayer, Token: "tok-new"}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakePlatform) UpdateProfile(_ context.Context, actor domain.Identity, update domain.ProfileUpdate) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := actor.ID
	u, ok := f.users[id]
	if !ok {
		return domain.Identity{}, domain.ErrNotFound
	}
	u.DisplayName = update.Username
	u.Email = update.Email
	f.users[id] = u
	u.Token = ""
	return u, nil
}

func (f *fakePlatform) DeleteAccount(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

func (f *fakePlatform) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func (f *fakePlatform) addUser(u domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	f.scores[u.ID] = u.Score
}

// ctxSnapshotStore rejects writes on a done context, like the Redis store does.
type ctxSnapshotStore struct {
	*memory.SnapshotStore
}

func (s ctxSnapshotStore) Write(ctx context.Context, identity domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SnapshotStore.Write(ctx, identity)
}

var errDiskFull = errors.New("disk full")

// brokenSnapshotStore fails every write.
type brokenSnapshotStore struct {
	*memory.SnapshotStore
}

func (brokenSnapshotStore) Write(context.Context, domain.Identity) error {
	return errDiskFull
}
