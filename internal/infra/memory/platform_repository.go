package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"quizplay/internal/domain"
)

// PlatformRepository keeps accounts and plays in process. Plays are unique per (user, quiz).
type PlatformRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
	plays map[string]map[string]domain.PlayRecord
}

func NewPlatformRepository() *PlatformRepository {
	return &PlatformRepository{
		users: make(map[string]domain.User),
		plays: make(map[string]map[string]domain.PlayRecord),
	}
}

func (r *PlatformRepository) CreateUser(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return domain.ErrConflict
	}
	if r.emailTakenLocked(user.Email, "") {
		return domain.ErrConflict
	}
	r.users[user.ID] = user
	return nil
}

func (r *PlatformRepository) UserByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (r *PlatformRepository) UserByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

// UpdateUser replaces the profile fields. Score is owned by RecordPlay and is kept.
func (r *PlatformRepository) UpdateUser(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if r.emailTakenLocked(user.Email, user.ID) {
		return domain.ErrConflict
	}
	user.Score = existing.Score
	user.CreatedAt = existing.CreatedAt
	r.users[user.ID] = user
	return nil
}

func (r *PlatformRepository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.users, id)
	delete(r.plays, id)
	return nil
}

func (r *PlatformRepository) Played(_ context.Context, userID string) ([]domain.PlayRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.users[userID]; !ok {
		return nil, domain.ErrNotFound
	}
	records := make([]domain.PlayRecord, 0, len(r.plays[userID]))
	for _, rec := range r.plays[userID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].AnsweredAt.Equal(records[j].AnsweredAt) {
			return records[i].AnsweredAt.Before(records[j].AnsweredAt)
		}
		return records[i].QuizID < records[j].QuizID
	})
	return records, nil
}

// RecordPlay stores the play and adds points in one step, returning the new score.
// A second play of the same quiz is ErrConflict and changes nothing.
func (r *PlatformRepository) RecordPlay(_ context.Context, userID, quizID string, points int, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	plays := r.plays[userID]
	if plays == nil {
		plays = make(map[string]domain.PlayRecord)
		r.plays[userID] = plays
	}
	if _, played := plays[quizID]; played {
		return 0, domain.ErrConflict
	}
	plays[quizID] = domain.PlayRecord{QuizID: quizID, AnsweredAt: at}
	user.Score += points
	r.users[userID] = user
	return user.Score, nil
}

func (r *PlatformRepository) emailTakenLocked(email, exceptID string) bool {
	for id, user := range r.users {
		if id != exceptID && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}
