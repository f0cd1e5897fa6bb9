package app

import (
	"strings"
	"sync"
	"time"

	"quizplay/internal/domain"
)

// Feedback is the local result shown right after a quiz was answered.
type Feedback struct {
	Answer       string
	Correct      bool
	CorrectKnown bool
}

// PlayTracker derives per-quiz play status from the fetched played set and this session's attempts.
// It never touches the network.
type PlayTracker struct {
	now func() time.Time

	mu        sync.RWMutex
	order     []string
	quizzes   map[string]domain.QuizItem
	played    domain.PlayedSet
	confirmed domain.PlayedSet
	attempts  map[string]*domain.AnswerAttempt
	feedback  map[string]Feedback
}

func NewPlayTracker() *PlayTracker {
	return newPlayTrackerWithClock(time.Now)
}

func newPlayTrackerWithClock(now func() time.Time) *PlayTracker {
	return &PlayTracker{
		now:       now,
		quizzes:   make(map[string]domain.QuizItem),
		played:    make(domain.PlayedSet),
		confirmed: make(domain.PlayedSet),
		attempts:  make(map[string]*domain.AnswerAttempt),
		feedback:  make(map[string]Feedback),
	}
}

// Reset installs a freshly fetched catalog and played set. Pending attempts survive, and so do
// plays confirmed during this session that the fetched set does not know about yet.
func (t *PlayTracker) Reset(catalog []domain.QuizItem, played domain.PlayedSet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.order = make([]string, 0, len(catalog))
	t.quizzes = make(map[string]domain.QuizItem, len(catalog))
	for _, q := range catalog {
		if _, dup := t.quizzes[q.ID]; !dup {
			t.order = append(t.order, q.ID)
		}
		t.quizzes[q.ID] = q
	}

	t.played = make(domain.PlayedSet, len(played)+len(t.confirmed))
	for id, r := range played {
		t.played[id] = r
	}
	for id, r := range t.confirmed {
		if _, ok := t.played[id]; !ok {
			t.played[id] = r
		}
	}
}

// Clear forgets everything; used when the identity goes away.
func (t *PlayTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.quizzes = make(map[string]domain.QuizItem)
	t.played = make(domain.PlayedSet)
	t.confirmed = make(domain.PlayedSet)
	t.attempts = make(map[string]*domain.AnswerAttempt)
	t.feedback = make(map[string]Feedback)
}

// StatusOf returns the play status of quizID.
func (t *PlayTracker) StatusOf(quizID string) domain.PlayStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statusLocked(quizID)
}

// IsEligible reports whether quizID may still be submitted. The engine re-checks this
// atomically when it starts an attempt.
func (t *PlayTracker) IsEligible(quizID string) bool {
	return t.StatusOf(quizID) == domain.StatusUnplayed
}

// Quiz looks up a catalog item.
func (t *PlayTracker) Quiz(quizID string) (domain.QuizItem, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, ok := t.quizzes[quizID]
	return q, ok
}

// Quizzes returns the catalog in server order.
func (t *PlayTracker) Quizzes() []domain.QuizItem {
	return t.Filter("")
}

// Filter returns catalog items whose category contains term, ignoring case.
func (t *PlayTracker) Filter(term string) []domain.QuizItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	term = strings.ToLower(strings.TrimSpace(term))
	items := make([]domain.QuizItem, 0, len(t.order))
	for _, id := range t.order {
		q := t.quizzes[id]
		if term != "" && !strings.Contains(strings.ToLower(q.Category), term) {
			continue
		}
		items = append(items, q)
	}
	return items
}

// PlayedCount returns how many quizzes are known to be played.
func (t *PlayTracker) PlayedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.played)
}

// Feedback returns the local feedback recorded for quizID in this session.
func (t *PlayTracker) Feedback(quizID string) (Feedback, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fb, ok := t.feedback[quizID]
	return fb, ok
}

// MarkPlayed records a play confirmed by the server outside of this session's submissions.
func (t *PlayTracker) MarkPlayed(record domain.PlayRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.played[record.QuizID] = record
	t.confirmed[record.QuizID] = record
}

// begin atomically checks eligibility and moves quizID to Pending.
func (t *PlayTracker) begin(quizID, answer string) (*domain.AnswerAttempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.statusLocked(quizID) {
	case domain.StatusPlayed:
		return nil, domain.ErrAlreadyPlayed
	case domain.StatusPending:
		return nil, domain.ErrSubmissionInFlight
	}
	attempt := &domain.AnswerAttempt{
		QuizID:    quizID,
		Answer:    answer,
		Status:    domain.AttemptPending,
		StartedAt: t.now(),
	}
	t.attempts[quizID] = attempt
	return attempt, nil
}

// succeed folds a resolved attempt into the played set. Attempts dropped by Clear are ignored.
func (t *PlayTracker) succeed(attempt *domain.AnswerAttempt, fb Feedback) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	attempt.Status = domain.AttemptSucceeded
	if t.attempts[attempt.QuizID] != attempt {
		return false
	}
	delete(t.attempts, attempt.QuizID)
	record := domain.PlayRecord{QuizID: attempt.QuizID, AnsweredAt: t.now()}
	t.played[attempt.QuizID] = record
	t.confirmed[attempt.QuizID] = record
	t.feedback[attempt.QuizID] = fb
	return true
}

// fail discards the attempt so quizID returns to its prior state.
func (t *PlayTracker) fail(attempt *domain.AnswerAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	attempt.Status = domain.AttemptFailed
	if t.attempts[attempt.QuizID] == attempt {
		delete(t.attempts, attempt.QuizID)
	}
}

func (t *PlayTracker) statusLocked(quizID string) domain.PlayStatus {
	if t.played.Contains(quizID) {
		return domain.StatusPlayed
	}
	if a, ok := t.attempts[quizID]; ok && a.Status == domain.AttemptPending {
		return domain.StatusPending
	}
	return domain.StatusUnplayed
}
