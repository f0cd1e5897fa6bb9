package domain

import (
	"strings"
	"time"
)

// Role distinguishes regular players from platform administrators.
type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// Identity is the authenticated user as mirrored locally: profile, token and score.
type Identity struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"username" yaml:"displayName"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	FirstName   string `json:"firstName,omitempty" yaml:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty" yaml:"lastName,omitempty"`
	Role        Role   `json:"role" yaml:"role"`
	Token       string `json:"token,omitempty" yaml:"token"`
	Score       int    `json:"score" yaml:"score"`
}

// Authenticated reports whether the identity carries enough to call authenticated endpoints.
func (i Identity) Authenticated() bool {
	return i.ID != "" && i.Token != ""
}

// QuizItem is one question of the catalog.
// CorrectAnswer is only populated by servers that still expose it; scoring never depends on it.
type QuizItem struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Category      string   `json:"category"`
	CorrectAnswer string   `json:"response,omitempty"`
	Options       []string `json:"options,omitempty"`
}

// Category groups quiz items.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayRecord is server-confirmed evidence that an identity answered a quiz.
type PlayRecord struct {
	QuizID     string    `json:"quizId"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// PlayedSet indexes play records by quiz ID.
type PlayedSet map[string]PlayRecord

// NewPlayedSet builds a set from records; later duplicates win.
func NewPlayedSet(records []PlayRecord) PlayedSet {
	set := make(PlayedSet, len(records))
	for _, r := range records {
		set[r.QuizID] = r
	}
	return set
}

// Contains reports whether quizID has been played.
func (s PlayedSet) Contains(quizID string) bool {
	_, ok := s[quizID]
	return ok
}

// PlayStatus is the per-quiz state seen by the presentation layer.
type PlayStatus int

const (
	StatusUnplayed PlayStatus = iota
	StatusPending
	StatusPlayed
)

func (s PlayStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPlayed:
		return "played"
	default:
		return "unplayed"
	}
}

// AttemptStatus tracks a single submission.
type AttemptStatus int

const (
	AttemptPending AttemptStatus = iota
	AttemptSucceeded
	AttemptFailed
)

// AnswerAttempt is the transient record of one submission.
type AnswerAttempt struct {
	QuizID    string
	Answer    string
	Status    AttemptStatus
	StartedAt time.Time
}

// PlayResult is what the play service returns for an accepted answer.
// Correct is nil when the server does not report correctness.
type PlayResult struct {
	Score   int   `json:"score"`
	Correct *bool `json:"correct,omitempty"`
}

// AnswerOutcome summarizes a resolved submission for the caller.
type AnswerOutcome struct {
	QuizID       string `json:"quizId"`
	Answer       string `json:"answer"`
	Score        int    `json:"score"`
	Correct      bool   `json:"correct"`
	CorrectKnown bool   `json:"correctKnown"`
}

// Credentials are used to obtain a token.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=player admin"`
}

// Registration creates a new player account.
type Registration struct {
	Username  string `json:"username" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,password"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

// ProfileUpdate carries the editable profile fields. An empty Password keeps the current one.
type ProfileUpdate struct {
	Username  string `json:"username" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Role      Role   `json:"role,omitempty" validate:"omitempty,oneof=player admin"`
	Password  string `json:"password,omitempty" validate:"omitempty,password"`
}

// Dashboard is the summary shown after login.
type Dashboard struct {
	Identity      Identity `json:"identity"`
	QuizCount     int      `json:"quizCount"`
	CategoryCount int      `json:"categoryCount"`
	PlayedCount   int      `json:"playedCount"`
}

// PlayedEvent is pushed by the platform after it accepts an answer.
type PlayedEvent struct {
	UserID     string    `json:"userId"`
	QuizID     string    `json:"quizId"`
	Score      int       `json:"score"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// MatchesAnswer compares answers the way players type them: case-insensitive, surrounding space ignored.
func MatchesAnswer(expected, given string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(given))
}

// Catalog is the full quiz list with its categories, as loaded by the platform.
type Catalog struct {
	Quizzes    []QuizItem `json:"quizzes"`
	Categories []Category `json:"categories"`
}

// CategoriesOf lists the distinct categories of quizzes in first-seen order.
func CategoriesOf(quizzes []QuizItem) []Category {
	seen := make(map[string]bool, len(quizzes))
	categories := make([]Category, 0)
	for _, q := range quizzes {
		id := strings.ToLower(strings.TrimSpace(q.Category))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		categories = append(categories, Category{ID: id, Name: q.Category})
	}
	return categories
}
