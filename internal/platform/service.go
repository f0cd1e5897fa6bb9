package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"quizplay/internal/domain"
	"quizplay/internal/validation"
)

// Repository persists accounts and plays (memory, Postgres).
type Repository interface {
	CreateUser(ctx context.Context, user domain.User) error
	UserByID(ctx context.Context, id string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) error
	DeleteUser(ctx context.Context, id string) error
	Played(ctx context.Context, userID string) ([]domain.PlayRecord, error)
	// RecordPlay stores the play and adds points atomically, returning the new score.
	// It returns ErrConflict when the quiz was already played.
	RecordPlay(ctx context.Context, userID, quizID string, points int, at time.Time) (int, error)
}

// Catalog serves quizzes and categories, typically through a cache.
type Catalog interface {
	Quizzes(ctx context.Context) ([]domain.QuizItem, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

// DefaultPointsPerCorrect is awarded for a correct answer when not configured.
const DefaultPointsPerCorrect = 10

type Options struct {
	PointsPerCorrect int
	// ExposeAnswers includes the correct answer in quiz listings.
	ExposeAnswers bool
	Logger        *slog.Logger
}

// Service is the authoritative side of the quiz platform: accounts, scoring and plays.
type Service struct {
	repo     Repository
	catalog  Catalog
	tokens   *Tokens
	hub      *Hub
	validate *validator.Validate
	points   int
	expose   bool
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, catalog Catalog, tokens *Tokens, hub *Hub, opts Options) *Service {
	points := opts.PointsPerCorrect
	if points <= 0 {
		points = DefaultPointsPerCorrect
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		tokens:   tokens,
		hub:      hub,
		validate: validation.New(),
		points:   points,
		expose:   opts.ExposeAnswers,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate validates an access token.
func (s *Service) Authenticate(token string) (Principal, error) {
	return s.tokens.Validate(token)
}

// Signup creates a player account and returns its identity with a fresh token.
func (s *Service) Signup(ctx context.Context, reg domain.Registration) (domain.Identity, error) {
	if err := validation.Check(s.validate, reg); err != nil {
		return domain.Identity{}, err
	}
	hash, err := hashPassword(reg.Password)
	if err != nil {
		return domain.Identity{}, err
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     reg.Username,
		Email:        strings.TrimSpace(reg.Email),
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Role:         domain.RolePlayer,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Identity{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return domain.Identity{}, err
	}
	s.logger.Info("user signed up", "user", user.ID)
	return s.withToken(user)
}

// EnsureAdmin creates the admin account if no account uses email yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if _, err := s.repo.UserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	admin := domain.User{
		ID:           uuid.NewString(),
		Username:     "admin",
		Email:        email,
		Role:         domain.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, admin); err != nil && !errors.Is(err, domain.ErrConflict) {
		return err
	}
	s.logger.Info("admin account ensured", "email", email)
	return nil
}

// Login checks credentials. With requireAdmin only admin accounts may log in.
func (s *Service) Login(ctx context.Context, creds domain.Credentials, requireAdmin bool) (domain.Identity, error) {
	if err := validation.Check(s.validate, creds); err != nil {
		return domain.Identity{}, err
	}
	user, err := s.repo.UserByEmail(ctx, strings.TrimSpace(creds.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return domain.Identity{}, err
	}
	if !checkPassword(user.PasswordHash, creds.Password) {
		return domain.Identity{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if requireAdmin && user.Role != domain.RoleAdmin {
		return domain.Identity{}, fmt.Errorf("%w: admin access required", domain.ErrUnauthorized)
	}
	return s.withToken(user)
}

// Identity returns the current identity of a user, without a token.
func (s *Service) Identity(ctx context.Context, id string) (domain.Identity, error) {
	user, err := s.repo.UserByID(ctx, id)
	if err != nil {
		return domain.Identity{}, err
	}
	return user.Identity(), nil
}

// Quizzes lists the catalog. Correct answers are withheld unless exposure is enabled.
func (s *Service) Quizzes(ctx context.Context) ([]domain.QuizItem, error) {
	quizzes, err := s.catalog.Quizzes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizItem, len(quizzes))
	for i, q := range quizzes {
		if !s.expose {
			q.CorrectAnswer = ""
		}
		out[i] = q
	}
	return out, nil
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.catalog.Categories(ctx)
}

func (s *Service) Played(ctx context.Context, userID string) ([]domain.PlayRecord, error) {
	return s.repo.Played(ctx, userID)
}

// Play scores answer for quizID and records it once. A replay is ErrConflict and awards nothing.
func (s *Service) Play(ctx context.Context, userID, quizID, answer string) (domain.PlayResult, error) {
	if strings.TrimSpace(answer) == "" {
		return domain.PlayResult{}, fmt.Errorf("%w: response is required", domain.ErrValidation)
	}
	quiz, err := s.quiz(ctx, quizID)
	if err != nil {
		return domain.PlayResult{}, err
	}

	correct := domain.MatchesAnswer(quiz.CorrectAnswer, answer)
	points := 0
	if correct {
		points = s.points
	}
	at := s.now().UTC()
	score, err := s.repo.RecordPlay(ctx, userID, quizID, points, at)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.PlayResult{}, fmt.Errorf("%w: quiz %s already played", domain.ErrConflict, quizID)
		}
		return domain.PlayResult{}, err
	}

	s.logger.Debug("quiz played", "user", userID, "quiz", quizID, "correct", correct, "score", score)
	s.hub.Publish(domain.PlayedEvent{UserID: userID, QuizID: quizID, Score: score, AnsweredAt: at})
	return domain.PlayResult{Score: score, Correct: &correct}, nil
}

// UpdateProfile applies update to user id. Only admins may change roles.
func (s *Service) UpdateProfile(ctx context.Context, actor Principal, id string, update domain.ProfileUpdate) (domain.Identity, error) {
	if err := validation.Check(s.validate, update); err != nil {
		return domain.Identity{}, err
	}
	user, err := s.repo.UserByID(ctx, id)
	if err != nil {
		return domain.Identity{}, err
	}
	if update.Role != "" && update.Role != user.Role {
		if !actor.IsAdmin() {
			return domain.Identity{}, fmt.Errorf("%w: only admins may change roles", domain.ErrUnauthorized)
		}
		user.Role = update.Role
	}
	user.Username = update.Username
	user.Email = strings.TrimSpace(update.Email)
	user.FirstName = update.FirstName
	user.LastName = update.LastName
	if update.Password != "" {
		if user.PasswordHash, err = hashPassword(update.Password); err != nil {
			return domain.Identity{}, err
		}
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Identity{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return domain.Identity{}, err
	}
	return s.Identity(ctx, id)
}

// DeleteUser removes the account with its plays and closes its live feeds.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.hub.Disconnect(id)
	s.logger.Info("user deleted", "user", id)
	return nil
}

// Events subscribes to the played events of userID.
func (s *Service) Events(userID string) (<-chan domain.PlayedEvent, func()) {
	return s.hub.Subscribe(userID)
}

func (s *Service) quiz(ctx context.Context, quizID string) (domain.QuizItem, error) {
	quizzes, err := s.catalog.Quizzes(ctx)
	if err != nil {
		return domain.QuizItem{}, err
	}
	for _, q := range quizzes {
		if q.ID == quizID {
			return q, nil
		}
	}
	return domain.QuizItem{}, fmt.Errorf("%w: quiz %s", domain.ErrNotFound, quizID)
}

func (s *Service) withToken(user domain.User) (domain.Identity, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return domain.Identity{}, err
	}
	identity := user.Identity()
	identity.Token = token
	return identity, nil
}
