package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"quizplay/internal/domain"
	"quizplay/internal/validation"
)

// ProfileService covers the account calls that only pass data through to the platform.
type ProfileService interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error)
	Signup(ctx context.Context, reg domain.Registration) (domain.Identity, error)
	UpdateProfile(ctx context.Context, actor domain.Identity, update domain.ProfileUpdate) (domain.Identity, error)
	DeleteAccount(ctx context.Context, id, token string) error
}

// EventFeed streams plays the platform accepted for an identity, including ones made elsewhere.
// The returned cancel function must be called to release the subscription.
type EventFeed interface {
	Subscribe(ctx context.Context, identity domain.Identity) (<-chan domain.PlayedEvent, func(), error)
}

// Platform is everything the player needs from the quiz platform.
type Platform interface {
	IdentityService
	CatalogService
	PlayService
	ProfileService
}

// PlayerOptions tunes a Player.
type PlayerOptions struct {
	SubmitTimeout time.Duration
	Logger        *slog.Logger
}

// Player is the surface handed to the presentation layer. It wires the session store,
// catalog fetcher, play tracker and answer engine for one local profile.
type Player struct {
	session  *SessionStore
	catalog  *CatalogFetcher
	tracker  *PlayTracker
	engine   *AnswerEngine
	profiles ProfileService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPlayer(platform Platform, snapshots SnapshotStore, opts PlayerOptions) *Player {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	session := NewSessionStore(snapshots, platform, logger)
	tracker := NewPlayTracker()
	return &Player{
		session:  session,
		catalog:  NewCatalogFetcher(platform),
		tracker:  tracker,
		engine:   NewAnswerEngine(platform, session, tracker, opts.SubmitTimeout, logger),
		profiles: platform,
		validate: validation.New(),
		logger:   logger,
	}
}

// Start restores the stored session and loads the catalog for it.
func (p *Player) Start(ctx context.Context) (domain.Identity, error) {
	identity, err := p.session.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			p.tracker.Clear()
		}
		return domain.Identity{}, err
	}
	if err := p.Refresh(ctx); err != nil {
		return identity, err
	}
	return identity, nil
}

// Refresh re-fetches the catalog and the played set and installs them in the tracker.
func (p *Player) Refresh(ctx context.Context) error {
	identity, ok := p.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}

	var (
		quizzes []domain.QuizItem
		played  domain.PlayedSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quizzes, err = p.catalog.FetchCatalog(gctx)
		if err != nil {
			return fmt.Errorf("fetch catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		played, err = p.catalog.FetchPlayed(gctx, identity)
		if err != nil {
			return fmt.Errorf("fetch played: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if current, ok := p.session.Current(); !ok || current.ID != identity.ID {
		p.logger.Debug("identity changed during refresh, dropping result", "user", identity.ID)
		return nil
	}
	p.tracker.Reset(quizzes, played)
	p.logger.Debug("catalog refreshed", "quizzes", len(quizzes), "played", len(played))
	return nil
}

// CurrentIdentity returns the cached identity.
func (p *Player) CurrentIdentity() (domain.Identity, bool) {
	return p.session.Current()
}

// StatusOf returns the play status of quizID.
func (p *Player) StatusOf(quizID string) domain.PlayStatus {
	return p.tracker.StatusOf(quizID)
}

// IsEligible reports whether quizID can still be answered.
func (p *Player) IsEligible(quizID string) bool {
	return p.tracker.IsEligible(quizID)
}

// Quizzes lists the catalog, optionally filtered by category.
func (p *Player) Quizzes(category string) []domain.QuizItem {
	return p.tracker.Filter(category)
}

// Feedback returns the local verdict recorded for quizID.
func (p *Player) Feedback(quizID string) (Feedback, bool) {
	return p.tracker.Feedback(quizID)
}

// Submit answers quizID as the current identity.
func (p *Player) Submit(ctx context.Context, quizID, answer string) (domain.AnswerOutcome, error) {
	identity, ok := p.session.Current()
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrNotAuthenticated
	}
	return p.engine.Submit(ctx, identity, quizID, answer)
}

// Login authenticates and stores the resulting identity.
func (p *Player) Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	if err := validation.Check(p.validate, creds); err != nil {
		return domain.Identity{}, err
	}
	identity, err := p.profiles.Login(ctx, creds)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("login: %w", err)
	}
	return identity, p.replaceIdentity(ctx, identity)
}

// Signup registers a player account and stores the resulting identity.
func (p *Player) Signup(ctx context.Context, reg domain.Registration) (domain.Identity, error) {
	if err := validation.Check(p.validate, reg); err != nil {
		return domain.Identity{}, err
	}
	identity, err := p.profiles.Signup(ctx, reg)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("signup: %w", err)
	}
	return identity, p.replaceIdentity(ctx, identity)
}

// UpdateProfile sends the profile change and persists the identity the server returns.
func (p *Player) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Identity, error) {
	current, ok := p.session.Current()
	if !ok {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	if err := validation.Check(p.validate, update); err != nil {
		return domain.Identity{}, err
	}
	updated, err := p.profiles.UpdateProfile(ctx, current, update)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("update profile: %w", err)
	}
	if updated.Token == "" {
		updated.Token = current.Token
	}
	if err := p.session.Persist(ctx, updated); err != nil {
		return domain.Identity{}, err
	}
	return updated, nil
}

// DeleteAccount removes the account on the server, then logs out locally.
func (p *Player) DeleteAccount(ctx context.Context) error {
	current, ok := p.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	if err := p.profiles.DeleteAccount(ctx, current.ID, current.Token); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return p.Logout(ctx)
}

// Logout clears the stored identity and all play state.
func (p *Player) Logout(ctx context.Context) error {
	p.tracker.Clear()
	return p.session.Clear(ctx)
}

// Dashboard summarizes the current identity with catalog counts.
func (p *Player) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	identity, ok := p.session.Current()
	if !ok {
		return domain.Dashboard{}, domain.ErrNotAuthenticated
	}
	var (
		quizzes    []domain.QuizItem
		categories []domain.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quizzes, err = p.catalog.FetchCatalog(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = p.catalog.FetchCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	return domain.Dashboard{
		Identity:      identity,
		QuizCount:     len(quizzes),
		CategoryCount: len(categories),
		PlayedCount:   p.tracker.PlayedCount(),
	}, nil
}

// Sync refreshes the played set every interval until ctx is done. A rejected token triggers a
// session reload, which logs out when the server no longer accepts the session.
func (p *Player) Sync(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		err := p.Refresh(ctx)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrUnauthorized):
			if _, loadErr := p.session.Load(ctx); loadErr != nil {
				switch {
				case errors.Is(loadErr, domain.ErrSessionInvalid):
					p.tracker.Clear()
					return loadErr
				case errors.Is(loadErr, domain.ErrNotAuthenticated):
					// Logged out elsewhere.
					return errors.Join(loadErr, p.Logout(ctx))
				}
				p.logger.Warn("session check failed", "err", loadErr)
			}
		case errors.Is(err, domain.ErrNotAuthenticated):
			return err
		default:
			p.logger.Warn("periodic refresh failed", "err", err)
		}
	}
}

// Watch applies played events pushed by the platform until the feed closes or ctx is done.
func (p *Player) Watch(ctx context.Context, feed EventFeed) error {
	identity, ok := p.session.Current()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	events, cancel, err := feed.Subscribe(ctx, identity)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.ApplyEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// ApplyEvent folds a server-pushed play into the tracker and the session score.
func (p *Player) ApplyEvent(ctx context.Context, ev domain.PlayedEvent) error {
	current, ok := p.session.Current()
	if !ok || current.ID != ev.UserID {
		return nil
	}
	p.tracker.MarkPlayed(domain.PlayRecord{QuizID: ev.QuizID, AnsweredAt: ev.AnsweredAt})
	if _, _, err := p.session.applyScore(ctx, ev.UserID, ev.Score); err != nil {
		return fmt.Errorf("apply event score: %w", err)
	}
	p.logger.Info("play confirmed", "quiz", ev.QuizID, "score", ev.Score)
	return nil
}

func (p *Player) replaceIdentity(ctx context.Context, identity domain.Identity) error {
	p.tracker.Clear()
	if err := p.session.Persist(ctx, identity); err != nil {
		return err
	}
	return nil
}
