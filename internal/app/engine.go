package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quizplay/internal/domain"
)

// PlayService accepts answers and returns the authoritative score.
type PlayService interface {
	SubmitAnswer(ctx context.Context, userID, quizID, answer, token string) (domain.PlayResult, error)
}

// DefaultSubmitTimeout bounds a submission when no timeout is configured.
const DefaultSubmitTimeout = 10 * time.Second

// AnswerEngine submits each quiz answer at most once per identity and folds the
// server's score into the session.
//
// Per quiz the states are Unplayed -> Pending -> {Played, Unplayed}. Played is terminal.
// The Pending guard is per quiz, so different quizzes can be submitted concurrently.
type AnswerEngine struct {
	plays   PlayService
	session *SessionStore
	tracker *PlayTracker
	timeout time.Duration
	logger  *slog.Logger
}

func NewAnswerEngine(plays PlayService, session *SessionStore, tracker *PlayTracker, timeout time.Duration, logger *slog.Logger) *AnswerEngine {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerEngine{
		plays:   plays,
		session: session,
		tracker: tracker,
		timeout: timeout,
		logger:  logger,
	}
}

// Submit sends answer for quizID on behalf of identity.
//
// Replays return ErrAlreadyPlayed and duplicate clicks return ErrSubmissionInFlight, both
// without contacting the server. On failure the quiz returns to Unplayed and neither the
// score nor the played set change. A Conflict from the server means another client already
// played the quiz: it is marked Played and the error matches ErrConflict and ErrAlreadyPlayed.
func (e *AnswerEngine) Submit(ctx context.Context, identity domain.Identity, quizID, answer string) (domain.AnswerOutcome, error) {
	if !identity.Authenticated() {
		return domain.AnswerOutcome{}, domain.ErrNotAuthenticated
	}
	quiz, ok := e.tracker.Quiz(quizID)
	if !ok {
		return domain.AnswerOutcome{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
	}

	attempt, err := e.tracker.begin(quizID, answer)
	if err != nil {
		e.logger.Debug("submission rejected locally", "quiz", quizID, "err", err)
		return domain.AnswerOutcome{}, err
	}

	// Once issued the request runs to resolution; only the engine timeout bounds it.
	detached := context.WithoutCancel(ctx)
	reqCtx, cancel := context.WithTimeout(detached, e.timeout)
	defer cancel()
	result, err := e.plays.SubmitAnswer(reqCtx, identity.ID, quizID, answer, identity.Token)
	if err != nil {
		if reqCtx.Err() != nil && !errors.Is(err, domain.ErrNetworkFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
		}
		if errors.Is(err, domain.ErrConflict) {
			e.tracker.succeed(attempt, Feedback{Answer: answer})
			e.logger.Info("quiz already played on server", "quiz", quizID, "user", identity.ID)
			return domain.AnswerOutcome{}, fmt.Errorf("submit %s: %w", quizID, errors.Join(err, domain.ErrAlreadyPlayed))
		}
		e.tracker.fail(attempt)
		e.logger.Warn("submission failed", "quiz", quizID, "user", identity.ID, "err", err)
		return domain.AnswerOutcome{}, fmt.Errorf("submit %s: %w", quizID, err)
	}

	fb := feedbackFor(quiz, answer, result)
	outcome := domain.AnswerOutcome{
		QuizID:       quizID,
		Answer:       answer,
		Score:        result.Score,
		Correct:      fb.Correct,
		CorrectKnown: fb.CorrectKnown,
	}
	if !e.tracker.succeed(attempt, fb) {
		e.logger.Debug("discarding resolution for cleared session", "quiz", quizID)
		return outcome, nil
	}
	if _, applied, err := e.session.applyScore(detached, identity.ID, result.Score); err != nil {
		return outcome, fmt.Errorf("persist score: %w", err)
	} else if !applied {
		e.logger.Debug("session changed before score arrived", "quiz", quizID, "user", identity.ID)
	}
	return outcome, nil
}

// feedbackFor prefers the server's verdict and only falls back to a locally known answer.
func feedbackFor(quiz domain.QuizItem, answer string, result domain.PlayResult) Feedback {
	fb := Feedback{Answer: answer}
	switch {
	case result.Correct != nil:
		fb.Correct, fb.CorrectKnown = *result.Correct, true
	case quiz.CorrectAnswer != "":
		fb.Correct, fb.CorrectKnown = domain.MatchesAnswer(quiz.CorrectAnswer, answer), true
	}
	return fb
}
