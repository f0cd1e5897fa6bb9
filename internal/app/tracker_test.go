package app_test

import (
	"testing"

	"quizplay/internal/app"
	"quizplay/internal/domain"
)

func TestTrackerStatusFromPlayedSet(t *testing.T) {
	tracker := app.NewPlayTracker()
	tracker.Reset(
		[]domain.QuizItem{{ID: "q1"}, {ID: "q2"}},
		domain.NewPlayedSet([]domain.PlayRecord{{QuizID: "q1"}}),
	)

	if got := tracker.StatusOf("q1"); got != domain.StatusPlayed {
		t.Fatalf("expected q1 played, got %s", got)
	}
	if got := tracker.StatusOf("q2"); got != domain.StatusUnplayed {
		t.Fatalf("expected q2 unplayed, got %s", got)
	}
	if tracker.IsEligible("q1") || !tracker.IsEligible("q2") {
		t.Fatalf("unexpected eligibility")
	}
}

func TestTrackerKeepsServerOrderAndFilters(t *testing.T) {
	tracker := app.NewPlayTracker()
	tracker.Reset([]domain.QuizItem{
		{ID: "q3", Category: "History"},
		{ID: "q1", Category: "Science"},
		{ID: "q2", Category: "Computer science"},
	}, nil)

	all := tracker.Quizzes()
	if len(all) != 3 || all[0].ID != "q3" || all[2].ID != "q2" {
		t.Fatalf("expected server order, got %+v", all)
	}
	science := tracker.Filter("SCIENCE")
	if len(science) != 2 || science[0].ID != "q1" || science[1].ID != "q2" {
		t.Fatalf("expected two science quizzes, got %+v", science)
	}
}

func TestTrackerResetKeepsSessionPlays(t *testing.T) {
	tracker := app.NewPlayTracker()
	tracker.Reset([]domain.QuizItem{{ID: "q1"}, {ID: "q2"}}, nil)
	tracker.MarkPlayed(domain.PlayRecord{QuizID: "q2"})

	// A refetch that raced the play does not know about q2 yet.
	tracker.Reset([]domain.QuizItem{{ID: "q1"}, {ID: "q2"}}, domain.PlayedSet{})
	if got := tracker.StatusOf("q2"); got != domain.StatusPlayed {
		t.Fatalf("expected q2 to stay played, got %s", got)
	}
	if tracker.PlayedCount() != 1 {
		t.Fatalf("expected one played quiz, got %d", tracker.PlayedCount())
	}

	tracker.Clear()
	if got := tracker.StatusOf("q2"); got != domain.StatusUnplayed {
		t.Fatalf("expected clear to forget plays, got %s", got)
	}
}
