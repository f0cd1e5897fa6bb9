package platform

import "quizplay/internal/domain"

// SampleQuizzes is the built-in catalog used when no database is configured.
func SampleQuizzes() []domain.QuizItem {
	return []domain.QuizItem{
		{ID: "seed-1", Question: "Go was announced publicly in 2009.", Category: "Go", CorrectAnswer: "true", Options: []string{"true", "false"}},
		{ID: "seed-2", Question: "A nil map can be written to safely.", Category: "Go", CorrectAnswer: "false", Options: []string{"true", "false"}},
		{ID: "seed-3", Question: "What is the capital of Australia?", Category: "Geography", CorrectAnswer: "Canberra", Options: []string{"Sydney", "Canberra", "Melbourne"}},
		{ID: "seed-4", Question: "Which planet is known as the Red Planet?", Category: "Science", CorrectAnswer: "Mars", Options: []string{"Venus", "Mars", "Jupiter"}},
	}
}
