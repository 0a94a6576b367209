package services

import (
	"context"
	"math/rand"
	"strconv"

	"trivia-game/internal/models"
)

// Catalog supplies questions and game settings.
type Catalog interface {
	Settings(ctx context.Context) (models.Settings, error)
	SampleQuestions(ctx context.Context, n int) ([]models.Question, error)
	IsCorrect(ctx context.Context, questionID, answerID string) (bool, error)
}

// QuestionDatabase is an in-memory Catalog.
type QuestionDatabase struct {
	questions []models.Question
	settings  models.Settings
}

func NewQuestionDatabase(settings models.Settings) *QuestionDatabase {
	return &QuestionDatabase{
		settings: settings,
		questions: []models.Question{
			newQuestion("1", "What is the capital of France?", 2, "London", "Berlin", "Paris", "Madrid"),
			newQuestion("2", "Which planet is known as the Red Planet?", 1, "Venus", "Mars", "Jupiter", "Saturn"),
			newQuestion("3", "What is 2 + 2?", 1, "3", "4", "5", "6"),
			newQuestion("4", "Who painted the Mona Lisa?", 2, "Van Gogh", "Picasso", "Da Vinci", "Monet"),
			newQuestion("5", "What is the largest ocean on Earth?", 2, "Atlantic", "Indian", "Pacific", "Arctic"),
			newQuestion("6", "Which programming language was created by Google?", 2, "Java", "Python", "Go", "C++"),
			newQuestion("7", "What is the chemical symbol for gold?", 2, "Go", "Gd", "Au", "Ag"),
			newQuestion("8", "In which year did World War II end?", 1, "1944", "1945", "1946", "1947"),
			newQuestion("9", "What is the fastest land animal?", 1, "Lion", "Cheetah", "Leopard", "Tiger"),
			newQuestion("10", "Which country has the most natural lakes?", 1, "Russia", "Canada", "USA", "Finland"),
		},
	}
}

// NewQuestionDatabaseFromRecords builds a catalog from seed file records.
func NewQuestionDatabaseFromRecords(settings models.Settings, records []models.QuestionRecord) *QuestionDatabase {
	qd := &QuestionDatabase{settings: settings}
	for i, r := range records {
		qd.questions = append(qd.questions, newQuestion(strconv.Itoa(i+1), r.Question, r.CorrectAnswer, r.Answers...))
	}
	return qd
}

func newQuestion(id, text string, correct int, options ...string) models.Question {
	q := models.Question{ID: id, Text: text}
	for i, opt := range options {
		q.Answers = append(q.Answers, models.Answer{
			ID:        id + "-" + strconv.Itoa(i),
			Text:      opt,
			IsCorrect: i == correct,
		})
	}
	return q
}

func (qd *QuestionDatabase) Settings(ctx context.Context) (models.Settings, error) {
	return qd.settings, nil
}

// SampleQuestions returns up to n distinct questions in random order.
func (qd *QuestionDatabase) SampleQuestions(ctx context.Context, n int) ([]models.Question, error) {
	if n > len(qd.questions) {
		n = len(qd.questions)
	}
	out := make([]models.Question, 0, n)
	for _, idx := range rand.Perm(len(qd.questions))[:n] {
		out = append(out, qd.questions[idx])
	}
	return out, nil
}

func (qd *QuestionDatabase) IsCorrect(ctx context.Context, questionID, answerID string) (bool, error) {
	for _, q := range qd.questions {
		if q.ID != questionID {
			continue
		}
		for _, a := range q.Answers {
			if a.ID == answerID {
				return a.IsCorrect, nil
			}
		}
		return false, nil
	}
	return false, nil
}
