package repository

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trivia-game/internal/models"
)

var ErrNoSettings = errors.New("no game settings stored")

// Repository is a question catalog backed by a database.
type Repository interface {
	Settings(ctx context.Context) (models.Settings, error)
	SampleQuestions(ctx context.Context, n int) ([]models.Question, error)
	IsCorrect(ctx context.Context, questionID, answerID string) (bool, error)
	Seed(ctx context.Context, records []models.QuestionRecord, settings models.Settings) (int, error)
	Close() error
}

// LoadQuestionFile reads question records from a YAML or JSON file.
func LoadQuestionFile(path string) ([]models.QuestionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}

	var records []models.QuestionRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse question file: %w", err)
	}

	for i, r := range records {
		if r.Question == "" || len(r.Answers) < 2 {
			return nil, fmt.Errorf("question %d: text and at least two answers are required", i+1)
		}
		if r.CorrectAnswer < 0 || r.CorrectAnswer >= len(r.Answers) {
			return nil, fmt.Errorf("question %d: correctAnswer %d out of range", i+1, r.CorrectAnswer)
		}
	}
	return records, nil
}
