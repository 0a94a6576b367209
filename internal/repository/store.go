package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"trivia-game/internal/models"
)

const (
	keyQuestionsPerGame = "questionsPerGame"
	keyTimePerQuestion  = "timePerQuestion"
	keyMaxPlayers       = "maxPlayersPerGame"

	defaultTopic = "General"
)

var _ Repository = (*SQLRepository)(nil)

// SQLRepository stores the catalog in sqlite3 or postgres.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

func NewSQLRepository(driver, dsn string) (*SQLRepository, error) {
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLRepository{db: db, driver: driver}, nil
}

func createTables(db *sql.DB, driver string) error {
	id := "SERIAL PRIMARY KEY"
	if driver == "sqlite3" {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS topics (
			id ` + id + `,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS subtopics (
			id ` + id + `,
			topic_id INTEGER NOT NULL REFERENCES topics(id),
			name TEXT NOT NULL,
			UNIQUE (topic_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id ` + id + `,
			subtopic_id INTEGER REFERENCES subtopics(id),
			question_text TEXT NOT NULL,
			difficulty_level INTEGER NOT NULL DEFAULT 5
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			id ` + id + `,
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			answer_text TEXT NOT NULL,
			is_correct BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_question_id ON answers(question_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) Settings(ctx context.Context) (models.Settings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return models.Settings{}, err
	}
	defer rows.Close()

	settings := models.DefaultSettings()
	found := 0
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Settings{}, err
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-numeric setting")
			continue
		}
		switch key {
		case keyQuestionsPerGame:
			settings.QuestionsPerGame = n
		case keyTimePerQuestion:
			settings.TimePerQuestion = n
		case keyMaxPlayers:
			settings.MaxPlayers = n
		default:
			continue
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, err
	}
	if found == 0 {
		return models.Settings{}, ErrNoSettings
	}
	return settings, nil
}

// SampleQuestions returns up to n random questions with their answers.
func (r *SQLRepository) SampleQuestions(ctx context.Context, n int) ([]models.Question, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, question_text
		FROM questions
		ORDER BY RANDOM()
		LIMIT $1
	`, n)
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	var ids []int64
	for rows.Next() {
		var id int64
		var q models.Question
		if err := rows.Scan(&id, &q.Text); err != nil {
			rows.Close()
			return nil, err
		}
		q.ID = strconv.FormatInt(id, 10)
		questions = append(questions, q)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i, id := range ids {
		answers, err := r.answers(ctx, id)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

func (r *SQLRepository) answers(ctx context.Context, questionID int64) ([]models.Answer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, answer_text, is_correct
		FROM answers WHERE question_id = $1
		ORDER BY id
	`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var id int64
		var a models.Answer
		if err := rows.Scan(&id, &a.Text, &a.IsCorrect); err != nil {
			return nil, err
		}
		a.ID = strconv.FormatInt(id, 10)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// IsCorrect reports whether answerID is a correct answer of questionID.
func (r *SQLRepository) IsCorrect(ctx context.Context, questionID, answerID string) (bool, error) {
	qid, err := strconv.ParseInt(questionID, 10, 64)
	if err != nil {
		return false, nil
	}
	aid, err := strconv.ParseInt(answerID, 10, 64)
	if err != nil {
		return false, nil
	}

	var correct bool
	err = r.db.QueryRowContext(ctx,
		`SELECT is_correct FROM answers WHERE id = $1 AND question_id = $2`, aid, qid,
	).Scan(&correct)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return correct, nil
}

// Seed loads records and settings into empty tables. It returns the number
// of questions inserted.
func (r *SQLRepository) Seed(ctx context.Context, records []models.QuestionRecord, settings models.Settings) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var settingCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&settingCount); err != nil {
		return 0, err
	}
	if settingCount == 0 {
		values := map[string]int{
			keyQuestionsPerGame: settings.QuestionsPerGame,
			keyTimePerQuestion:  settings.TimePerQuestion,
			keyMaxPlayers:       settings.MaxPlayers,
		}
		for key, value := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO settings (key, value) VALUES ($1, $2)`, key, strconv.Itoa(value),
			); err != nil {
				return 0, err
			}
		}
	}

	var questionCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&questionCount); err != nil {
		return 0, err
	}
	if questionCount > 0 {
		return 0, tx.Commit()
	}

	for _, rec := range records {
		subtopicID, err := ensureSubtopic(ctx, tx, rec.Topic, rec.Subtopic)
		if err != nil {
			return 0, err
		}

		var questionID int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO questions (subtopic_id, question_text, difficulty_level) VALUES ($1, $2, $3) RETURNING id`,
			subtopicID, rec.Question, 5,
		).Scan(&questionID); err != nil {
			return 0, err
		}

		for idx, text := range rec.Answers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO answers (question_id, answer_text, is_correct) VALUES ($1, $2, $3)`,
				questionID, text, idx == rec.CorrectAnswer,
			); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func ensureSubtopic(ctx context.Context, tx *sql.Tx, topic, subtopic string) (int64, error) {
	if topic == "" {
		topic = defaultTopic
	}
	if subtopic == "" {
		subtopic = topic
	}

	topicID, err := getOrInsert(ctx, tx,
		`SELECT id FROM topics WHERE name = $1`,
		`INSERT INTO topics (name) VALUES ($1) RETURNING id`,
		topic)
	if err != nil {
		return 0, fmt.Errorf("topic %q: %w", topic, err)
	}

	subtopicID, err := getOrInsert(ctx, tx,
		`SELECT id FROM subtopics WHERE topic_id = $1 AND name = $2`,
		`INSERT INTO subtopics (topic_id, name) VALUES ($1, $2) RETURNING id`,
		topicID, subtopic)
	if err != nil {
		return 0, fmt.Errorf("subtopic %q: %w", subtopic, err)
	}
	return subtopicID, nil
}

func getOrInsert(ctx context.Context, tx *sql.Tx, selectQuery, insertQuery string, args ...interface{}) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, selectQuery, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	err = tx.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	return id, err
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}
