package models

import "time"

type GameState string

const (
	Waiting  GameState = "waiting"
	Playing  GameState = "playing"
	Finished GameState = "finished"
)

// Inbound event names.
const (
	EventCreateGame = "createGame"
	EventJoinGame   = "joinGame"
	EventStartGame  = "startGame"
	EventAnswer     = "answer"
	EventLeaveGame  = "leaveGame"
)

// Outbound event names.
const (
	EventGameCreated       = "gameCreated"
	EventGameCreationError = "gameCreationError"
	EventError             = "error"
	EventGameState         = "gameState"
	EventPlayerList        = "playerList"
	EventQuestionUpdate    = "questionUpdate"
)

// Settings are the per-room tuning values copied at creation time.
type Settings struct {
	MaxPlayers       int `json:"maxPlayers" yaml:"maxPlayers"`
	TimePerQuestion  int `json:"timePerQuestion" yaml:"timePerQuestion"` // milliseconds
	QuestionsPerGame int `json:"questionsPerGame" yaml:"questionsPerGame"`
}

// DefaultSettings returns the built-in fallback settings.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:       4,
		TimePerQuestion:  10000,
		QuestionsPerGame: 10,
	}
}

// Valid reports whether every field is usable.
func (s Settings) Valid() bool {
	return s.MaxPlayers > 0 && s.TimePerQuestion > 0 && s.QuestionsPerGame > 0
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Answer struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"-"`
}

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Answers []Answer `json:"answers"`
}

// AnswerView is an answer option as shown to clients.
type AnswerView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	Text    string       `json:"text"`
	Answers []AnswerView `json:"answers"`
}

// View strips correctness flags.
func (q *Question) View() QuestionView {
	answers := make([]AnswerView, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = AnswerView{ID: a.ID, Text: a.Text}
	}
	return QuestionView{Text: q.Text, Answers: answers}
}

type QuestionUpdate struct {
	Question              QuestionView `json:"question"`
	CurrentPlayer         Player       `json:"currentPlayer"`
	TimeLeft              int          `json:"timeLeft"` // seconds
	CurrentQuestionNumber int          `json:"currentQuestionNumber"`
	TotalQuestions        int          `json:"totalQuestions"`
}

// RoomSummary is a read-only snapshot of a live room.
type RoomSummary struct {
	Code                  string    `json:"code"`
	State                 GameState `json:"state"`
	Players               []Player  `json:"players"`
	MaxPlayers            int       `json:"maxPlayers"`
	CurrentQuestionNumber int       `json:"currentQuestionNumber"`
	TotalQuestions        int       `json:"totalQuestions"`
}

// GameEvent is the frame exchanged over a connection in both directions.
type GameEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// QuestionRecord is one entry of a question seed file.
type QuestionRecord struct {
	Topic         string   `json:"topic" yaml:"topic"`
	Subtopic      string   `json:"subtopic" yaml:"subtopic"`
	Question      string   `json:"question" yaml:"question"`
	Answers       []string `json:"answers" yaml:"answers"`
	CorrectAnswer int      `json:"correctAnswer" yaml:"correctAnswer"`
}

// Room lifecycle event types.
const (
	RoomCreated  = "room.created"
	GameStarted  = "game.started"
	GameFinished = "game.finished"
	RoomClosed   = "room.closed"
)

// RoomEvent describes a room lifecycle transition for external consumers.
type RoomEvent struct {
	Type      string    `json:"type"`
	Code      string    `json:"code"`
	Players   []Player  `json:"players,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
