package services

import (
	"sync"

	"trivia-game/internal/models"
)

// room is the state of one game. Every field is guarded by mu.
type room struct {
	mu sync.Mutex

	code     string
	players  []*models.Player
	state    models.GameState
	settings models.Settings

	currentPlayerIndex   int
	currentQuestionIndex int
	totalQuestions       int
	currentQuestion      *models.Question
	source               questionSource

	timer      *turnTimer
	generation uint64

	// closed is set once the room has been removed from the table.
	closed bool
}

func newRoom(code string, settings models.Settings, source questionSource) *room {
	return &room{
		code:                 code,
		players:              make([]*models.Player, 0, settings.MaxPlayers),
		state:                models.Waiting,
		settings:             settings,
		currentQuestionIndex: -1,
		source:               source,
	}
}

func (r *room) addPlayer(connID, name string) *models.Player {
	player := &models.Player{ID: connID, Name: name}
	r.players = append(r.players, player)
	return player
}

// removePlayer returns the index the player held, or -1.
func (r *room) removePlayer(connID string) int {
	idx := r.playerIndex(connID)
	if idx < 0 {
		return -1
	}
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	return idx
}

func (r *room) playerIndex(connID string) int {
	for i, p := range r.players {
		if p.ID == connID {
			return i
		}
	}
	return -1
}

func (r *room) isFull() bool {
	return len(r.players) >= r.settings.MaxPlayers
}

func (r *room) currentPlayer() *models.Player {
	if r.state != models.Playing || r.currentPlayerIndex < 0 || r.currentPlayerIndex >= len(r.players) {
		return nil
	}
	return r.players[r.currentPlayerIndex]
}

func (r *room) playerList() []models.Player {
	list := make([]models.Player, len(r.players))
	for i, p := range r.players {
		list[i] = *p
	}
	return list
}

func (r *room) summary() models.RoomSummary {
	return models.RoomSummary{
		Code:                  r.code,
		State:                 r.state,
		Players:               r.playerList(),
		MaxPlayers:            r.settings.MaxPlayers,
		CurrentQuestionNumber: r.currentQuestionIndex + 1,
		TotalQuestions:        r.totalQuestions,
	}
}
