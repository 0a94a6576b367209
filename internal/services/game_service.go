package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-game/internal/models"
)

// Broadcaster delivers named events to one connection or to every
// connection joined to a room.
type Broadcaster interface {
	EmitTo(connID, event string, payload interface{})
	EmitToRoom(code, event string, payload interface{})
	JoinRoom(connID, code string)
	LeaveRoom(connID, code string)
}

// Publisher receives room lifecycle events.
type Publisher interface {
	Publish(event models.RoomEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.RoomEvent) {}

// AnswerChoice is a submitted answer: an answer id, or an index into the
// answers of the served question.
type AnswerChoice struct {
	ID      string
	Index   int
	ByIndex bool
}

// GameService owns the room table and runs every room's state machine.
//
// Lock order is room before table: gs.mu may be taken while holding a
// room's mu, never the other way around.
type GameService struct {
	hub       Broadcaster
	catalog   Catalog
	publisher Publisher
	clock     clockwork.Clock
	deckMode  DeckMode
	defaults  models.Settings

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	rooms     map[string]*room
	connRooms map[string]string
}

type Option func(*GameService)

// WithClock sets the clock driving turn timers.
func WithClock(clock clockwork.Clock) Option {
	return func(gs *GameService) { gs.clock = clock }
}

func WithPublisher(p Publisher) Option {
	return func(gs *GameService) { gs.publisher = p }
}

func WithDeckMode(mode DeckMode) Option {
	return func(gs *GameService) { gs.deckMode = mode }
}

// WithDefaultSettings sets the settings used when the catalog has none.
func WithDefaultSettings(s models.Settings) Option {
	return func(gs *GameService) {
		if s.Valid() {
			gs.defaults = s
		}
	}
}

func NewGameService(hub Broadcaster, catalog Catalog, opts ...Option) *GameService {
	ctx, cancel := context.WithCancel(context.Background())
	gs := &GameService{
		hub:       hub,
		catalog:   catalog,
		publisher: nopPublisher{},
		clock:     clockwork.NewRealClock(),
		deckMode:  DeckBatch,
		defaults:  models.DefaultSettings(),
		ctx:       ctx,
		cancel:    cancel,
		rooms:     make(map[string]*room),
		connRooms: make(map[string]string),
	}
	for _, opt := range opts {
		opt(gs)
	}
	return gs
}

func (gs *GameService) CreateGame(ctx context.Context, connID, code, playerName string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return gs.reject(connID, models.EventGameCreationError, ErrInvalidRoomCode)
	}

	settings := gs.loadSettings(ctx)
	r := newRoom(code, settings, newQuestionSource(gs.deckMode, gs.catalog))

	r.mu.Lock()
	defer r.mu.Unlock()

	gs.mu.Lock()
	if _, ok := gs.connRooms[connID]; ok {
		gs.mu.Unlock()
		return gs.reject(connID, models.EventGameCreationError, ErrAlreadyInRoom)
	}
	if _, exists := gs.rooms[code]; exists {
		gs.mu.Unlock()
		return gs.reject(connID, models.EventGameCreationError, ErrDuplicateRoomCode)
	}
	gs.rooms[code] = r
	gs.connRooms[connID] = code
	gs.mu.Unlock()

	r.addPlayer(connID, playerName)
	gs.hub.JoinRoom(connID, code)

	log.Info().
		Str("room", code).
		Str("conn", connID).
		Int("max_players", settings.MaxPlayers).
		Int("questions_per_game", settings.QuestionsPerGame).
		Msg("room created")

	gs.hub.EmitTo(connID, models.EventGameCreated, code)
	gs.hub.EmitToRoom(code, models.EventGameState, models.Waiting)
	gs.hub.EmitToRoom(code, models.EventPlayerList, r.playerList())
	gs.publish(r, models.RoomCreated)
	return nil
}

func (gs *GameService) JoinGame(ctx context.Context, connID, code, playerName string) error {
	code = strings.TrimSpace(code)
	r := gs.roomByCode(code)
	if r == nil {
		return gs.reject(connID, models.EventError, ErrRoomNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return gs.reject(connID, models.EventError, ErrRoomNotFound)
	case r.state != models.Waiting:
		return gs.reject(connID, models.EventError, ErrRoomNotJoinable)
	case r.isFull():
		return gs.reject(connID, models.EventError, ErrRoomFull)
	}

	gs.mu.Lock()
	if _, ok := gs.connRooms[connID]; ok {
		gs.mu.Unlock()
		return gs.reject(connID, models.EventError, ErrAlreadyInRoom)
	}
	gs.connRooms[connID] = code
	gs.mu.Unlock()

	r.addPlayer(connID, playerName)
	gs.hub.JoinRoom(connID, code)

	log.Info().
		Str("room", code).
		Str("conn", connID).
		Int("players", len(r.players)).
		Msg("player joined")

	gs.hub.EmitTo(connID, models.EventGameCreated, code)
	gs.hub.EmitToRoom(code, models.EventGameState, models.Waiting)
	gs.hub.EmitToRoom(code, models.EventPlayerList, r.playerList())
	return nil
}

func (gs *GameService) StartGame(ctx context.Context, connID string) error {
	r := gs.lockRoomByConn(connID)
	if r == nil {
		return gs.reject(connID, models.EventError, ErrNotInRoom)
	}
	defer r.mu.Unlock()

	if r.state != models.Waiting {
		return gs.reject(connID, models.EventError, ErrGameInProgress)
	}

	total, err := r.source.prepare(ctx, r.settings.QuestionsPerGame*len(r.players))
	if err != nil {
		log.Error().Err(err).Str("room", r.code).Msg("could not prepare questions")
		return gs.reject(connID, models.EventError, ErrCatalogUnavailable)
	}

	r.state = models.Playing
	r.totalQuestions = total
	r.currentQuestionIndex = -1

	log.Info().
		Str("room", r.code).
		Int("players", len(r.players)).
		Int("total_questions", total).
		Msg("game started")

	gs.hub.EmitToRoom(r.code, models.EventGameState, models.Playing)
	gs.publish(r, models.GameStarted)
	gs.advance(ctx, r)
	return nil
}

// Answer scores the current player's answer and moves play on. Answers
// from anyone but the current player, or outside a running game, are
// ignored.
func (gs *GameService) Answer(ctx context.Context, connID string, choice AnswerChoice) error {
	r := gs.lockRoomByConn(connID)
	if r == nil {
		return gs.reject(connID, models.EventError, ErrNotInRoom)
	}
	defer r.mu.Unlock()

	player := r.currentPlayer()
	if player == nil || player.ID != connID || r.currentQuestion == nil {
		return nil
	}

	answer, ok := resolveAnswer(r.currentQuestion, choice)
	if !ok {
		return gs.reject(connID, models.EventError, ErrInvalidAnswer)
	}

	gs.cancelTimeout(r)

	correct, err := gs.catalog.IsCorrect(ctx, r.currentQuestion.ID, answer.ID)
	if err != nil {
		log.Warn().Err(err).Str("room", r.code).Str("question", r.currentQuestion.ID).Msg("could not check answer, scoring as incorrect")
		correct = false
	}
	if correct {
		player.Score++
	}

	log.Debug().
		Str("room", r.code).
		Str("conn", connID).
		Bool("correct", correct).
		Int("score", player.Score).
		Msg("answer received")

	gs.hub.EmitToRoom(r.code, models.EventPlayerList, r.playerList())
	gs.advance(ctx, r)
	return nil
}

func resolveAnswer(q *models.Question, choice AnswerChoice) (models.Answer, bool) {
	if choice.ByIndex {
		if choice.Index < 0 || choice.Index >= len(q.Answers) {
			return models.Answer{}, false
		}
		return q.Answers[choice.Index], true
	}
	for _, a := range q.Answers {
		if a.ID == choice.ID {
			return a, true
		}
	}
	return models.Answer{}, false
}

func (gs *GameService) LeaveGame(ctx context.Context, connID string) error {
	r := gs.lockRoomByConn(connID)
	if r == nil {
		return ErrNotInRoom
	}
	defer r.mu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("room", r.code).Str("conn", connID).Msg("recovered while removing player")
		}
	}()

	gs.removePlayer(ctx, r, connID)
	return nil
}

// Disconnect handles a closed connection like a leave.
func (gs *GameService) Disconnect(ctx context.Context, connID string) {
	if err := gs.LeaveGame(ctx, connID); err == nil {
		log.Info().Str("conn", connID).Msg("player disconnected")
	}
}

// removePlayer drops a player and keeps the turn pointer on a sane player.
// Caller must hold r.mu.
func (gs *GameService) removePlayer(ctx context.Context, r *room, connID string) {
	idx := r.removePlayer(connID)
	if idx < 0 {
		return
	}
	gs.hub.LeaveRoom(connID, r.code)

	gs.mu.Lock()
	delete(gs.connRooms, connID)
	gs.mu.Unlock()

	log.Info().
		Str("room", r.code).
		Str("conn", connID).
		Int("players", len(r.players)).
		Msg("player left")

	if len(r.players) == 0 {
		gs.destroyRoom(r)
		return
	}

	wasCurrent := false
	if r.state == models.Playing {
		switch {
		case idx < r.currentPlayerIndex:
			r.currentPlayerIndex--
		case idx == r.currentPlayerIndex:
			r.currentPlayerIndex = max(idx-1, 0)
			wasCurrent = true
		}
	}

	gs.hub.EmitToRoom(r.code, models.EventPlayerList, r.playerList())
	if wasCurrent {
		gs.advance(ctx, r)
	}
}

// finishGame announces the end of the game and tears the room down.
// Caller must hold r.mu.
func (gs *GameService) finishGame(r *room) {
	r.state = models.Finished
	gs.hub.EmitToRoom(r.code, models.EventGameState, models.Finished)
	gs.publish(r, models.GameFinished)

	log.Info().Str("room", r.code).Msg("game finished")
	gs.destroyRoom(r)
}

// destroyRoom removes the room from the table. Caller must hold r.mu.
func (gs *GameService) destroyRoom(r *room) {
	gs.cancelTimeout(r)
	r.closed = true

	for _, p := range r.players {
		gs.hub.LeaveRoom(p.ID, r.code)
	}

	gs.mu.Lock()
	if gs.rooms[r.code] == r {
		delete(gs.rooms, r.code)
	}
	for _, p := range r.players {
		if gs.connRooms[p.ID] == r.code {
			delete(gs.connRooms, p.ID)
		}
	}
	gs.mu.Unlock()

	gs.publish(r, models.RoomClosed)
	log.Info().Str("room", r.code).Msg("room closed")
}

// Rooms returns a snapshot of every live room ordered by code.
func (gs *GameService) Rooms() []models.RoomSummary {
	gs.mu.Lock()
	rooms := make([]*room, 0, len(gs.rooms))
	for _, r := range gs.rooms {
		rooms = append(rooms, r)
	}
	gs.mu.Unlock()

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			summaries = append(summaries, r.summary())
		}
		r.mu.Unlock()
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Code < summaries[j].Code })
	return summaries
}

func (gs *GameService) Room(code string) (models.RoomSummary, error) {
	r := gs.roomByCode(code)
	if r == nil {
		return models.RoomSummary{}, ErrRoomNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.RoomSummary{}, ErrRoomNotFound
	}
	return r.summary(), nil
}

// Close stops every pending turn timer.
func (gs *GameService) Close() {
	gs.cancel()

	gs.mu.Lock()
	rooms := make([]*room, 0, len(gs.rooms))
	for _, r := range gs.rooms {
		rooms = append(rooms, r)
	}
	gs.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		gs.cancelTimeout(r)
		r.mu.Unlock()
	}
}

func (gs *GameService) loadSettings(ctx context.Context) models.Settings {
	settings, err := gs.catalog.Settings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load game settings, using defaults")
		return gs.defaults
	}
	if !settings.Valid() {
		return gs.defaults
	}
	return settings
}

func (gs *GameService) roomByCode(code string) *room {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.rooms[code]
}

// lockRoomByConn returns the locked room the connection plays in, or nil.
func (gs *GameService) lockRoomByConn(connID string) *room {
	gs.mu.Lock()
	code, ok := gs.connRooms[connID]
	r := gs.rooms[code]
	gs.mu.Unlock()
	if !ok || r == nil {
		return nil
	}

	r.mu.Lock()
	if r.closed || r.playerIndex(connID) < 0 {
		r.mu.Unlock()
		return nil
	}
	return r
}

func (gs *GameService) reject(connID, event string, err error) error {
	gs.hub.EmitTo(connID, event, err.Error())
	log.Debug().Err(err).Str("conn", connID).Str("event", event).Msg("request rejected")
	return err
}

func (gs *GameService) publish(r *room, eventType string) {
	gs.publisher.Publish(models.RoomEvent{
		Type:      eventType,
		Code:      r.code,
		Players:   r.playerList(),
		Timestamp: gs.clock.Now(),
	})
}
