package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"trivia-game/internal/models"
)

type emitted struct {
	To      string
	Room    string
	Event   string
	Payload interface{}
}

// recorder is an in-memory Broadcaster.
type recorder struct {
	mu      sync.Mutex
	events  []emitted
	members map[string]map[string]bool
}

func newRecorder() *recorder {
	return &recorder{members: make(map[string]map[string]bool)}
}

func (r *recorder) EmitTo(connID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{To: connID, Event: event, Payload: payload})
}

func (r *recorder) EmitToRoom(code, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Room: code, Event: event, Payload: payload})
}

func (r *recorder) JoinRoom(connID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[code] == nil {
		r.members[code] = make(map[string]bool)
	}
	r.members[code][connID] = true
}

func (r *recorder) LeaveRoom(connID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[code], connID)
}

func (r *recorder) memberCount(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[code])
}

func (r *recorder) find(match func(emitted) bool) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.events {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) sentTo(connID, event string) []emitted {
	return r.find(func(e emitted) bool { return e.To == connID && e.Event == event })
}

func (r *recorder) roomEvents(code, event string) []emitted {
	return r.find(func(e emitted) bool { return e.Room == code && e.Event == event })
}

func (r *recorder) questionUpdates(code string) []models.QuestionUpdate {
	var out []models.QuestionUpdate
	for _, e := range r.roomEvents(code, models.EventQuestionUpdate) {
		out = append(out, e.Payload.(models.QuestionUpdate))
	}
	return out
}

func (r *recorder) lastQuestion(t *testing.T, code string) models.QuestionUpdate {
	t.Helper()
	updates := r.questionUpdates(code)
	if len(updates) == 0 {
		t.Fatalf("no questionUpdate sent to %s", code)
	}
	return updates[len(updates)-1]
}

func (r *recorder) lastPlayerList(t *testing.T, code string) []models.Player {
	t.Helper()
	lists := r.roomEvents(code, models.EventPlayerList)
	if len(lists) == 0 {
		t.Fatalf("no playerList sent to %s", code)
	}
	return lists[len(lists)-1].Payload.([]models.Player)
}

func (r *recorder) states(code string) []models.GameState {
	var out []models.GameState
	for _, e := range r.roomEvents(code, models.EventGameState) {
		out = append(out, e.Payload.(models.GameState))
	}
	return out
}

// fakeCatalog serves questions q1..qN in order; answer "qN-a" is correct.
type fakeCatalog struct {
	mu          sync.Mutex
	settings    models.Settings
	settingsErr error
	sampleErr   error
	questions   []models.Question
	samples     int
}

func newFakeCatalog(n int, settings models.Settings) *fakeCatalog {
	c := &fakeCatalog{settings: settings}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("q%d", i)
		c.questions = append(c.questions, models.Question{
			ID:   id,
			Text: "Question " + id,
			Answers: []models.Answer{
				{ID: id + "-a", Text: "right", IsCorrect: true},
				{ID: id + "-b", Text: "wrong"},
			},
		})
	}
	return c
}

func (c *fakeCatalog) Settings(ctx context.Context) (models.Settings, error) {
	if c.settingsErr != nil {
		return models.Settings{}, c.settingsErr
	}
	return c.settings, nil
}

func (c *fakeCatalog) SampleQuestions(ctx context.Context, n int) ([]models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples++
	if c.sampleErr != nil {
		return nil, c.sampleErr
	}
	if n > len(c.questions) {
		n = len(c.questions)
	}
	return append([]models.Question(nil), c.questions[:n]...), nil
}

func (c *fakeCatalog) IsCorrect(ctx context.Context, questionID, answerID string) (bool, error) {
	for _, q := range c.questions {
		if q.ID != questionID {
			continue
		}
		for _, a := range q.Answers {
			if a.ID == answerID {
				return a.IsCorrect, nil
			}
		}
	}
	return false, errors.New("unknown answer")
}

type publishRecorder struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (p *publishRecorder) Publish(event models.RoomEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *publishRecorder) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestService(t *testing.T, catalog Catalog, opts ...Option) (*GameService, *recorder, *clockwork.FakeClock) {
	t.Helper()
	rec := newRecorder()
	clock := clockwork.NewFakeClock()
	gs := NewGameService(rec, catalog, append([]Option{WithClock(clock)}, opts...)...)
	t.Cleanup(gs.Close)
	return gs, rec, clock
}

func settings(maxPlayers, perGame int) models.Settings {
	return models.Settings{MaxPlayers: maxPlayers, TimePerQuestion: 10000, QuestionsPerGame: perGame}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func correctAnswer(q models.QuestionUpdate) AnswerChoice {
	return AnswerChoice{ID: q.Question.Answers[0].ID}
}

func wrongAnswer() AnswerChoice {
	return AnswerChoice{Index: 1, ByIndex: true}
}
