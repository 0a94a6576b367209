package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"trivia-game/internal/models"
)

// turnTimer is the single pending countdown of a room.
type turnTimer struct {
	timer clockwork.Timer
	stop  chan struct{}
}

// advance ends the current question and serves the next one, or finishes
// the game. It is both the timeout handler and the post-answer step.
// Caller must hold r.mu.
func (gs *GameService) advance(ctx context.Context, r *room) {
	gs.cancelTimeout(r)

	r.currentQuestionIndex++
	if r.currentQuestionIndex >= r.totalQuestions {
		gs.finishGame(r)
		return
	}

	if r.currentQuestionIndex == 0 {
		r.currentPlayerIndex = 0
	} else {
		r.currentPlayerIndex = (r.currentPlayerIndex + 1) % len(r.players)
	}

	question, err := r.source.next(ctx)
	if err != nil {
		log.Error().Err(err).Str("room", r.code).Msg("could not get next question, finishing game")
		gs.finishGame(r)
		return
	}
	r.currentQuestion = question

	update := models.QuestionUpdate{
		Question:              question.View(),
		CurrentPlayer:         *r.players[r.currentPlayerIndex],
		TimeLeft:              r.settings.TimePerQuestion / 1000,
		CurrentQuestionNumber: r.currentQuestionIndex + 1,
		TotalQuestions:        r.totalQuestions,
	}
	gs.hub.EmitToRoom(r.code, models.EventQuestionUpdate, update)

	log.Debug().
		Str("room", r.code).
		Str("player", update.CurrentPlayer.ID).
		Int("question", update.CurrentQuestionNumber).
		Int("total", update.TotalQuestions).
		Msg("question served")

	gs.scheduleTimeout(r)
}

// scheduleTimeout replaces the room's countdown. Caller must hold r.mu.
func (gs *GameService) scheduleTimeout(r *room) {
	gs.cancelTimeout(r)

	t := &turnTimer{
		timer: gs.clock.NewTimer(time.Duration(r.settings.TimePerQuestion) * time.Millisecond),
		stop:  make(chan struct{}),
	}
	r.timer = t
	gen := r.generation

	go func() {
		select {
		case <-t.timer.Chan():
			gs.handleTimeout(r, gen)
		case <-t.stop:
		}
	}()
}

// cancelTimeout stops the pending countdown, if any, and invalidates every
// timer scheduled before it. Caller must hold r.mu.
func (gs *GameService) cancelTimeout(r *room) {
	r.generation++
	if r.timer == nil {
		return
	}
	close(r.timer.stop)
	stopAndDrainTimer(r.timer.timer)
	r.timer = nil
}

func (gs *GameService) handleTimeout(r *room, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.state != models.Playing || r.generation != gen {
		log.Debug().Str("room", r.code).Msg("stale turn timer ignored")
		return
	}

	log.Info().
		Str("room", r.code).
		Int("question", r.currentQuestionIndex+1).
		Msg("turn timed out")
	gs.advance(gs.ctx, r)
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
