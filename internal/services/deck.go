package services

import (
	"context"
	"fmt"

	"trivia-game/internal/models"
)

// DeckMode selects how a room obtains its questions.
type DeckMode string

const (
	// DeckBatch fetches every question of the game when it starts.
	DeckBatch DeckMode = "batch"
	// DeckDraw draws one random question per turn.
	DeckDraw DeckMode = "draw"
)

// questionSource hides the deck strategy from the turn logic.
type questionSource interface {
	// prepare readies the source for a game of want questions and returns
	// how many questions the game will have.
	prepare(ctx context.Context, want int) (int, error)
	next(ctx context.Context) (*models.Question, error)
}

func newQuestionSource(mode DeckMode, catalog Catalog) questionSource {
	if mode == DeckDraw {
		return &drawDeck{catalog: catalog}
	}
	return &batchDeck{catalog: catalog}
}

type batchDeck struct {
	catalog Catalog
	deck    []models.Question
	cursor  int
}

func (d *batchDeck) prepare(ctx context.Context, want int) (int, error) {
	questions, err := d.catalog.SampleQuestions(ctx, want)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if len(questions) == 0 {
		return 0, ErrCatalogUnavailable
	}
	d.deck = questions
	d.cursor = 0
	return len(questions), nil
}

func (d *batchDeck) next(ctx context.Context) (*models.Question, error) {
	if d.cursor >= len(d.deck) {
		return nil, fmt.Errorf("%w: deck exhausted", ErrCatalogUnavailable)
	}
	q := &d.deck[d.cursor]
	d.cursor++
	return q, nil
}

type drawDeck struct {
	catalog Catalog
	pending *models.Question
}

// prepare draws the first question up front so an empty catalog fails the
// start instead of the first turn.
func (d *drawDeck) prepare(ctx context.Context, want int) (int, error) {
	q, err := d.draw(ctx)
	if err != nil {
		return 0, err
	}
	d.pending = q
	return want, nil
}

func (d *drawDeck) next(ctx context.Context) (*models.Question, error) {
	if q := d.pending; q != nil {
		d.pending = nil
		return q, nil
	}
	return d.draw(ctx)
}

func (d *drawDeck) draw(ctx context.Context) (*models.Question, error) {
	questions, err := d.catalog.SampleQuestions(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if len(questions) == 0 {
		return nil, ErrCatalogUnavailable
	}
	return &questions[0], nil
}
