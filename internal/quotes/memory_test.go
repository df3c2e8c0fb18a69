package quotes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quoteflow/quoteflow/internal/projects"
	"github.com/quoteflow/quoteflow/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	quotes   map[uuid.UUID]Quote
	projects map[uuid.UUID]projects.Project
}

// memoryTx stages writes and applies them only when fn succeeds.
type memoryTx struct {
	repo     *memoryRepo
	quotes   map[uuid.UUID]Quote
	projects map[uuid.UUID]projects.Project
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotes:   make(map[uuid.UUID]Quote),
		projects: make(map[uuid.UUID]projects.Project),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{
		repo:     r,
		quotes:   make(map[uuid.UUID]Quote),
		projects: make(map[uuid.UUID]projects.Project),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, q := range tx.quotes {
		r.quotes[id] = q
	}
	for id, p := range tx.projects {
		r.projects[id] = p
	}
	return nil
}

func (r *memoryRepo) GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (r *memoryRepo) ListQuotesByUser(ctx context.Context, userID uuid.UUID) ([]Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Quote
	for _, q := range r.quotes {
		if q.UserID == userID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListQuotes(ctx context.Context) ([]Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Quote, 0, len(r.quotes))
	for _, q := range r.quotes {
		out = append(out, q)
	}
	return out, nil
}

func (r *memoryRepo) projectsForQuote(quoteID uuid.UUID) []projects.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []projects.Project
	for _, p := range r.projects {
		if p.QuoteID == quoteID {
			out = append(out, p)
		}
	}
	return out
}

func (tx *memoryTx) current(id uuid.UUID) (Quote, bool) {
	if q, ok := tx.quotes[id]; ok {
		return q, true
	}
	q, ok := tx.repo.quotes[id]
	return q, ok
}

func (tx *memoryTx) InsertQuote(ctx context.Context, q Quote) error {
	if _, ok := tx.current(q.ID); ok {
		return errors.New("duplicate quote id")
	}
	tx.quotes[q.ID] = q
	return nil
}

func (tx *memoryTx) UpdateQuote(ctx context.Context, q Quote, from Status) error {
	stored, ok := tx.current(q.ID)
	if !ok || stored.Status != from {
		return ErrStale
	}
	q.ProjectID = stored.ProjectID
	tx.quotes[q.ID] = q
	return nil
}

func (tx *memoryTx) LinkProject(ctx context.Context, quoteID, projectID uuid.UUID, at time.Time) error {
	stored, ok := tx.current(quoteID)
	if !ok || stored.Status != StatusAccepted || stored.ProjectID != nil {
		return ErrAlreadyConverted
	}
	stored.ProjectID = &projectID
	stored.UpdatedAt = at
	tx.quotes[quoteID] = stored
	return nil
}

func (tx *memoryTx) InsertProject(ctx context.Context, p projects.Project) error {
	for _, existing := range tx.repo.projects {
		if existing.QuoteID == p.QuoteID {
			return ErrAlreadyConverted
		}
	}
	tx.projects[p.ID] = p
	return nil
}

type memoryHistory struct {
	mu      sync.Mutex
	entries []shared.Transition
}

func (h *memoryHistory) Record(ctx context.Context, t shared.Transition) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, t)
	return nil
}

func (h *memoryHistory) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.Transition, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []shared.Transition{}
	for _, t := range h.entries {
		if t.Module == module && t.RefID == ref {
			out = append(out, t)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []SubmittedEvent
	err    error
}

func (n *recordingNotifier) QuoteSubmitted(ctx context.Context, ev SubmittedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}
