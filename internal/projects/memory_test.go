package projects

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quoteflow/quoteflow/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]Project
	invoices map[uuid.UUID]Invoice
	seq      map[uuid.UUID]int
	history  []shared.Transition
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(projects ...Project) *memoryRepo {
	r := &memoryRepo{
		projects: make(map[uuid.UUID]Project),
		invoices: make(map[uuid.UUID]Invoice),
		seq:      make(map[uuid.UUID]int),
	}
	for _, p := range projects {
		r.projects[p.ID] = p
	}
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memoryRepo) ListProjectsByUser(ctx context.Context, userID uuid.UUID) ([]Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Project
	for _, p := range r.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListProjects(ctx context.Context) ([]Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.ProjectID == projectID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, nil
}

func (r *memoryRepo) NextInvoiceSeq(ctx context.Context, projectID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[projectID]; !ok {
		return 0, ErrNotFound
	}
	r.seq[projectID]++
	return r.seq[projectID], nil
}

func (r *memoryRepo) Record(ctx context.Context, t shared.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, t)
	return nil
}

func (tx *memoryTx) UpdateProjectStatus(ctx context.Context, p Project, from Status) error {
	current, ok := tx.repo.projects[p.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != from {
		return ErrStale
	}
	tx.repo.projects[p.ID] = p
	return nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) error {
	for _, existing := range tx.repo.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return ErrDuplicateInvoiceNumber
		}
	}
	tx.repo.invoices[inv.ID] = inv
	return nil
}

func (tx *memoryTx) SetInvoicePaid(ctx context.Context, id uuid.UUID, paid bool, paidAt *time.Time) error {
	inv, ok := tx.repo.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.IsPaid = paid
	inv.PaidAt = paidAt
	tx.repo.invoices[id] = inv
	return nil
}
