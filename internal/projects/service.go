package projects

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quoteflow/quoteflow/internal/observability"
	"github.com/quoteflow/quoteflow/internal/shared"
)

var (
	// ErrNotFound indicates a missing project or invoice.
	ErrNotFound = fmt.Errorf("projects: %w", shared.ErrNotFound)
	// ErrAdminOnly is returned when a client attempts an admin operation.
	ErrAdminOnly = fmt.Errorf("projects: admin only: %w", shared.ErrForbidden)
	// ErrNotOwner is returned when a client reads another user's project.
	ErrNotOwner = fmt.Errorf("projects: not owner: %w", shared.ErrForbidden)
	// ErrInvalidAmount is returned for non-positive invoice amounts.
	ErrInvalidAmount = fmt.Errorf("projects: invoice amount must be positive: %w", shared.ErrInvalidInput)
	// ErrStale is returned when a concurrent writer changed the row first.
	ErrStale = fmt.Errorf("projects: concurrent update: %w", shared.ErrConflict)
)

// Repository defines data access for projects and invoices.
type Repository interface {
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjectsByUser(ctx context.Context, userID uuid.UUID) ([]Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error)
	// NextInvoiceSeq returns the next per-project invoice sequence number.
	NextInvoiceSeq(ctx context.Context, projectID uuid.UUID) (int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	// UpdateProjectStatus writes p when the stored status still equals from.
	UpdateProjectStatus(ctx context.Context, p Project, from Status) error
	InsertInvoice(ctx context.Context, inv Invoice) error
	SetInvoicePaid(ctx context.Context, id uuid.UUID, paid bool, paidAt *time.Time) error
}

// History records status changes.
type History interface {
	Record(ctx context.Context, t shared.Transition) error
}

// Options carries optional collaborators of the service.
type Options struct {
	History History
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Service handles project lifecycle and ledger reads.
type Service struct {
	repo    Repository
	history History
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:    repo,
		history: opts.History,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) canRead(actor shared.Actor, p *Project) error {
	if actor.IsAdmin() || actor.Owns(p.UserID) {
		return nil
	}
	return ErrNotOwner
}

// Get returns a project visible to the actor.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListForUser returns the actor's projects, or every project for admins.
func (s *Service) ListForUser(ctx context.Context, actor shared.Actor) ([]Project, error) {
	if actor.IsAdmin() {
		return s.repo.ListProjects(ctx)
	}
	return s.repo.ListProjectsByUser(ctx, actor.UserID)
}

// Transition moves a project to a new status.
func (s *Service) Transition(ctx context.Context, actor shared.Actor, id uuid.UUID, req TransitionRequest) (*Project, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	current, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	next, err := apply(*current, req.Status, s.now())
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateProjectStatus(ctx, next, current.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("transition project: %w", err)
	}
	s.metrics.ObserveProjectTransition(string(next.Status))
	s.record(ctx, shared.Transition{
		Module:  shared.HistoryProject,
		RefID:   next.ID,
		ActorID: actor.UserID,
		From:    string(current.Status),
		To:      string(next.Status),
		Note:    req.Note,
		At:      next.UpdatedAt,
	})
	return &next, nil
}

// AddInvoice raises a new unpaid invoice against a project.
func (s *Service) AddInvoice(ctx context.Context, actor shared.Actor, projectID uuid.UUID, req CreateInvoiceRequest) (*Invoice, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.DueDate.IsZero() {
		return nil, fmt.Errorf("projects: due date required: %w", shared.ErrInvalidInput)
	}
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p.Status == StatusCancelled {
		return nil, ErrProjectClosed
	}

	now := s.now()
	inv := Invoice{
		ID:            uuid.New(),
		ProjectID:     projectID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Amount:        req.Amount,
		DueDate:       req.DueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if inv.InvoiceNumber == "" {
		n, err := s.repo.NextInvoiceSeq(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("next invoice number: %w", err)
		}
		inv.InvoiceNumber = InvoiceNumber(projectID, n)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertInvoice(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("add invoice: %w", err)
	}
	s.metrics.ObserveInvoice("created")
	return &inv, nil
}

// SetInvoicePaid flips the paid flag of an invoice.
func (s *Service) SetInvoicePaid(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID, paid bool) (*Invoice, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv.IsPaid == paid {
		return inv, nil
	}

	now := s.now()
	var paidAt *time.Time
	if paid {
		paidAt = &now
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetInvoicePaid(ctx, invoiceID, paid, paidAt)
	})
	if err != nil {
		return nil, fmt.Errorf("set invoice paid: %w", err)
	}
	inv.IsPaid = paid
	inv.PaidAt = paidAt
	inv.UpdatedAt = now
	if paid {
		s.metrics.ObserveInvoice("paid")
	} else {
		s.metrics.ObserveInvoice("unpaid")
	}
	return inv, nil
}

// Invoices lists a project's invoices.
func (s *Service) Invoices(ctx context.Context, actor shared.Actor, projectID uuid.UUID) ([]Invoice, error) {
	if _, err := s.Get(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListInvoices(ctx, projectID)
}

// Ledger loads the project and its invoices concurrently and derives the
// payment position as of now.
func (s *Service) Ledger(ctx context.Context, actor shared.Actor, projectID uuid.UUID) (*Ledger, error) {
	var (
		project  *Project
		invoices []Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.repo.GetProject(gctx, projectID)
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		project = p
		return nil
	})
	g.Go(func() error {
		list, err := s.repo.ListInvoices(gctx, projectID)
		if err != nil {
			return fmt.Errorf("list invoices: %w", err)
		}
		invoices = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := s.canRead(actor, project); err != nil {
		return nil, err
	}
	ledger := Derive(*project, invoices, s.now())
	return &ledger, nil
}

func (s *Service) record(ctx context.Context, t shared.Transition) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, t); err != nil {
		s.logger.Warn("record project history", slog.String("project_id", t.RefID.String()), slog.Any("error", err))
	}
}

// InvoiceNumber formats the n-th invoice number of a project.
func InvoiceNumber(projectID uuid.UUID, n int) string {
	prefix := strings.ToUpper(strings.ReplaceAll(projectID.String(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%03d", prefix, n)
}
