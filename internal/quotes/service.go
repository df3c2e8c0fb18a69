package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quoteflow/quoteflow/internal/observability"
	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/projects"
	"github.com/quoteflow/quoteflow/internal/shared"
)

var (
	// ErrNotFound indicates a missing quote.
	ErrNotFound = fmt.Errorf("quotes: %w", shared.ErrNotFound)
	// ErrStale is returned when a concurrent writer changed the quote first.
	ErrStale = fmt.Errorf("quotes: concurrent update: %w", shared.ErrConflict)
)

// Repository defines data access for quotes.
type Repository interface {
	GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error)
	ListQuotesByUser(ctx context.Context, userID uuid.UUID) ([]Quote, error)
	ListQuotes(ctx context.Context) ([]Quote, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertQuote(ctx context.Context, q Quote) error
	// UpdateQuote writes q when the stored status still equals from.
	UpdateQuote(ctx context.Context, q Quote, from Status) error
	// LinkProject sets project_id on an ACCEPTED quote that has none yet.
	LinkProject(ctx context.Context, quoteID, projectID uuid.UUID, at time.Time) error
	InsertProject(ctx context.Context, p projects.Project) error
}

// Notifier publishes quote events to external delivery.
type Notifier interface {
	QuoteSubmitted(ctx context.Context, ev SubmittedEvent) error
}

// History records and lists status changes.
type History interface {
	Record(ctx context.Context, t shared.Transition) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.Transition, error)
}

// Locker guards conversion against duplicate clicks.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context), error)
}

// Options carries optional collaborators of the service.
type Options struct {
	Notifier Notifier
	History  History
	Locker   Locker
	Metrics  *observability.Metrics
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Service drives the quote lifecycle.
type Service struct {
	repo     Repository
	catalogs *pricing.CatalogStore
	notifier Notifier
	history  History
	locker   Locker
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, catalogs *pricing.CatalogStore, opts Options) *Service {
	s := &Service{
		repo:     repo,
		catalogs: catalogs,
		notifier: opts.Notifier,
		history:  opts.History,
		locker:   opts.Locker,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// price computes sel against the active catalog.
func (s *Service) price(sel pricing.Selection) (pricing.Estimate, error) {
	est, err := pricing.Compute(s.catalogs.Current(), sel)
	if err != nil {
		return pricing.Estimate{}, err
	}
	s.metrics.ObserveEstimate(string(sel.ServiceType))
	return est, nil
}

func canRead(actor shared.Actor, q *Quote) error {
	if actor.IsAdmin() || actor.Owns(q.UserID) {
		return nil
	}
	return ErrNotOwner
}

// CreateDraft prices sel and stores it as a DRAFT owned by the actor.
func (s *Service) CreateDraft(ctx context.Context, actor shared.Actor, sel pricing.Selection) (*Quote, error) {
	est, err := s.price(sel)
	if err != nil {
		return nil, err
	}
	now := s.now()
	q := Quote{
		ID:        uuid.New(),
		UserID:    actor.UserID,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.price(sel, est)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertQuote(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}
	s.metrics.ObserveQuoteTransition(string(StatusDraft))
	s.record(ctx, actor, q.ID, "", string(StatusDraft), "", now)
	return &q, nil
}

// UpdateSelection replaces the selection of a draft and re-prices it. Edits
// are last write wins.
func (s *Service) UpdateSelection(ctx context.Context, actor shared.Actor, id uuid.UUID, sel pricing.Selection) (*Quote, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(q.UserID) {
		return nil, ErrNotOwner
	}
	if q.Frozen() {
		return nil, ErrQuoteFrozen
	}
	est, err := s.price(sel)
	if err != nil {
		return nil, err
	}
	q.price(sel, est)
	q.UpdatedAt = s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateQuote(ctx, *q, StatusDraft)
	})
	if err != nil {
		if errors.Is(err, ErrStale) {
			return nil, ErrQuoteFrozen
		}
		return nil, fmt.Errorf("update selection: %w", err)
	}
	return q, nil
}

// Submit freezes the price snapshot and hands the quote to review. The
// snapshot is taken against the catalog active at submission.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, id uuid.UUID) (*Quote, error) {
	current, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := apply(actor, *current, StatusSubmitted, s.now())
	if err != nil {
		return nil, err
	}
	est, err := s.price(next.Selection)
	if err != nil {
		return nil, err
	}
	next.price(next.Selection, est)
	if err := s.save(ctx, next, current.Status); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, actor, *current, next, "")

	if s.notifier != nil {
		if err := s.notifier.QuoteSubmitted(ctx, submittedEvent(next)); err != nil {
			s.logger.Warn("notify quote submitted", slog.String("quote_id", next.ID.String()), slog.Any("error", err))
		}
	}
	return &next, nil
}

// StartReview moves a submitted quote into review.
func (s *Service) StartReview(ctx context.Context, actor shared.Actor, id uuid.UUID) (*Quote, error) {
	return s.transition(ctx, actor, id, StatusInReview, "")
}

// Accept approves a quote in review.
func (s *Service) Accept(ctx context.Context, actor shared.Actor, id uuid.UUID) (*Quote, error) {
	return s.transition(ctx, actor, id, StatusAccepted, "")
}

// Reject declines a quote in review. REJECTED is terminal.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, id uuid.UUID, reason string) (*Quote, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("quotes: rejection reason required: %w", shared.ErrInvalidInput)
	}
	return s.transition(ctx, actor, id, StatusRejected, reason)
}

func (s *Service) transition(ctx context.Context, actor shared.Actor, id uuid.UUID, to Status, reason string) (*Quote, error) {
	current, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := apply(actor, *current, to, s.now())
	if err != nil {
		return nil, err
	}
	if to == StatusRejected {
		next.RejectionReason = reason
	}
	if err := s.save(ctx, next, current.Status); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, actor, *current, next, reason)
	return &next, nil
}

func (s *Service) save(ctx context.Context, q Quote, from Status) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateQuote(ctx, q, from)
	})
	if err != nil {
		return fmt.Errorf("transition quote: %w", err)
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, actor shared.Actor, from, to Quote, note string) {
	s.metrics.ObserveQuoteTransition(string(to.Status))
	s.record(ctx, actor, to.ID, string(from.Status), string(to.Status), note, to.UpdatedAt)
	s.logger.Info("quote status changed",
		slog.String("quote_id", to.ID.String()),
		slog.String("from", string(from.Status)),
		slog.String("to", string(to.Status)),
		slog.String("actor", actor.UserID.String()))
}

// ConvertToProject creates the project for an accepted quote. The quote row is
// claimed and the project inserted in one transaction, so a second attempt
// fails with ErrAlreadyConverted and exactly one project exists.
func (s *Service) ConvertToProject(ctx context.Context, actor shared.Actor, id uuid.UUID, name string) (*projects.Project, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.ConvertLockKey(id))
		switch {
		case errors.Is(err, shared.ErrLockHeld):
			s.metrics.ObserveConversion("conflict")
			return nil, ErrConversionInProgress
		case err != nil:
			s.logger.Warn("convert lock unavailable", slog.String("quote_id", id.String()), slog.Any("error", err))
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Converted() {
		s.metrics.ObserveConversion("conflict")
		return nil, ErrAlreadyConverted
	}
	if q.Status != StatusAccepted {
		return nil, fmt.Errorf("%w: status %s", ErrNotConvertible, q.Status)
	}

	now := s.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultProjectName(*q)
	}
	p := projects.NewFromQuote(projects.ConversionInput{
		QuoteID:       q.ID,
		UserID:        q.UserID,
		Name:          name,
		ContractValue: q.OneTimeTotal,
		HasCarePlan:   q.HasCarePlan(),
		At:            now,
	})
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LinkProject(ctx, q.ID, p.ID, now); err != nil {
			return err
		}
		return tx.InsertProject(ctx, p)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyConverted) {
			s.metrics.ObserveConversion("conflict")
			return nil, ErrAlreadyConverted
		}
		s.metrics.ObserveConversion("error")
		return nil, fmt.Errorf("convert quote: %w", err)
	}
	s.metrics.ObserveConversion("created")
	s.metrics.ObserveProjectTransition(string(p.Status))
	s.record(ctx, actor, q.ID, string(StatusAccepted), "CONVERTED", p.ID.String(), now)
	if s.history != nil {
		if err := s.history.Record(ctx, shared.Transition{
			Module: shared.HistoryProject, RefID: p.ID, ActorID: actor.UserID,
			To: string(p.Status), Note: "from quote " + q.ID.String(), At: now,
		}); err != nil {
			s.logger.Warn("record project history", slog.String("project_id", p.ID.String()), slog.Any("error", err))
		}
	}
	return &p, nil
}

func defaultProjectName(q Quote) string {
	short := strings.ToUpper(strings.ReplaceAll(q.ID.String(), "-", "")[:8])
	return fmt.Sprintf("%s project %s", q.ServiceType, short)
}

// Get returns a quote visible to the actor. Stored pricing is returned as is.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (*Quote, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canRead(actor, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListMine returns the actor's own quotes.
func (s *Service) ListMine(ctx context.Context, actor shared.Actor) ([]Quote, error) {
	return s.repo.ListQuotesByUser(ctx, actor.UserID)
}

// ListAll returns every quote. Admin only.
func (s *Service) ListAll(ctx context.Context, actor shared.Actor) ([]Quote, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	return s.repo.ListQuotes(ctx)
}

// Funnel summarises every quote. Admin only.
func (s *Service) Funnel(ctx context.Context, actor shared.Actor) (Funnel, error) {
	list, err := s.ListAll(ctx, actor)
	if err != nil {
		return Funnel{}, err
	}
	return BuildFunnel(list), nil
}

// History lists the status changes of a quote.
func (s *Service) History(ctx context.Context, actor shared.Actor, id uuid.UUID) ([]shared.Transition, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []shared.Transition{}, nil
	}
	return s.history.List(ctx, shared.HistoryQuote, id)
}

func (s *Service) record(ctx context.Context, actor shared.Actor, id uuid.UUID, from, to, note string, at time.Time) {
	if s.history == nil {
		return
	}
	err := s.history.Record(ctx, shared.Transition{
		Module:  shared.HistoryQuote,
		RefID:   id,
		ActorID: actor.UserID,
		From:    from,
		To:      to,
		Note:    note,
		At:      at,
	})
	if err != nil {
		s.logger.Warn("record quote history", slog.String("quote_id", id.String()), slog.Any("error", err))
	}
}
