package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quoteflow/quoteflow/internal/platform/db"
	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/shared"
)

// ErrDuplicateInvoiceNumber indicates the invoice number is taken.
var ErrDuplicateInvoiceNumber = fmt.Errorf("projects: duplicate invoice number: %w", shared.ErrConflict)

// Execer is satisfied by pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRepository provides PostgreSQL backed persistence for projects.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const projectColumns = `id, quote_id, user_id, name, status, contract_value, start_date,
	actual_end_date, has_care_plan, care_plan_expiry, created_at, updated_at`

const invoiceColumns = `id, project_id, invoice_number, amount, due_date, is_paid, paid_at, created_at, updated_at`

// InsertProject writes a new project using db, which may be a transaction.
func InsertProject(ctx context.Context, db Execer, p Project) error {
	_, err := db.Exec(ctx, `INSERT INTO projects (`+projectColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.QuoteID, p.UserID, p.Name, string(p.Status), int64(p.ContractValue),
		p.StartDate, p.ActualEndDate, p.HasCarePlan, p.CarePlanExpiry, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanProject(row pgx.Row) (*Project, error) {
	var (
		p                   Project
		id, quoteID, userID pgtype.UUID
		status              string
		contract            int64
		start, end, expiry  pgtype.Timestamptz
	)
	err := row.Scan(&id, &quoteID, &userID, &p.Name, &status, &contract, &start,
		&end, &p.HasCarePlan, &expiry, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.ID = uuid.UUID(id.Bytes)
	p.QuoteID = uuid.UUID(quoteID.Bytes)
	p.UserID = uuid.UUID(userID.Bytes)
	p.Status = Status(status)
	p.ContractValue = pricing.KES(contract)
	p.StartDate = timePtr(start)
	p.ActualEndDate = timePtr(end)
	p.CarePlanExpiry = timePtr(expiry)
	return &p, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv           Invoice
		id, projectID pgtype.UUID
		amount        int64
		paidAt        pgtype.Timestamptz
	)
	err := row.Scan(&id, &projectID, &inv.InvoiceNumber, &amount, &inv.DueDate, &inv.IsPaid, &paidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	inv.ID = uuid.UUID(id.Bytes)
	inv.ProjectID = uuid.UUID(projectID.Bytes)
	inv.Amount = pricing.KES(amount)
	inv.PaidAt = timePtr(paidAt)
	return &inv, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// GetProject loads a project by id.
func (r *PgRepository) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	return scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id))
}

// ListProjectsByUser returns a user's projects, newest first.
func (r *PgRepository) ListProjectsByUser(ctx context.Context, userID uuid.UUID) ([]Project, error) {
	return r.listProjects(ctx, `SELECT `+projectColumns+` FROM projects WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

// ListProjects returns every project, newest first.
func (r *PgRepository) ListProjects(ctx context.Context) ([]Project, error) {
	return r.listProjects(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
}

func (r *PgRepository) listProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetInvoice loads an invoice by id.
func (r *PgRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
}

// ListInvoices returns a project's invoices ordered by due date.
func (r *PgRepository) ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE project_id=$1 ORDER BY due_date ASC, invoice_number ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// NextInvoiceSeq bumps the project's invoice counter outside any transaction
// so concurrent callers always receive distinct values. Numbers lost to a
// failed insert are not reused.
func (r *PgRepository) NextInvoiceSeq(ctx context.Context, projectID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `UPDATE projects SET invoice_seq = invoice_seq + 1 WHERE id=$1 RETURNING invoice_seq`, projectID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

// WithTx wraps callback in repeatable-read transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) UpdateProjectStatus(ctx context.Context, p Project, from Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE projects
SET status=$2, start_date=$3, actual_end_date=$4, care_plan_expiry=$5, updated_at=$6
WHERE id=$1 AND status=$7`,
		p.ID, string(p.Status), p.StartDate, p.ActualEndDate, p.CarePlanExpiry, p.UpdatedAt, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.ProjectID, inv.InvoiceNumber, int64(inv.Amount), inv.DueDate, inv.IsPaid, inv.PaidAt, inv.CreatedAt, inv.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return ErrDuplicateInvoiceNumber
	}
	return err
}

func (t *txRepo) SetInvoicePaid(ctx context.Context, id uuid.UUID, paid bool, paidAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET is_paid=$2, paid_at=$3, updated_at=NOW() WHERE id=$1`, id, paid, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
