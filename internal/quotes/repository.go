package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quoteflow/quoteflow/internal/platform/db"
	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/projects"
	"github.com/quoteflow/quoteflow/internal/shared"
)

// PgRepository provides PostgreSQL backed persistence for quotes.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const quoteColumns = `id, user_id, service_type, selection, pricing, one_time_total, monthly_total,
	yearly_total, catalog_version, status, rejection_reason, submitted_at, reviewed_by, decided_at,
	project_id, created_at, updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var (
		q                        Quote
		id, userID               pgtype.UUID
		reviewedBy, projectID    pgtype.UUID
		serviceType, status      string
		selection, est           []byte
		oneTime, monthly, yearly int64
		reason                   pgtype.Text
		submittedAt, decidedAt   pgtype.Timestamptz
	)
	err := row.Scan(&id, &userID, &serviceType, &selection, &est, &oneTime, &monthly,
		&yearly, &q.CatalogVersion, &status, &reason, &submittedAt, &reviewedBy, &decidedAt,
		&projectID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(selection, &q.Selection); err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}
	if err := json.Unmarshal(est, &q.Pricing); err != nil {
		return nil, fmt.Errorf("decode pricing: %w", err)
	}
	q.ID = uuid.UUID(id.Bytes)
	q.UserID = uuid.UUID(userID.Bytes)
	q.ServiceType = pricing.ServiceType(serviceType)
	q.Status = Status(status)
	q.OneTimeTotal = pricing.KES(oneTime)
	q.MonthlyTotal = pricing.KES(monthly)
	q.YearlyTotal = pricing.KES(yearly)
	q.RejectionReason = reason.String
	q.SubmittedAt = timePtr(submittedAt)
	q.DecidedAt = timePtr(decidedAt)
	q.ReviewedBy = uuidPtr(reviewedBy)
	q.ProjectID = uuidPtr(projectID)
	return &q, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// GetQuote loads a quote by id.
func (r *PgRepository) GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, id)
	return scanQuote(row)
}

// ListQuotesByUser returns a user's quotes, newest first.
func (r *PgRepository) ListQuotesByUser(ctx context.Context, userID uuid.UUID) ([]Quote, error) {
	return r.list(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

// ListQuotes returns every quote, newest first.
func (r *PgRepository) ListQuotes(ctx context.Context) ([]Quote, error) {
	return r.list(ctx, `SELECT `+quoteColumns+` FROM quotes ORDER BY created_at DESC`)
}

func (r *PgRepository) list(ctx context.Context, sql string, args ...any) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// WithTx runs fn inside a repeatable read transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func encodeSnapshot(q Quote) (selection, est []byte, err error) {
	selection, err = json.Marshal(q.Selection)
	if err != nil {
		return nil, nil, fmt.Errorf("encode selection: %w", err)
	}
	est, err = json.Marshal(q.Pricing)
	if err != nil {
		return nil, nil, fmt.Errorf("encode pricing: %w", err)
	}
	return selection, est, nil
}

func (r *txRepo) InsertQuote(ctx context.Context, q Quote) error {
	selection, est, err := encodeSnapshot(q)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO quotes (`+quoteColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		q.ID, q.UserID, string(q.ServiceType), selection, est, int64(q.OneTimeTotal), int64(q.MonthlyTotal),
		int64(q.YearlyTotal), q.CatalogVersion, string(q.Status), nullText(q.RejectionReason), q.SubmittedAt,
		q.ReviewedBy, q.DecidedAt, q.ProjectID, q.CreatedAt, q.UpdatedAt)
	return err
}

func (r *txRepo) UpdateQuote(ctx context.Context, q Quote, from Status) error {
	selection, est, err := encodeSnapshot(q)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE quotes SET service_type=$3, selection=$4, pricing=$5, one_time_total=$6,
	monthly_total=$7, yearly_total=$8, catalog_version=$9, status=$10, rejection_reason=$11,
	submitted_at=$12, reviewed_by=$13, decided_at=$14, updated_at=$15
WHERE id=$1 AND status=$2`,
		q.ID, string(from), string(q.ServiceType), selection, est, int64(q.OneTimeTotal), int64(q.MonthlyTotal),
		int64(q.YearlyTotal), q.CatalogVersion, string(q.Status), nullText(q.RejectionReason),
		q.SubmittedAt, q.ReviewedBy, q.DecidedAt, q.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func (r *txRepo) LinkProject(ctx context.Context, quoteID, projectID uuid.UUID, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE quotes SET project_id=$2, updated_at=$3
WHERE id=$1 AND status='ACCEPTED' AND project_id IS NULL`, quoteID, projectID, at)
	if err != nil {
		if db.IsSerializationFailure(err) {
			return ErrAlreadyConverted
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyConverted
	}
	return nil
}

func (r *txRepo) InsertProject(ctx context.Context, p projects.Project) error {
	if err := projects.InsertProject(ctx, r.tx, p); err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrAlreadyConverted
		}
		return err
	}
	return nil
}
