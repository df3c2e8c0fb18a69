package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Modules recorded in status history.
const (
	HistoryQuote   = "quote"
	HistoryProject = "project"
)

// Transition is a single status change of a quote or project.
type Transition struct {
	ID      int64     `json:"id"`
	Module  string    `json:"module"`
	RefID   uuid.UUID `json:"ref_id"`
	ActorID uuid.UUID `json:"actor_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

// HistoryRecorder persists status history.
type HistoryRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHistoryRecorder constructs HistoryRecorder.
func NewHistoryRecorder(pool *pgxpool.Pool, logger *slog.Logger) *HistoryRecorder {
	return &HistoryRecorder{pool: pool, logger: logger}
}

// Record writes a history entry to the database.
func (r *HistoryRecorder) Record(ctx context.Context, t Transition) error {
	if r == nil {
		return errors.New("history recorder not initialised")
	}
	if t.Module == "" {
		return errors.New("history module required")
	}
	if t.RefID == uuid.Nil {
		return errors.New("history ref id required")
	}
	if t.To == "" {
		return errors.New("history target status required")
	}
	var at *time.Time
	if !t.At.IsZero() {
		at = &t.At
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO status_history (module, ref_id, actor_id, from_status, to_status, note, at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`, t.Module, t.RefID, t.ActorID, t.From, t.To, t.Note, at)
	if err != nil {
		r.logger.Error("record status history", slog.String("module", t.Module), slog.Any("error", err))
		return err
	}
	return nil
}

// List returns history for module/ref, oldest first.
func (r *HistoryRecorder) List(ctx context.Context, module string, ref uuid.UUID) ([]Transition, error) {
	if r == nil {
		return nil, errors.New("history recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, from_status, to_status, note, at
FROM status_history WHERE module=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.ID, &t.Module, &t.RefID, &t.ActorID, &t.From, &t.To, &t.Note, &t.At); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
