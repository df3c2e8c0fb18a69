package quotes

import (
	"time"

	"github.com/google/uuid"

	"github.com/quoteflow/quoteflow/internal/pricing"
)

// Status enumerates quote statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusInReview  Status = "IN_REVIEW"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusSubmitted, StatusInReview, StatusAccepted, StatusRejected}

// Quote is a priced selection moving through review. Pricing and the totals
// are the snapshot taken on the last draft edit or at submission; after
// submission they never change.
type Quote struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	ServiceType     pricing.ServiceType `json:"service_type"`
	Selection       pricing.Selection   `json:"selection"`
	Pricing         pricing.Estimate    `json:"pricing"`
	OneTimeTotal    pricing.KES         `json:"one_time_total"`
	MonthlyTotal    pricing.KES         `json:"monthly_total"`
	YearlyTotal     pricing.KES         `json:"yearly_total"`
	CatalogVersion  string              `json:"catalog_version"`
	Status          Status              `json:"status"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	SubmittedAt     *time.Time          `json:"submitted_at,omitempty"`
	ReviewedBy      *uuid.UUID          `json:"reviewed_by,omitempty"`
	DecidedAt       *time.Time          `json:"decided_at,omitempty"`
	ProjectID       *uuid.UUID          `json:"project_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Frozen reports whether the price snapshot is fixed.
func (q Quote) Frozen() bool {
	return q.Status != StatusDraft
}

// Converted reports whether a project was created from the quote.
func (q Quote) Converted() bool {
	return q.ProjectID != nil
}

// HasCarePlan reports whether a website care plan was selected.
func (q Quote) HasCarePlan() bool {
	return q.Selection.Website != nil && q.Selection.Website.HasCarePlan()
}

func (q *Quote) price(sel pricing.Selection, est pricing.Estimate) {
	q.Selection = sel
	q.ServiceType = sel.ServiceType
	q.Pricing = est
	q.OneTimeTotal = est.OneTimeTotal
	q.MonthlyTotal = est.MonthlyTotal
	q.YearlyTotal = est.YearlyTotal
	q.CatalogVersion = est.CatalogVersion
}

// SubmittedEvent is published once a quote is submitted.
type SubmittedEvent struct {
	QuoteID        uuid.UUID           `json:"quote_id"`
	UserID         uuid.UUID           `json:"user_id"`
	ServiceType    pricing.ServiceType `json:"service_type"`
	OneTimeTotal   pricing.KES         `json:"one_time_total"`
	MonthlyTotal   pricing.KES         `json:"monthly_total"`
	YearlyTotal    pricing.KES         `json:"yearly_total"`
	CatalogVersion string              `json:"catalog_version"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

func submittedEvent(q Quote) SubmittedEvent {
	ev := SubmittedEvent{
		QuoteID:        q.ID,
		UserID:         q.UserID,
		ServiceType:    q.ServiceType,
		OneTimeTotal:   q.OneTimeTotal,
		MonthlyTotal:   q.MonthlyTotal,
		YearlyTotal:    q.YearlyTotal,
		CatalogVersion: q.CatalogVersion,
	}
	if q.SubmittedAt != nil {
		ev.SubmittedAt = *q.SubmittedAt
	}
	return ev
}

// RejectRequest carries the reason shown to the client.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ConvertRequest optionally names the new project.
type ConvertRequest struct {
	Name string `json:"name,omitempty" validate:"omitempty,max=200"`
}
