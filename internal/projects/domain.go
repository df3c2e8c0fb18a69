package projects

import (
	"time"

	"github.com/google/uuid"

	"github.com/quoteflow/quoteflow/internal/pricing"
)

// Status enumerates project statuses.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusOnHold     Status = "ON_HOLD"
	StatusCancelled  Status = "CANCELLED"
)

// CarePlanTermMonths is how long a care plan runs after completion.
const CarePlanTermMonths = 12

// Project is the delivery record created from an accepted quote.
type Project struct {
	ID             uuid.UUID   `json:"id"`
	QuoteID        uuid.UUID   `json:"quote_id"`
	UserID         uuid.UUID   `json:"user_id"`
	Name           string      `json:"name"`
	Status         Status      `json:"status"`
	ContractValue  pricing.KES `json:"contract_value"`
	StartDate      *time.Time  `json:"start_date,omitempty"`
	ActualEndDate  *time.Time  `json:"actual_end_date,omitempty"`
	HasCarePlan    bool        `json:"has_care_plan"`
	CarePlanExpiry *time.Time  `json:"care_plan_expiry,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Invoice is a bill raised against a project. Only IsPaid changes after creation.
type Invoice struct {
	ID            uuid.UUID   `json:"id"`
	ProjectID     uuid.UUID   `json:"project_id"`
	InvoiceNumber string      `json:"invoice_number"`
	Amount        pricing.KES `json:"amount"`
	DueDate       time.Time   `json:"due_date"`
	IsPaid        bool        `json:"is_paid"`
	PaidAt        *time.Time  `json:"paid_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Overdue reports whether the invoice is unpaid past its due date.
func (i Invoice) Overdue(now time.Time) bool {
	return !i.IsPaid && i.DueDate.Before(now)
}

// ConversionInput carries the frozen quote values a project starts from.
type ConversionInput struct {
	QuoteID       uuid.UUID
	UserID        uuid.UUID
	Name          string
	ContractValue pricing.KES
	HasCarePlan   bool
	At            time.Time
}

// NewFromQuote builds a PENDING project. ContractValue never changes afterwards.
func NewFromQuote(in ConversionInput) Project {
	return Project{
		ID:            uuid.New(),
		QuoteID:       in.QuoteID,
		UserID:        in.UserID,
		Name:          in.Name,
		Status:        StatusPending,
		ContractValue: in.ContractValue,
		HasCarePlan:   in.HasCarePlan,
		CreatedAt:     in.At,
		UpdatedAt:     in.At,
	}
}

// TransitionRequest is the body of a status change.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required,oneof=PENDING IN_PROGRESS COMPLETED ON_HOLD CANCELLED"`
	Note   string `json:"note,omitempty" validate:"max=500"`
}

// CreateInvoiceRequest is the body of a new invoice.
type CreateInvoiceRequest struct {
	InvoiceNumber string      `json:"invoice_number,omitempty" validate:"omitempty,max=50"`
	Amount        pricing.KES `json:"amount" validate:"gt=0"`
	DueDate       time.Time   `json:"due_date" validate:"required"`
}

// SetPaidRequest toggles invoice payment.
type SetPaidRequest struct {
	Paid bool `json:"paid"`
}
