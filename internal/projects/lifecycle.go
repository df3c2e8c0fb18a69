package projects

import (
	"fmt"
	"time"

	"github.com/quoteflow/quoteflow/internal/shared"
)

var (
	// ErrInvalidTransition is returned for a status change the table forbids.
	ErrInvalidTransition = fmt.Errorf("projects: invalid status transition: %w", shared.ErrInvalidState)
	// ErrProjectClosed is returned when invoicing a cancelled project.
	ErrProjectClosed = fmt.Errorf("projects: project is closed: %w", shared.ErrInvalidState)
)

var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusOnHold:     true,
		StatusCancelled:  true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusOnHold:    true,
		StatusCancelled: true,
	},
	StatusOnHold: {
		StatusInProgress: true,
		StatusCancelled:  true,
	},
}

// CanTransition reports whether from -> to is allowed. COMPLETED and
// CANCELLED are terminal.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Terminal reports whether no further transitions exist.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// apply moves p to the target status and stamps the dates that go with it.
func apply(p Project, to Status, now time.Time) (Project, error) {
	if !CanTransition(p.Status, to) {
		return p, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	day := now.UTC()
	switch to {
	case StatusInProgress:
		if p.StartDate == nil {
			p.StartDate = &day
		}
	case StatusCompleted:
		p.ActualEndDate = &day
		if p.HasCarePlan {
			expiry := day.AddDate(0, CarePlanTermMonths, 0)
			p.CarePlanExpiry = &expiry
		}
	}
	p.Status = to
	p.UpdatedAt = now
	return p, nil
}
