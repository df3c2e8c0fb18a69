package quotes

import (
	"fmt"
	"time"

	"github.com/quoteflow/quoteflow/internal/shared"
)

var (
	// ErrInvalidTransition is returned for a status change the table forbids.
	ErrInvalidTransition = fmt.Errorf("quotes: invalid status transition: %w", shared.ErrInvalidState)
	// ErrNotOwner is returned when someone other than the owner acts on a quote.
	ErrNotOwner = fmt.Errorf("quotes: not owner: %w", shared.ErrForbidden)
	// ErrAdminOnly is returned when a client attempts a review step.
	ErrAdminOnly = fmt.Errorf("quotes: admin only: %w", shared.ErrForbidden)
	// ErrQuoteFrozen is returned when editing a quote that left DRAFT.
	ErrQuoteFrozen = fmt.Errorf("quotes: quote is frozen: %w", shared.ErrInvalidState)
	// ErrNotConvertible is returned when converting a quote that is not ACCEPTED.
	ErrNotConvertible = fmt.Errorf("quotes: only accepted quotes convert: %w", shared.ErrInvalidState)
	// ErrAlreadyConverted is returned when the quote already has a project.
	ErrAlreadyConverted = fmt.Errorf("quotes: already converted: %w", shared.ErrConflict)
	// ErrConversionInProgress is returned while another conversion holds the lock.
	ErrConversionInProgress = fmt.Errorf("quotes: conversion in progress: %w", shared.ErrConflict)
)

type actorRole int

const (
	byOwner actorRole = iota + 1
	byAdmin
)

var transitions = map[Status]map[Status]actorRole{
	StatusDraft:     {StatusSubmitted: byOwner},
	StatusSubmitted: {StatusInReview: byAdmin},
	StatusInReview: {
		StatusAccepted: byAdmin,
		StatusRejected: byAdmin,
	},
}

// CanTransition reports whether from -> to exists in the lifecycle.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// Terminal reports whether the status has no outgoing transitions. ACCEPTED
// is terminal here but may still convert once.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func authorize(actor shared.Actor, q Quote, to Status) error {
	role, ok := transitions[q.Status][to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, to)
	}
	switch role {
	case byOwner:
		if !actor.Owns(q.UserID) {
			return ErrNotOwner
		}
	case byAdmin:
		if !actor.IsAdmin() {
			return ErrAdminOnly
		}
	}
	return nil
}

// apply moves q to the target status after checking the actor may do so.
func apply(actor shared.Actor, q Quote, to Status, now time.Time) (Quote, error) {
	if err := authorize(actor, q, to); err != nil {
		return q, err
	}
	switch to {
	case StatusSubmitted:
		q.SubmittedAt = &now
	case StatusInReview:
		reviewer := actor.UserID
		q.ReviewedBy = &reviewer
	case StatusAccepted, StatusRejected:
		decider := actor.UserID
		q.ReviewedBy = &decider
		q.DecidedAt = &now
	}
	q.Status = to
	q.UpdatedAt = now
	return q, nil
}
