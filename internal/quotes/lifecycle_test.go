package quotes

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteflow/quoteflow/internal/shared"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusSubmitted))
	assert.True(t, CanTransition(StatusSubmitted, StatusInReview))
	assert.True(t, CanTransition(StatusInReview, StatusAccepted))
	assert.True(t, CanTransition(StatusInReview, StatusRejected))

	assert.False(t, CanTransition(StatusDraft, StatusAccepted))
	assert.False(t, CanTransition(StatusSubmitted, StatusAccepted))
	assert.False(t, CanTransition(StatusRejected, StatusInReview))
	assert.False(t, CanTransition(StatusAccepted, StatusDraft))

	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusAccepted.Terminal())
	assert.False(t, StatusDraft.Terminal())
}

func TestApplyStampsReviewFields(t *testing.T) {
	owner := shared.Actor{UserID: uuid.New(), Role: shared.RoleClient}
	admin := shared.Actor{UserID: uuid.New(), Role: shared.RoleAdmin}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	q := Quote{ID: uuid.New(), UserID: owner.UserID, Status: StatusDraft}

	q, err := apply(owner, q, StatusSubmitted, now)
	require.NoError(t, err)
	require.NotNil(t, q.SubmittedAt)
	assert.True(t, q.Frozen())

	q, err = apply(admin, q, StatusInReview, now)
	require.NoError(t, err)
	require.NotNil(t, q.ReviewedBy)
	assert.Nil(t, q.DecidedAt)

	q, err = apply(admin, q, StatusAccepted, now)
	require.NoError(t, err)
	require.NotNil(t, q.DecidedAt)
	assert.Equal(t, now, q.UpdatedAt)
	assert.False(t, q.Converted())
}
