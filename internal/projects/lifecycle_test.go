package projects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusOnHold},
		{StatusPending, StatusCancelled},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusOnHold},
		{StatusInProgress, StatusCancelled},
		{StatusOnHold, StatusInProgress},
		{StatusOnHold, StatusCancelled},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	denied := [][2]Status{
		{StatusPending, StatusCompleted},
		{StatusOnHold, StatusCompleted},
		{StatusCompleted, StatusInProgress},
		{StatusCancelled, StatusPending},
		{StatusPending, StatusPending},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusOnHold.Terminal())
}

func TestApplyStampsDates(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	p := Project{Status: StatusPending, HasCarePlan: true}

	p, err := apply(p, StatusInProgress, start)
	require.NoError(t, err)
	require.NotNil(t, p.StartDate)
	assert.Equal(t, start, *p.StartDate)

	p, err = apply(p, StatusOnHold, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	p, err = apply(p, StatusInProgress, start.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, start, *p.StartDate, "resume keeps the original start date")

	end := start.AddDate(0, 3, 0)
	p, err = apply(p, StatusCompleted, end)
	require.NoError(t, err)
	require.NotNil(t, p.ActualEndDate)
	require.NotNil(t, p.CarePlanExpiry)
	assert.Equal(t, end.AddDate(0, 12, 0), *p.CarePlanExpiry)

	_, err = apply(p, StatusInProgress, end)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyWithoutCarePlan(t *testing.T) {
	now := time.Now()
	p := Project{Status: StatusInProgress}

	p, err := apply(p, StatusCompleted, now)
	require.NoError(t, err)
	assert.Nil(t, p.CarePlanExpiry)
	assert.NotNil(t, p.ActualEndDate)
}
