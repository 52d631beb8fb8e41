package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskplanner/domain"
)

func TestParseDueDateFilter(t *testing.T) {
	from, before, err := ParseDueDateFilter("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), *from)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), *before)

	from, before, err = ParseDueDateFilter("2026-03-01, 2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *from)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *before)

	_, before, err = ParseDueDateFilter("2026-03-01,2026-03-05T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 5, 10, 0, 0, 1, time.UTC), *before)

	from, before, err = ParseDueDateFilter("")
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Nil(t, before)

	_, _, err = ParseDueDateFilter("2026-03-10,2026-03-01")
	assert.Error(t, err)
	_, _, err = ParseDueDateFilter("yesterday")
	assert.Error(t, err)
}

func TestTaskFilterMatches(t *testing.T) {
	due := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	task := &domain.Task{OwnerID: "u1", Status: domain.StatusPending, Priority: domain.PriorityHigh, DueDate: &due}
	from, before, err := ParseDueDateFilter("2026-03-10")
	require.NoError(t, err)

	assert.True(t, TaskFilter{OwnerID: "u1", Status: domain.StatusPending, DueFrom: from, DueBefore: before}.Matches(task))
	assert.False(t, TaskFilter{OwnerID: "u2"}.Matches(task))
	assert.False(t, TaskFilter{OwnerID: "u1", Priority: domain.PriorityLow}.Matches(task))

	undated := &domain.Task{OwnerID: "u1"}
	assert.False(t, TaskFilter{OwnerID: "u1", DueFrom: from}.Matches(undated))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, MaxLimit, ClampLimit(1000))
}
