package transport

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskplanner/domain"
)

type query map[string]string

func (q query) Peek(key string) []byte {
	if v, ok := q[key]; ok {
		return []byte(v)
	}
	return nil
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var dErr *domain.Error
	require.ErrorAs(t, err, &dErr)
	names := make([]string, 0, len(dErr.Fields))
	for _, f := range dErr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestToInput(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	req, err := DecodeTaskRequest([]byte(`{"title":"Design schema","complexity":"complex","due_date":"2025-04-01","tags":["db"]}`))
	require.NoError(t, err)
	in, err := req.ToInput(now)
	require.NoError(t, err)
	assert.Equal(t, "Design schema", in.Title)
	assert.Equal(t, domain.Complexity(6), in.Complexity)
	require.NotNil(t, in.DueDate)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *in.DueDate)
	assert.Equal(t, []string{"db"}, in.Tags)

	req, err = DecodeTaskRequest([]byte(`{"title":"ab","status":"done","complexity":12,"due_date":"2025-02-01"}`))
	require.NoError(t, err)
	_, err = req.ToInput(now)
	assert.ElementsMatch(t, []string{"title", "status", "complexity", "due_date"}, fieldNames(t, err))

	req, err = DecodeTaskRequest([]byte(`{"title":"Valid title","due_date":"next week"}`))
	require.NoError(t, err)
	_, err = req.ToInput(now)
	assert.Equal(t, []string{"due_date"}, fieldNames(t, err))

	_, err = DecodeTaskRequest([]byte(`{`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestToPatch(t *testing.T) {
	req, err := DecodeTaskRequest([]byte(`{"status":"completed","due_date":null}`))
	require.NoError(t, err)
	patch, err := req.ToPatch()
	require.NoError(t, err)
	require.NotNil(t, patch.Status)
	assert.Equal(t, domain.StatusCompleted, *patch.Status)
	assert.True(t, patch.ClearDue)
	assert.Nil(t, patch.Title)

	req, err = DecodeTaskRequest([]byte(`{"due_date":"2020-01-01T10:00:00Z","complexity":{"score":7}}`))
	require.NoError(t, err)
	patch, err = req.ToPatch()
	require.NoError(t, err)
	assert.False(t, patch.ClearDue)
	require.NotNil(t, patch.DueDate)
	require.NotNil(t, patch.Complexity)
	assert.Equal(t, domain.Complexity(7), *patch.Complexity)

	req, err = DecodeTaskRequest([]byte(`{"priority":"urgent"}`))
	require.NoError(t, err)
	_, err = req.ToPatch()
	assert.Equal(t, []string{"priority"}, fieldNames(t, err))
}

func TestDependencyRequestValidate(t *testing.T) {
	assert.Error(t, DependencyRequest{}.Validate())
	assert.Error(t, DependencyRequest{DependencyID: "  "}.Validate())
	assert.NoError(t, DependencyRequest{DependencyID: "abc"}.Validate())
}

func TestParseTaskFilter(t *testing.T) {
	filter, err := ParseTaskFilter("u1", query{"status": "pending", "limit": "500", "offset": "-3", "due_date": "2025-03-10"})
	require.NoError(t, err)
	assert.Equal(t, "u1", filter.OwnerID)
	assert.Equal(t, domain.StatusPending, filter.Status)
	assert.Equal(t, 100, filter.Limit)
	assert.Equal(t, 0, filter.Offset)
	require.NotNil(t, filter.DueFrom)
	require.NotNil(t, filter.DueBefore)
	assert.Equal(t, 24*time.Hour, filter.DueBefore.Sub(*filter.DueFrom))

	filter, err = ParseTaskFilter("u1", query{})
	require.NoError(t, err)
	assert.Equal(t, 50, filter.Limit)
	assert.Nil(t, filter.DueFrom)

	_, err = ParseTaskFilter("u1", query{"status": "nope", "priority": "x", "due_date": "bad"})
	assert.ElementsMatch(t, []string{"status", "priority", "due_date"}, fieldNames(t, err))
}

func TestParseCalendarQuery(t *testing.T) {
	q, err := ParseCalendarQuery(query{"year": "2025", "month": "3", "sort": "priority"})
	require.NoError(t, err)
	assert.Equal(t, CalendarQuery{Year: 2025, Month: time.March, Sort: domain.SortByPriority}, q)

	q, err = ParseCalendarQuery(query{})
	require.NoError(t, err)
	assert.Equal(t, domain.SortByDate, q.Sort)
	assert.Zero(t, q.Year)

	_, err = ParseCalendarQuery(query{"month": "13", "sort": "alpha"})
	assert.ElementsMatch(t, []string{"month", "sort"}, fieldNames(t, err))
}

func TestProfileUpdateRequestValidate(t *testing.T) {
	name := "Grace"
	long := strings.Repeat("n", 101)
	assert.NoError(t, ProfileUpdateRequest{Name: &name}.Validate())
	assert.NoError(t, ProfileUpdateRequest{Metadata: map[string]string{"tz": "UTC"}}.Validate())
	assert.True(t, domain.IsDomainError(ProfileUpdateRequest{}.Validate(), domain.ErrCodeInvalid))
	assert.True(t, domain.IsDomainError(ProfileUpdateRequest{Name: &long}.Validate(), domain.ErrCodeInvalid))
}
