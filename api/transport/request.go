package transport

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

// TaskRequest is the body of task create and update calls. Complexity and the
// due date stay raw so a bad value is reported per field and an explicit null
// can clear the due date on update.
type TaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	Complexity  json.RawMessage `json:"complexity"`
	DueDate     json.RawMessage `json:"due_date"`
	Tags        *[]string       `json:"tags"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type DependencyRequest struct {
	DependencyID string `json:"dependency_id"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
}

type ProfileUpdateRequest struct {
	Name     *string           `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

const maxProfileName = 100

func (r ProfileUpdateRequest) Validate() error {
	if r.Name == nil && r.Metadata == nil {
		return domain.ValidationError([]domain.FieldError{{Field: "name", Message: "Nothing to update"}})
	}
	if r.Name != nil && len([]rune(strings.TrimSpace(*r.Name))) > maxProfileName {
		return domain.ValidationError([]domain.FieldError{{Field: "name", Message: "Name cannot be more than 100 characters"}})
	}
	return nil
}

// ProfileView is the public shape of a user record.
type ProfileView struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Role     string            `json:"role"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewProfileView(u *domain.User) ProfileView {
	return ProfileView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Metadata: u.Metadata}
}

// DecodeTaskRequest unmarshals body. A malformed body yields domain.ErrInvalidPayload.
func DecodeTaskRequest(body []byte) (TaskRequest, error) {
	var req TaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, domain.ErrInvalidPayload
	}
	return req, nil
}

// ToInput converts a create request. The due date must lie after now.
func (r TaskRequest) ToInput(now time.Time) (domain.TaskInput, error) {
	var fields []domain.FieldError
	in := domain.TaskInput{
		Title:       deref(r.Title),
		Description: deref(r.Description),
		Status:      domain.Status(deref(r.Status)),
		Priority:    domain.Priority(deref(r.Priority)),
	}
	if r.Tags != nil {
		in.Tags = *r.Tags
	}

	c, err := parseComplexity(r.Complexity)
	if err != nil {
		fields = append(fields, domain.FieldError{Field: "complexity", Message: err.Error()})
	}
	in.Complexity = c

	due, _, err := parseDue(r.DueDate)
	if err != nil {
		fields = append(fields, domain.FieldError{Field: "due_date", Message: err.Error()})
	}
	in.DueDate = due

	if err := in.Validate(now); err != nil {
		fields = append(fields, fieldsOf(err)...)
	}
	if len(fields) > 0 {
		return domain.TaskInput{}, domain.ValidationError(fields)
	}
	return in, nil
}

// ToPatch converts an update request. Absent fields are left untouched and
// "due_date": null clears the due date.
func (r TaskRequest) ToPatch() (domain.TaskPatch, error) {
	var fields []domain.FieldError
	patch := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
	}
	if r.Status != nil {
		s := domain.Status(*r.Status)
		patch.Status = &s
	}
	if r.Priority != nil {
		p := domain.Priority(*r.Priority)
		patch.Priority = &p
	}
	if len(r.Complexity) > 0 {
		c, err := parseComplexity(r.Complexity)
		if err != nil {
			fields = append(fields, domain.FieldError{Field: "complexity", Message: err.Error()})
		} else if c != 0 {
			patch.Complexity = &c
		}
	}
	due, clearDue, err := parseDue(r.DueDate)
	if err != nil {
		fields = append(fields, domain.FieldError{Field: "due_date", Message: err.Error()})
	}
	patch.DueDate, patch.ClearDue = due, clearDue

	if err := patch.Validate(); err != nil {
		fields = append(fields, fieldsOf(err)...)
	}
	if len(fields) > 0 {
		return domain.TaskPatch{}, domain.ValidationError(fields)
	}
	return patch, nil
}

// Validate requires a dependency id.
func (r DependencyRequest) Validate() error {
	if strings.TrimSpace(r.DependencyID) == "" {
		return domain.ValidationError([]domain.FieldError{{Field: "dependency_id", Message: "Dependency ID is required"}})
	}
	return nil
}

// Query is the read-only view of URL query arguments the parsers need.
type Query interface {
	Peek(key string) []byte
}

// ParseTaskFilter reads status, priority, due_date, limit and offset.
func ParseTaskFilter(ownerID string, q Query) (repository.TaskFilter, error) {
	var fields []domain.FieldError
	filter := repository.TaskFilter{
		OwnerID:  ownerID,
		Status:   domain.Status(q.Peek("status")),
		Priority: domain.Priority(q.Peek("priority")),
		Limit:    repository.ClampLimit(parseInt(q.Peek("limit"), repository.DefaultLimit)),
		Offset:   parseInt(q.Peek("offset"), 0),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		fields = append(fields, domain.FieldError{Field: "status", Message: "Invalid status value"})
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		fields = append(fields, domain.FieldError{Field: "priority", Message: "Priority must be low, medium, or high"})
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	due := q.Peek("due_date")
	if len(due) == 0 {
		due = q.Peek("dueDate")
	}
	from, before, err := repository.ParseDueDateFilter(string(due))
	if err != nil {
		fields = append(fields, domain.FieldError{Field: "due_date", Message: err.Error()})
	}
	filter.DueFrom, filter.DueBefore = from, before
	if len(fields) > 0 {
		return repository.TaskFilter{}, domain.ValidationError(fields)
	}
	return filter, nil
}

// CalendarQuery selects the calendar year, an optional single month and the sort mode.
type CalendarQuery struct {
	Year  int
	Month time.Month
	Sort  domain.SortMode
}

func ParseCalendarQuery(q Query) (CalendarQuery, error) {
	var fields []domain.FieldError
	out := CalendarQuery{Sort: domain.SortByDate}
	if v := q.Peek("year"); len(v) > 0 {
		y, err := strconv.Atoi(string(v))
		if err != nil || y < 1 || y > 9999 {
			fields = append(fields, domain.FieldError{Field: "year", Message: "Year must be a number"})
		}
		out.Year = y
	}
	if v := q.Peek("month"); len(v) > 0 {
		m, err := strconv.Atoi(string(v))
		if err != nil || m < 1 || m > 12 {
			fields = append(fields, domain.FieldError{Field: "month", Message: "Month must be between 1 and 12"})
		}
		out.Month = time.Month(m)
	}
	switch mode := domain.SortMode(q.Peek("sort")); mode {
	case "":
	case domain.SortByDate, domain.SortByPriority, domain.SortByComplexity:
		out.Sort = mode
	default:
		fields = append(fields, domain.FieldError{Field: "sort", Message: "Sort must be date, priority, or complexity"})
	}
	if len(fields) > 0 {
		return CalendarQuery{}, domain.ValidationError(fields)
	}
	return out, nil
}

// ParseDueDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates (UTC midnight).
func ParseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, domain.NewError(domain.ErrCodeInvalid, "Due date must be a valid date")
	}
	return t, nil
}

func parseDue(raw json.RawMessage) (due *time.Time, clearDue bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, domain.NewError(domain.ErrCodeInvalid, "Due date must be a valid date")
	}
	if strings.TrimSpace(s) == "" {
		return nil, true, nil
	}
	t, err := ParseDueDate(s)
	if err != nil {
		return nil, false, err
	}
	return &t, false, nil
}

func parseComplexity(raw json.RawMessage) (domain.Complexity, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return 0, nil
	}
	var c domain.Complexity
	if err := c.UnmarshalJSON(raw); err != nil {
		return 0, domain.NewError(domain.ErrCodeInvalid, "Complexity must be simple, moderate, complex or a score between 1 and 8")
	}
	return c, nil
}

func fieldsOf(err error) []domain.FieldError {
	if dErr, ok := err.(*domain.Error); ok && len(dErr.Fields) > 0 {
		return dErr.Fields
	}
	return []domain.FieldError{{Field: "body", Message: err.Error()}}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseInt(value []byte, fallback int) int {
	if v, err := strconv.Atoi(string(value)); err == nil {
		return v
	}
	return fallback
}
