package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Validate checks the fields of a new task. now is used for the future due-date rule;
// pass the zero time to skip it.
func (in TaskInput) Validate(now time.Time) error {
	var fields []FieldError
	fields = appendTitleErrors(fields, in.Title)
	fields = appendCommonErrors(fields, &in.Description, &in.Status, &in.Priority, &in.Complexity, in.Tags)
	if in.DueDate != nil && !now.IsZero() && !in.DueDate.After(now) {
		fields = append(fields, FieldError{Field: "due_date", Message: "Due date must be in the future"})
	}
	if len(fields) > 0 {
		return ValidationError(fields)
	}
	return nil
}

func (p TaskPatch) Validate() error {
	var fields []FieldError
	if p.Title != nil {
		fields = appendTitleErrors(fields, *p.Title)
	}
	var tags []string
	if p.Tags != nil {
		tags = *p.Tags
	}
	fields = appendCommonErrors(fields, p.Description, p.Status, p.Priority, p.Complexity, tags)
	if len(fields) > 0 {
		return ValidationError(fields)
	}
	return nil
}

func appendTitleErrors(fields []FieldError, title string) []FieldError {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	switch {
	case n == 0:
		return append(fields, FieldError{Field: "title", Message: "Title is required"})
	case n < TitleMinLength || n > TitleMaxLength:
		return append(fields, FieldError{
			Field:   "title",
			Message: fmt.Sprintf("Title must be between %d and %d characters", TitleMinLength, TitleMaxLength),
		})
	}
	return fields
}

func appendCommonErrors(fields []FieldError, description *string, status *Status, priority *Priority, complexity *Complexity, tags []string) []FieldError {
	if description != nil && utf8.RuneCountInString(strings.TrimSpace(*description)) > DescriptionMaxLength {
		fields = append(fields, FieldError{
			Field:   "description",
			Message: fmt.Sprintf("Description cannot exceed %d characters", DescriptionMaxLength),
		})
	}
	if status != nil && *status != "" && !status.IsValid() {
		fields = append(fields, FieldError{Field: "status", Message: "Invalid status value"})
	}
	if priority != nil && *priority != "" && !priority.IsValid() {
		fields = append(fields, FieldError{Field: "priority", Message: "Priority must be low, medium, or high"})
	}
	if complexity != nil && *complexity != 0 && !complexity.IsValid() {
		fields = append(fields, FieldError{
			Field:   "complexity",
			Message: fmt.Sprintf("Complexity must be between %d and %d", MinComplexity, MaxComplexity),
		})
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			fields = append(fields, FieldError{Field: "tags", Message: "Tags cannot be empty"})
			break
		}
	}
	return fields
}
