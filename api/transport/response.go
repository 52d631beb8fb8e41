package transport

import (
	"encoding/json"

	"github.com/fastygo/taskplanner/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Code    string              `json:"code,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Count   *int                `json:"count,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

// NewList wraps a collection together with its size.
func NewList(data interface{}, count int) Envelope {
	return Envelope{Success: true, Data: data, Count: &count}
}

// NewMessage returns a success envelope carrying only a message.
func NewMessage(message string) Envelope {
	return Envelope{Success: true, Message: message}
}

// NewError returns an error envelope with optional field errors.
func NewError(code, message string, fields []domain.FieldError) Envelope {
	return Envelope{
		Code:    code,
		Message: message,
		Errors:  fields,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
