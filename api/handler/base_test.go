package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/taskplanner/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrTaskNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrCircularDependency), http.StatusConflict},
		{domain.ErrDuplicateDependency, http.StatusConflict},
		{domain.ValidationError(nil), http.StatusBadRequest},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.NewError(domain.ErrCodeForbidden, "no"), http.StatusForbidden},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := mapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
