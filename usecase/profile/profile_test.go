package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository/memory"
)

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	require.NoError(t, users.Create(ctx, &domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}))
	uc := New(users, nil)

	name := "  Ada Lovelace "
	updated, err := uc.UpdateProfile(ctx, "u1", Update{Name: &name, Metadata: map[string]string{"tz": "UTC"}})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)

	stored, err := uc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", stored.Name)
	assert.Equal(t, "UTC", stored.Metadata["tz"])
	assert.Equal(t, "hash", stored.PasswordHash)

	empty := " "
	_, err = uc.UpdateProfile(ctx, "u1", Update{Name: &empty})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = uc.UpdateProfile(ctx, "missing", Update{})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
