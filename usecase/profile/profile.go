package profile

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/pkg/logger"
	"github.com/fastygo/taskplanner/repository"
)

// Update is a partial profile change; nil fields are kept.
type Update struct {
	Name     *string
	Metadata map[string]string
}

type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, log *zap.Logger) *UseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: log,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

// UpdateProfile applies the change to the caller's own record. Email, role and
// password are not editable here.
func (uc *UseCase) UpdateProfile(ctx context.Context, userID string, upd Update) (*domain.User, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, domain.ValidationError([]domain.FieldError{{Field: "name", Message: "Name cannot be empty"}})
		}
		user.Name = name
	}
	if upd.Metadata != nil {
		user.Metadata = upd.Metadata
	}
	user.PasswordHash = ""
	if err := uc.users.Upsert(ctx, user); err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("profile update failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return user, nil
}
