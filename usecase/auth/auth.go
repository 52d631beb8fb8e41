package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/pkg/logger"
	"github.com/fastygo/taskplanner/repository"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores anything longer
)

// Config holds the token settings.
type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

// Claims is the JWT payload. ID carries the session id.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Token is what register, login and refresh hand back to the client.
type Token struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	SessionID   string       `json:"session_id"`
	User        *domain.User `json:"user,omitempty"`
}

// ClientInfo is recorded on the session for auditing.
type ClientInfo struct {
	UserAgent  string
	RemoteAddr string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(users repository.UserRepository, sessions repository.SessionRepository, cfg Config, log *zap.Logger) *UseCase {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Register creates an account and signs the new user in.
func (uc *UseCase) Register(ctx context.Context, in RegisterInput, client ClientInfo) (*Token, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.cfg.HashCost)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to hash password", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.WithRequestID(ctx, uc.logger).Info("user registered", zap.String("user_id", user.ID))
	return uc.issue(ctx, user, client)
}

// Login verifies the credentials. Unknown emails and wrong passwords fail the same way.
func (uc *UseCase) Login(ctx context.Context, email, password string, client ClientInfo) (*Token, error) {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.NewError(domain.ErrCodeForbidden, "account is disabled")
	}
	return uc.issue(ctx, user, client)
}

// Refresh extends a live session and signs a fresh token for it.
func (uc *UseCase) Refresh(ctx context.Context, sessionID string) (*Token, error) {
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, int(uc.cfg.TokenTTL.Seconds())); err != nil {
		return nil, err
	}
	session.ExpiresAt = uc.now().Add(uc.cfg.TokenTTL)
	return uc.sign(session, user)
}

func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Authenticate validates the signature and expiry of token and that its
// session has not been revoked.
func (uc *UseCase) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return []byte(uc.cfg.Secret), nil
	})
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid token", err)
	}
	if claims.ID != "" {
		if _, err := uc.GetSession(ctx, claims.ID); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, domain.NewError(domain.ErrCodeUnauthorized, "session expired or revoked")
			}
			return nil, err
		}
	}
	return claims, nil
}

func (uc *UseCase) issue(ctx context.Context, user *domain.User, client ClientInfo) (*Token, error) {
	now := uc.now()
	session := &domain.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		UserAgent:  client.UserAgent,
		RemoteAddr: client.RemoteAddr,
		CreatedAt:  now,
		ExpiresAt:  now.Add(uc.cfg.TokenTTL),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return uc.sign(session, user)
}

func (uc *UseCase) sign(session *domain.Session, user *domain.User) (*Token, error) {
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   user.ID,
			Issuer:    uc.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(uc.now()),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uc.cfg.Secret))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to sign token", err)
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   session.ExpiresAt,
		SessionID:   session.ID,
		User:        user,
	}, nil
}

func validateRegistration(in RegisterInput) error {
	var fields []domain.FieldError
	if in.Name == "" {
		fields = append(fields, domain.FieldError{Field: "name", Message: "Name is required"})
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		fields = append(fields, domain.FieldError{Field: "email", Message: "Please include a valid email"})
	}
	if n := len(in.Password); n < MinPasswordLength || n > MaxPasswordLength {
		fields = append(fields, domain.FieldError{Field: "password", Message: "Password must be between 6 and 72 characters"})
	}
	if len(fields) > 0 {
		return domain.ValidationError(fields)
	}
	return nil
}
