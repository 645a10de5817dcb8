package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/usergate/usergate/internal/shared"
	"github.com/usergate/usergate/internal/users"
)

// Accounts is the slice of the users service that login needs.
type Accounts interface {
	FindForLogin(ctx context.Context, email string) (users.User, error)
	RecordLogin(ctx context.Context, user users.User) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	accounts Accounts
	hasher   *Hasher
	tokens   *Tokens
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(accounts Accounts, hasher *Hasher, tokens *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accounts, hasher: hasher, tokens: tokens, logger: logger}
}

// Login validates email/password credentials of an active user, stamps the
// login time and issues an access token. Every credential failure returns
// shared.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (users.User, string, error) {
	user, err := s.accounts.FindForLogin(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return users.User{}, "", err
		}
		return users.User{}, "", shared.ErrInvalidCredentials
	}
	if !user.IsActive || user.IsDeleted || !s.hasher.Verify(user.PasswordHash, password) {
		return users.User{}, "", shared.ErrInvalidCredentials
	}
	user, err = s.accounts.RecordLogin(ctx, user)
	if err != nil {
		return users.User{}, "", err
	}
	token, err := s.tokens.Issue(user.UUID, user.Email, user.Role)
	if err != nil {
		return users.User{}, "", err
	}
	s.logger.InfoContext(ctx, "user logged in", slog.String("user", user.UUID))
	return user, token, nil
}
