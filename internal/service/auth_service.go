package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/metrics"
	"github.com/prn-tf/darius-projects/internal/notify"
	"github.com/prn-tf/darius-projects/internal/pkg/crypto"
	"github.com/prn-tf/darius-projects/internal/repository"
	"github.com/prn-tf/darius-projects/internal/token"
)

// resetTokenTTL bounds how long a password reset token stays usable.
const resetTokenTTL = time.Hour

// AuthService handles registration, login and credential management.
type AuthService struct {
	userRepo repository.UserRepository
	tokens   *token.Service
	hasher   *crypto.PasswordHasher
	notifier notify.Notifier
	cache    repository.Cache
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	defaultRole domain.Role
}

// NewAuthService creates a new AuthService. Metrics may be nil.
func NewAuthService(
	userRepo repository.UserRepository,
	tokens *token.Service,
	hasher *crypto.PasswordHasher,
	notifier notify.Notifier,
	cache repository.Cache,
	m *metrics.Metrics,
	defaultRole domain.Role,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		tokens:      tokens,
		hasher:      hasher,
		notifier:    notifier,
		cache:       cache,
		metrics:     m,
		defaultRole: defaultRole,
		logger:      logger.With().Str("service", "auth").Logger(),
	}
}

// RegisterInput contains the data needed to register a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthOutput is the result of a successful authentication operation.
type AuthOutput struct {
	User        *domain.User
	AccessToken string
}

// Register creates a new user account with the configured default role and
// signs the user in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthOutput, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(input.Email)

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if exists {
		return nil, domain.ErrEmailTaken
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user := domain.NewUser(input.Name, email, passwordHash, s.defaultRole)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	accessToken, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLogin = &now
	}

	// Best-effort: never fail registration over a notification.
	if err := s.notifier.Welcome(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to enqueue welcome email")
	}

	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("user registered")

	return &AuthOutput{User: user, AccessToken: accessToken}, nil
}

// LoginInput contains login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and issues an access token.
// Unknown email, wrong password and inactive account all produce the same
// ErrInvalidCredentials so callers cannot probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthOutput, error) {
	email := domain.NormalizeEmail(input.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.recordLogin("failure")
			s.logger.Debug().Msg("login attempt for unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to look up user for login")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !s.hasher.Compare(user.PasswordHash, input.Password) {
		s.recordLogin("failure")
		s.logger.Debug().Str("user_id", user.ID).Msg("login attempt with wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.recordLogin("failure")
		s.logger.Debug().Str("user_id", user.ID).Msg("login attempt for inactive account")
		return nil, domain.ErrInvalidCredentials
	}

	accessToken, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLogin = &now
	}

	s.recordLogin("success")
	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")

	return &AuthOutput{User: user, AccessToken: accessToken}, nil
}

// RefreshToken issues a fresh token for an authenticated user. The user is
// re-read from the store so role changes and deactivation take effect.
func (s *AuthService) RefreshToken(ctx context.Context, userID string) (*AuthOutput, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load user for refresh")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !user.CanAuthenticate() {
		return nil, domain.ErrInvalidToken
	}

	accessToken, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}

	return &AuthOutput{User: user, AccessToken: accessToken}, nil
}

// ChangePasswordInput contains the data for a password change.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// ChangePassword verifies the current password and replaces it.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", input.UserID).Msg("failed to load user for password change")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !s.hasher.Compare(user.PasswordHash, input.CurrentPassword) {
		return domain.ErrPasswordMismatch
	}

	newHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash new password")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user.PasswordHash = newHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to store new password")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

// ForgotPassword starts a password reset. The response is identical whether
// or not the email belongs to an account, so this never returns a not-found
// error; a reset token is generated and mailed only for active accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		s.logger.Error().Err(err).Msg("failed to look up user for password reset")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !user.IsActive {
		s.logger.Debug().Str("user_id", user.ID).Msg("password reset requested for inactive account")
		return nil
	}

	resetToken := uuid.NewString()
	if err := s.cache.Set(ctx, resetKey(resetToken), []byte(user.ID), resetTokenTTL); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to store reset token")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if err := s.notifier.PasswordReset(ctx, user.Email, user.Name, resetToken); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to enqueue reset email")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password reset initiated")
	return nil
}

// ResetPassword completes a password reset using a token from ForgotPassword.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	userID, err := s.cache.Get(ctx, resetKey(resetToken))
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return domain.ErrInvalidToken
		}
		s.logger.Error().Err(err).Msg("failed to look up reset token")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user, err := s.userRepo.GetByID(ctx, string(userID))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidToken
		}
		s.logger.Error().Err(err).Msg("failed to load user for password reset")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash new password")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user.PasswordHash = newHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to store new password")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	// Single use: drop the token once consumed.
	if err := s.cache.Delete(ctx, resetKey(resetToken)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate reset token")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

// ValidateToken verifies a token and loads its user, for the request guard.
// Tokens of deactivated or deleted users are rejected even before expiry.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*domain.User, *token.Payload, error) {
	payload, err := s.tokens.Verify(tokenStr)
	if err != nil {
		if s.metrics != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				s.metrics.RecordTokenRejected("expired")
			} else {
				s.metrics.RecordTokenRejected("invalid")
			}
		}
		return nil, nil, err
	}

	user, err := s.userRepo.GetByID(ctx, payload.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			if s.metrics != nil {
				s.metrics.RecordTokenRejected("unknown_subject")
			}
			return nil, nil, domain.ErrInvalidToken
		}
		s.logger.Error().Err(err).Str("user_id", payload.SubjectID).Msg("failed to load token subject")
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !user.CanAuthenticate() {
		if s.metrics != nil {
			s.metrics.RecordTokenRejected("inactive_subject")
		}
		return nil, nil, domain.ErrInvalidToken
	}

	return user, payload, nil
}

// Logout acknowledges a logout. Tokens are stateless, so invalidation is
// client-side discard; expiry is the only server-side invalidation.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.logger.Info().Str("user_id", userID).Msg("user logged out")
}

func (s *AuthService) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLoginAttempt(outcome)
	}
}

func resetKey(token string) string {
	return "auth:reset:" + token
}
