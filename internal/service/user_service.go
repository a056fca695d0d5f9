package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/lock"
	"github.com/prn-tf/darius-projects/internal/media"
	"github.com/prn-tf/darius-projects/internal/pkg/crypto"
	"github.com/prn-tf/darius-projects/internal/repository"
)

// UserService handles user management operations.
type UserService struct {
	userRepo    repository.UserRepository
	projectRepo repository.ProjectRepository
	txManager   repository.TxManager
	locker      lock.Locker
	hasher      *crypto.PasswordHasher
	media       media.Storage
	logger      zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	projectRepo repository.ProjectRepository,
	txManager repository.TxManager,
	locker lock.Locker,
	hasher *crypto.PasswordHasher,
	mediaStorage media.Storage,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		projectRepo: projectRepo,
		txManager:   txManager,
		locker:      locker,
		hasher:      hasher,
		media:       mediaStorage,
		logger:      logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// Create creates a new user account. Unlike registration, the caller picks
// the role; admin-only.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	if !input.Role.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, input.Role)
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

	user := domain.NewUser(input.Name, email, passwordHash, input.Role)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("user created")

	return user, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get user by email")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return user, nil
}

// ListUsersInput contains filter and pagination options.
type ListUsersInput struct {
	Role       *domain.Role
	ActiveOnly bool
	Offset     int
	Limit      int
}

// List retrieves users matching the filter.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*repository.ListResult[*domain.User], error) {
	opts := repository.ListOptions{Offset: input.Offset, Limit: input.Limit}
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}

	filter := repository.UserFilter{ActiveOnly: input.ActiveOnly}
	if input.Role != nil {
		filter.Role = *input.Role
	}

	result, err := s.userRepo.List(ctx, filter, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return result, nil
}

// UpdateUserInput is a partial patch; nil fields are left unchanged.
type UpdateUserInput struct {
	Name  *string
	Email *string
	Role  *domain.Role
}

// Update applies a partial update to a user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to load user for update")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return nil, err
		}
		user.Name = *input.Name
	}

	if input.Email != nil {
		newEmail := domain.NormalizeEmail(*input.Email)
		if newEmail != user.Email {
			if err := validateEmail(newEmail); err != nil {
				return nil, err
			}
			exists, err := s.userRepo.ExistsByEmail(ctx, newEmail)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to check email existence")
				return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}
			if exists {
				return nil, domain.ErrEmailTaken
			}
			user.Email = newEmail
		}
	}

	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, *input.Role)
		}
		// Promoting an assigned user to admin would break the rule that
		// admins never hold projects.
		if *input.Role == domain.RoleAdmin && user.AssignedProjectID != nil {
			return nil, domain.ErrUserAlreadyAssigned
		}
		user.Role = *input.Role
	}

	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user updated")
	return user, nil
}

// Deactivate soft-disables a user. Deactivated users cannot authenticate and
// are excluded from future assignment; an existing assignment is released.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	return s.withUserLock(ctx, id, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			user, err := repos.Users.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					return domain.ErrUserNotFound
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			if err := s.releaseAssignment(ctx, repos, user); err != nil {
				return err
			}

			user.IsActive = false
			user.UpdatedAt = time.Now().UTC()
			if err := repos.Users.Update(ctx, user); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			s.logger.Info().Str("user_id", id).Msg("user deactivated")
			return nil
		})
	})
}

// Delete removes a user permanently. Any assigned project is released in the
// same transaction so the 1:1 invariant survives the removal.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.withUserLock(ctx, id, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			user, err := repos.Users.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					return domain.ErrUserNotFound
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			if err := s.releaseAssignment(ctx, repos, user); err != nil {
				return err
			}

			if err := repos.Users.Delete(ctx, id); err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					return domain.ErrUserNotFound
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			s.logger.Info().Str("user_id", id).Msg("user deleted")
			return nil
		})
	})
}

// UploadProfileImage stores a new profile image and records its URL.
// A previously stored image is deleted best-effort after the swap.
func (s *UserService) UploadProfileImage(ctx context.Context, userID string, content []byte, contentType string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load user for image upload")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	image, err := s.media.Upload(ctx, content, contentType, "profile-images")
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to upload profile image")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	oldImageID := user.ProfileImageID
	user.ProfileImageURL = &image.URL
	user.ProfileImageID = &image.ID
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store profile image reference")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if oldImageID != nil && *oldImageID != image.ID {
		if err := s.media.Delete(ctx, *oldImageID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to delete previous profile image")
		}
	}

	s.logger.Info().Str("user_id", userID).Msg("profile image updated")
	return user, nil
}

// releaseAssignment clears both halves of an existing assignment inside the
// caller's transaction. No-op when the user holds no project.
func (s *UserService) releaseAssignment(ctx context.Context, repos repository.Repositories, user *domain.User) error {
	if user.AssignedProjectID == nil {
		return nil
	}

	project, err := repos.Projects.GetByID(ctx, *user.AssignedProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			// Dangling reference; nothing to release.
			user.AssignedProjectID = nil
			return nil
		}
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	project.AssignedUserID = nil
	project.UpdatedAt = time.Now().UTC()
	if err := repos.Projects.Update(ctx, project); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user.AssignedProjectID = nil
	return nil
}

// withUserLock serializes user removal. When the user holds a project, its
// assignment lock is taken first, in the same project-then-user order the
// assignment paths use, so releaseAssignment never races an assign or status
// change on that project.
func (s *UserService) withUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load user for removal")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	userKey := lock.Keys.UserDeletion(userID)
	if user.AssignedProjectID == nil {
		return s.withLock(ctx, userKey, fn)
	}

	return s.withLock(ctx, lock.Keys.ProjectAssignment(*user.AssignedProjectID), func(ctx context.Context) error {
		return s.withLock(ctx, userKey, fn)
	})
}

func (s *UserService) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	acquired, err := s.locker.AcquireWithRetry(ctx, key, assignLockTTL, assignLockRetries, assignLockRetryDelay)
	if err != nil {
		s.logger.Error().Err(err).Str("lock_key", key).Msg("failed to acquire lock")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if !acquired {
		return fmt.Errorf("%w: resource is being modified concurrently", domain.ErrInternal)
	}
	defer func() {
		if _, err := s.locker.Release(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("lock_key", key).Msg("failed to release lock")
		}
	}()

	return fn(ctx)
}
