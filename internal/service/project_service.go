package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/lock"
	"github.com/prn-tf/darius-projects/internal/metrics"
	"github.com/prn-tf/darius-projects/internal/notify"
	"github.com/prn-tf/darius-projects/internal/repository"
)

// Lock parameters for assignment-critical sections.
const (
	assignLockTTL        = 10 * time.Second
	assignLockRetries    = 3
	assignLockRetryDelay = 100 * time.Millisecond
)

// statsCacheTTL bounds how stale the statistics endpoint may be.
const statsCacheTTL = 30 * time.Second

// ProjectService handles project lifecycle and assignment operations.
// Assignment mutations run under per-project and per-user locks and inside a
// repository transaction; both sides of the user/project 1:1 relation are
// always updated together.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	txManager   repository.TxManager
	locker      lock.Locker
	notifier    notify.Notifier
	cache       repository.Cache
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewProjectService creates a new ProjectService. Metrics may be nil.
func NewProjectService(
	projectRepo repository.ProjectRepository,
	userRepo repository.UserRepository,
	txManager repository.TxManager,
	locker lock.Locker,
	notifier notify.Notifier,
	cache repository.Cache,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
		txManager:   txManager,
		locker:      locker,
		notifier:    notifier,
		cache:       cache,
		metrics:     m,
		logger:      logger.With().Str("service", "project").Logger(),
	}
}

// CreateProjectInput contains the data needed to create a project.
type CreateProjectInput struct {
	Name        string
	Description *string
	EndDate     time.Time

	// AssignedUserID optionally assigns a user at creation, subject to the
	// same preconditions as Assign.
	AssignedUserID *string
}

// Create creates a new project in NOT_STARTED.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*domain.Project, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := validateEndDate(input.EndDate, time.Now().UTC()); err != nil {
		return nil, err
	}

	project := domain.NewProject(input.Name, input.Description, input.EndDate)

	if input.AssignedUserID == nil {
		if err := s.projectRepo.Create(ctx, project); err != nil {
			s.logger.Error().Err(err).Msg("failed to create project")
			return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}
		s.logger.Info().Str("project_id", project.ID).Msg("project created")
		return project, nil
	}

	// Creation with an initial assignee takes the same locks and checks as
	// a normal assignment.
	userID := *input.AssignedUserID
	err := s.withAssignmentLocks(ctx, project.ID, userID, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			user, err := s.assignableUser(ctx, repos, userID)
			if err != nil {
				return err
			}

			project.AssignedUserID = &user.ID
			if err := repos.Projects.Create(ctx, project); err != nil {
				if errors.Is(err, domain.ErrUserAlreadyAssigned) {
					return domain.ErrUserAlreadyAssigned
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}
			return nil
		})
	})
	if err != nil {
		s.recordAssignment("create_with_assignee", "failure")
		return nil, err
	}

	s.recordAssignment("create_with_assignee", "success")
	s.notifyAssigned(ctx, userID, project)

	s.logger.Info().
		Str("project_id", project.ID).
		Str("user_id", userID).
		Msg("project created with assignee")

	return project, nil
}

// Get retrieves a project by ID.
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		s.logger.Error().Err(err).Str("project_id", id).Msg("failed to get project")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return project, nil
}

// GetByAssignedUser retrieves the project assigned to a user.
func (s *ProjectService) GetByAssignedUser(ctx context.Context, userID string) (*domain.Project, error) {
	project, err := s.projectRepo.GetByAssignedUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to get assigned project")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return project, nil
}

// ListProjectsInput contains filter and pagination options.
type ListProjectsInput struct {
	Status         *domain.ProjectStatus
	AssignedUserID *string
	Unassigned     bool
	Overdue        bool
	Search         string
	Offset         int
	Limit          int
}

// List retrieves projects matching the filter.
func (s *ProjectService) List(ctx context.Context, input ListProjectsInput) (*repository.ListResult[*domain.Project], error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrInvalidTransition, *input.Status)
	}

	opts := repository.ListOptions{Offset: input.Offset, Limit: input.Limit}
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}

	filter := repository.ProjectFilter{
		Unassigned: input.Unassigned,
		Overdue:    input.Overdue,
		Search:     input.Search,
	}
	if input.Status != nil {
		filter.Status = *input.Status
	}
	if input.AssignedUserID != nil {
		filter.AssignedUserID = *input.AssignedUserID
	}

	result, err := s.projectRepo.List(ctx, filter, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list projects")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return result, nil
}

// UpdateProjectInput is a partial patch; nil fields are left unchanged.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	EndDate     *time.Time
	Status      *domain.ProjectStatus
}

// Update applies a partial update. Status changes go through the transition
// table; assignment changes go through Assign and Unassign.
func (s *ProjectService) Update(ctx context.Context, id string, input UpdateProjectInput) (*domain.Project, error) {
	if input.Status != nil {
		// Route through the locked status path so CompletedAt bookkeeping
		// and notifications stay in one place.
		if _, err := s.UpdateStatus(ctx, id, *input.Status); err != nil {
			return nil, err
		}
	}

	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		s.logger.Error().Err(err).Str("project_id", id).Msg("failed to load project for update")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return nil, err
		}
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = input.Description
	}
	if input.EndDate != nil {
		if err := validateEndDate(*input.EndDate, time.Now().UTC()); err != nil {
			return nil, err
		}
		project.EndDate = *input.EndDate
	}

	project.UpdatedAt = time.Now().UTC()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		s.logger.Error().Err(err).Str("project_id", id).Msg("failed to update project")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Str("project_id", id).Msg("project updated")
	return project, nil
}

// Assign assigns a project to a user and moves it to IN_PROGRESS.
// Preconditions: project exists and is unassigned; user exists, is active, is
// not an admin, and holds no project. Both halves of the relation are written
// in one transaction.
func (s *ProjectService) Assign(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	var project *domain.Project

	err := s.withAssignmentLocks(ctx, projectID, userID, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			project, err = repos.Projects.GetByID(ctx, projectID)
			if err != nil {
				if errors.Is(err, domain.ErrProjectNotFound) {
					return domain.ErrProjectNotFound
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			if project.IsAssigned() {
				return domain.ErrProjectAlreadyAssigned
			}

			user, err := s.assignableUser(ctx, repos, userID)
			if err != nil {
				return err
			}

			project.AssignedUserID = &user.ID
			project.Status = domain.StatusInProgress
			project.UpdatedAt = time.Now().UTC()
			if err := repos.Projects.Update(ctx, project); err != nil {
				if errors.Is(err, domain.ErrUserAlreadyAssigned) {
					return domain.ErrUserAlreadyAssigned
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			return nil
		})
	})
	if err != nil {
		s.recordAssignment("assign", "failure")
		return nil, err
	}

	s.recordAssignment("assign", "success")
	s.notifyAssigned(ctx, userID, project)

	s.logger.Info().
		Str("project_id", projectID).
		Str("user_id", userID).
		Msg("project assigned")

	return project, nil
}

// Unassign releases a project's assignment. The project must currently be
// assigned.
func (s *ProjectService) Unassign(ctx context.Context, projectID string) (*domain.Project, error) {
	var project *domain.Project

	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			project, err = repos.Projects.GetByID(ctx, projectID)
			if err != nil {
				if errors.Is(err, domain.ErrProjectNotFound) {
					return domain.ErrProjectNotFound
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			if !project.IsAssigned() {
				return domain.ErrProjectNotAssigned
			}

			project.AssignedUserID = nil
			project.UpdatedAt = time.Now().UTC()
			if err := repos.Projects.Update(ctx, project); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			return nil
		})
	})
	if err != nil {
		s.recordAssignment("unassign", "failure")
		return nil, err
	}

	s.recordAssignment("unassign", "success")
	s.logger.Info().Str("project_id", projectID).Msg("project unassigned")
	return project, nil
}

// UpdateStatus moves a project through the status state machine. Transitions
// outside the table are rejected; entering COMPLETED records CompletedAt and
// notifies the assigned user.
func (s *ProjectService) UpdateStatus(ctx context.Context, projectID string, next domain.ProjectStatus) (*domain.Project, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrInvalidTransition, next)
	}

	var (
		project  *domain.Project
		previous domain.ProjectStatus
	)

	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			project, err = repos.Projects.GetByID(ctx, projectID)
			if err != nil {
				if errors.Is(err, domain.ErrProjectNotFound) {
					return domain.ErrProjectNotFound
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			previous = project.Status
			if !previous.CanTransitionTo(next) {
				return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, previous, next)
			}

			project.Status = next
			now := time.Now().UTC()
			if next == domain.StatusCompleted {
				project.CompletedAt = &now
			}
			project.UpdatedAt = now

			if err := repos.Projects.Update(ctx, project); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(previous), string(next))
	}

	if next == domain.StatusCompleted && project.AssignedUserID != nil {
		s.notifyCompleted(ctx, *project.AssignedUserID, project)
	}

	s.logger.Info().
		Str("project_id", projectID).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("project status changed")

	return project, nil
}

// Delete removes a project. An existing assignment is released in the same
// transaction.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			_, err := repos.Projects.GetByID(ctx, projectID)
			if err != nil {
				if errors.Is(err, domain.ErrProjectNotFound) {
					return domain.ErrProjectNotFound
				}
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			if err := repos.Projects.Delete(ctx, projectID); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInternal, err)
			}

			return nil
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("project_id", projectID).Msg("project deleted")
	return nil
}

// Statistics returns aggregate project counts. Results are cached briefly.
func (s *ProjectService) Statistics(ctx context.Context) (*domain.ProjectStats, error) {
	var key repository.CacheKey

	if cached, err := s.cache.Get(ctx, key.ProjectStats()); err == nil {
		var stats domain.ProjectStats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
	}

	stats, err := s.projectRepo.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute project statistics")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, key.ProjectStats(), data, statsCacheTTL); err != nil {
			s.logger.Debug().Err(err).Msg("failed to cache project statistics")
		}
	}

	return stats, nil
}

// ScanOverdue finds assigned, non-terminal projects past their end date and
// enqueues overdue notifications. Invoked periodically by the worker.
func (s *ProjectService) ScanOverdue(ctx context.Context) (int, error) {
	result, err := s.projectRepo.List(ctx, repository.ProjectFilter{Overdue: true}, repository.ListOptions{Limit: 100})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list overdue projects")
		return 0, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	notified := 0
	for _, project := range result.Items {
		if project.AssignedUserID == nil {
			continue
		}

		user, err := s.userRepo.GetByID(ctx, *project.AssignedUserID)
		if err != nil {
			s.logger.Warn().Err(err).Str("project_id", project.ID).Msg("failed to load assignee for overdue notice")
			continue
		}

		if err := s.notifier.ProjectOverdue(ctx, user.Email, user.Name, project.Name, project.EndDate); err != nil {
			s.logger.Warn().Err(err).Str("project_id", project.ID).Msg("failed to enqueue overdue notice")
			continue
		}
		notified++
	}

	s.logger.Info().Int("notified", notified).Int64("overdue", result.Total).Msg("overdue scan finished")
	return notified, nil
}

// assignableUser loads a user and checks every assignment precondition.
func (s *ProjectService) assignableUser(ctx context.Context, repos repository.Repositories, userID string) (*domain.User, error) {
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !user.IsActive {
		return nil, domain.ErrCannotAssignInactive
	}
	if user.Role == domain.RoleAdmin {
		return nil, domain.ErrCannotAssignAdmin
	}
	if user.AssignedProjectID != nil {
		return nil, domain.ErrUserAlreadyAssigned
	}

	return user, nil
}

func (s *ProjectService) notifyAssigned(ctx context.Context, userID string, project *domain.Project) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load user for assignment notice")
		return
	}
	if err := s.notifier.ProjectAssigned(ctx, user.Email, user.Name, project.Name, project.EndDate); err != nil {
		s.logger.Warn().Err(err).Str("project_id", project.ID).Msg("failed to enqueue assignment notice")
	}
}

func (s *ProjectService) notifyCompleted(ctx context.Context, userID string, project *domain.Project) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load user for completion notice")
		return
	}
	if err := s.notifier.ProjectCompleted(ctx, user.Email, user.Name, project.Name); err != nil {
		s.logger.Warn().Err(err).Str("project_id", project.ID).Msg("failed to enqueue completion notice")
	}
}

func (s *ProjectService) recordAssignment(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAssignment(operation, outcome)
	}
}

// withProjectLock serializes mutations of a single project.
func (s *ProjectService) withProjectLock(ctx context.Context, projectID string, fn func(ctx context.Context) error) error {
	key := lock.Keys.ProjectAssignment(projectID)

	acquired, err := s.locker.AcquireWithRetry(ctx, key, assignLockTTL, assignLockRetries, assignLockRetryDelay)
	if err != nil {
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("failed to acquire project lock")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if !acquired {
		return fmt.Errorf("%w: project is being modified concurrently", domain.ErrInternal)
	}
	defer func() {
		if _, err := s.locker.Release(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("project_id", projectID).Msg("failed to release project lock")
		}
	}()

	return fn(ctx)
}

// withAssignmentLocks takes the project lock and then the user lock, always
// in that order so concurrent assignments cannot deadlock.
func (s *ProjectService) withAssignmentLocks(ctx context.Context, projectID, userID string, fn func(ctx context.Context) error) error {
	return s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		key := lock.Keys.UserAssignment(userID)

		acquired, err := s.locker.AcquireWithRetry(ctx, key, assignLockTTL, assignLockRetries, assignLockRetryDelay)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to acquire user lock")
			return fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}
		if !acquired {
			return fmt.Errorf("%w: user is being modified concurrently", domain.ErrInternal)
		}
		defer func() {
			if _, err := s.locker.Release(ctx, key); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to release user lock")
			}
		}()

		return fn(ctx)
	})
}
