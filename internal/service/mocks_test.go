package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/lock"
	"github.com/prn-tf/darius-projects/internal/repository"
)

// mockUserRepo is a map-backed implementation of repository.UserRepository.
type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	createErr error
	getErr    error
	updateErr error
	listErr   error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*domain.User)}
}

func (m *mockUserRepo) add(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLogin = &at
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, filter repository.UserFilter, opts repository.ListOptions) (*repository.ListResult[*domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	var matched []*domain.User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		matched = append(matched, u)
	}

	total := int64(len(matched))
	if opts.Offset < len(matched) {
		matched = matched[opts.Offset:]
	} else {
		matched = nil
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	return &repository.ListResult[*domain.User]{
		Items:  matched,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, m.getErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

// mockProjectRepo is a map-backed implementation of
// repository.ProjectRepository. Create and Update enforce the same one
// assignee per user rule the real schema enforces with a partial unique
// index.
type mockProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*domain.Project

	createErr error
	getErr    error
	updateErr error
	statsErr  error
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: make(map[string]*domain.Project)}
}

func (m *mockProjectRepo) add(project *domain.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project
}

func (m *mockProjectRepo) assigneeTaken(project *domain.Project) bool {
	if project.AssignedUserID == nil {
		return false
	}
	for _, p := range m.projects {
		if p.ID == project.ID || p.AssignedUserID == nil {
			continue
		}
		if *p.AssignedUserID == *project.AssignedUserID {
			return true
		}
	}
	return false
}

func (m *mockProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if m.assigneeTaken(project) {
		return domain.ErrUserAlreadyAssigned
	}
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if p, ok := m.projects[id]; ok {
		// A copy, so edits the caller abandons before Update never land in
		// the store. A real repository behaves the same way inside a
		// rolled-back transaction.
		copied := *p
		return &copied, nil
	}
	return nil, domain.ErrProjectNotFound
}

func (m *mockProjectRepo) GetByAssignedUser(ctx context.Context, userID string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, p := range m.projects {
		if p.AssignedUserID != nil && *p.AssignedUserID == userID {
			return p, nil
		}
	}
	return nil, domain.ErrProjectNotFound
}

func (m *mockProjectRepo) Update(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.projects[project.ID]; !ok {
		return domain.ErrProjectNotFound
	}
	if m.assigneeTaken(project) {
		return domain.ErrUserAlreadyAssigned
	}
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) List(ctx context.Context, filter repository.ProjectFilter, opts repository.ListOptions) (*repository.ListResult[*domain.Project], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var matched []*domain.Project
	for _, p := range m.projects {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.AssignedUserID != "" && (p.AssignedUserID == nil || *p.AssignedUserID != filter.AssignedUserID) {
			continue
		}
		if filter.Unassigned && p.AssignedUserID != nil {
			continue
		}
		if filter.Overdue && !p.IsOverdue(now) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, p)
	}

	total := int64(len(matched))
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	return &repository.ListResult[*domain.Project]{
		Items:  matched,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *mockProjectRepo) Stats(ctx context.Context) (*domain.ProjectStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return nil, m.statsErr
	}

	now := time.Now().UTC()
	stats := &domain.ProjectStats{}
	for _, p := range m.projects {
		stats.Total++
		switch p.Status {
		case domain.StatusNotStarted:
			stats.NotStarted++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusCancelled:
			stats.Cancelled++
		}
		if p.AssignedUserID == nil {
			stats.Unassigned++
		}
		if p.IsOverdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

var _ repository.ProjectRepository = (*mockProjectRepo)(nil)

// mockTxManager runs the function directly against the bundled mocks. The
// rollback semantics of the real managers are not simulated; tests assert on
// returned errors instead.
type mockTxManager struct {
	repos repository.Repositories
	err   error
}

func newMockTxManager(users *mockUserRepo, projects *mockProjectRepo) *mockTxManager {
	return &mockTxManager{
		repos: repository.Repositories{Users: users, Projects: projects},
	}
}

func (m *mockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx, m.repos)
}

var _ repository.TxManager = (*mockTxManager)(nil)

// mockCache is a map-backed repository.Cache without expiry.
type mockCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{values: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return nil, repository.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok, nil
}

var _ repository.Cache = (*mockCache)(nil)

// recordingLocker delegates to an in-memory locker and records every key it
// acquires, in order.
type recordingLocker struct {
	lock.Locker
	mu       sync.Mutex
	acquired []string
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{Locker: lock.NewMemoryLocker()}
}

func (l *recordingLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	ok, err := l.Locker.AcquireWithRetry(ctx, key, ttl, maxRetries, retryDelay)
	if ok {
		l.mu.Lock()
		l.acquired = append(l.acquired, key)
		l.mu.Unlock()
	}
	return ok, err
}

func (l *recordingLocker) keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.acquired...)
}

var _ lock.Locker = (*recordingLocker)(nil)

// recordingNotifier counts notifications per kind.
type recordingNotifier struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{counts: make(map[string]int)}
}

func (n *recordingNotifier) record(kind string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.counts[kind]++
	return nil
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[kind]
}

func (n *recordingNotifier) Welcome(ctx context.Context, email, name string) error {
	return n.record("welcome")
}

func (n *recordingNotifier) PasswordReset(ctx context.Context, email, name, resetToken string) error {
	return n.record("password_reset")
}

func (n *recordingNotifier) ProjectAssigned(ctx context.Context, email, name, projectName string, endDate time.Time) error {
	return n.record("project_assigned")
}

func (n *recordingNotifier) ProjectCompleted(ctx context.Context, email, name, projectName string) error {
	return n.record("project_completed")
}

func (n *recordingNotifier) ProjectOverdue(ctx context.Context, email, name, projectName string, endDate time.Time) error {
	return n.record("project_overdue")
}
