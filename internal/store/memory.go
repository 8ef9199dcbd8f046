package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice_eval/internal/models"
)

// MemoryStore 内存存储，未配置数据库时使用，进程退出后数据丢失
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]models.User
	emails    map[string]string
	practices map[string][]models.Practice
	now       func() time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]models.User),
		emails:    make(map[string]string),
		practices: make(map[string][]models.Practice),
		now:       time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = normalizeEmail(u.Email)
	if _, ok := m.emails[u.Email]; ok {
		return models.ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	m.users[u.ID] = *u
	m.emails[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[normalizeEmail(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	m.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// CreatePractice 保存练习记录
func (m *MemoryStore) CreatePractice(ctx context.Context, p *models.Practice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.practices[p.UserID] = append(m.practices[p.UserID], *p)
	return nil
}

// ListPractices 按条件分页查询练习记录
func (m *MemoryStore) ListPractices(ctx context.Context, userID string, filter models.PracticeFilter) ([]models.Practice, int64, error) {
	filter = normalizeFilter(filter)
	all, _ := m.ListAllPractices(ctx, userID)

	matched := all[:0]
	for _, p := range all {
		if filter.Type.Valid() && p.Type != filter.Type {
			continue
		}
		matched = append(matched, p)
	}

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []models.Practice{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

// ListAllPractices 查询用户全部练习记录，最新的在前
func (m *MemoryStore) ListAllPractices(ctx context.Context, userID string) ([]models.Practice, error) {
	m.mu.RLock()
	list := make([]models.Practice, len(m.practices[userID]))
	copy(list, m.practices[userID])
	m.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// Practices 返回满足 models.PracticeStore 的视图
func (m *MemoryStore) Practices() models.PracticeStore {
	return memoryPractices{m}
}

type memoryPractices struct {
	m *MemoryStore
}

func (p memoryPractices) Create(ctx context.Context, practice *models.Practice) error {
	return p.m.CreatePractice(ctx, practice)
}

func (p memoryPractices) List(ctx context.Context, userID string, filter models.PracticeFilter) ([]models.Practice, int64, error) {
	return p.m.ListPractices(ctx, userID, filter)
}

func (p memoryPractices) ListAll(ctx context.Context, userID string) ([]models.Practice, error) {
	return p.m.ListAllPractices(ctx, userID)
}
