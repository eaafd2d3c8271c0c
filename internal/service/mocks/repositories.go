package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.Link
	seq   int64

	// ForceCodeExists makes every Create fail with ErrCodeExists,
	// simulating a fully collided code space
	ForceCodeExists bool
	// FailWith, when set, is returned by every operation,
	// simulating a store outage
	FailWith error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.Link),
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	if m.ForceCodeExists {
		return repository.ErrCodeExists
	}
	if _, exists := m.links[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	stored := *link
	m.links[link.ShortCode] = &stored
	return nil
}

func (m *MockLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}

	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, code string, by int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return 0, m.FailWith
	}
	link, exists := m.links[code]
	if !exists {
		return 0, repository.ErrLinkNotFound
	}

	link.Clicks += by
	return link.Clicks, nil
}

func (m *MockLinkRepository) ScanExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var codes []string
	for code, link := range m.links {
		if !link.ExpiresAt.After(before) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	if len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return false, m.FailWith
	}
	if _, exists := m.links[code]; !exists {
		return false, nil
	}
	delete(m.links, code)
	return true, nil
}

func (m *MockLinkRepository) NextSequence(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return 0, m.FailWith
	}
	m.seq++
	return m.seq, nil
}

// Expire rewinds a stored link's expiry, so tests can age records
// without sleeping
func (m *MockLinkRepository) Expire(code string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, exists := m.links[code]; exists {
		link.ExpiresAt = at
	}
}

// Len returns the number of stored links
func (m *MockLinkRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.seq = 0
	m.ForceCodeExists = false
	m.FailWith = nil
}
