package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/leadcrm/internal/domain"
)

type memoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*UserRecord
	byEmail map[string]string
}

// NewMemoryUserRepository returns an in-process UserRepository, used when no DSN is configured.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:    make(map[string]*UserRecord),
		byEmail: make(map[string]string),
	}
}

func (r *memoryUserRepository) Create(_ context.Context, user *UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicate
	}
	r.byID[user.ID] = cloneRecord(user)
	r.byEmail[email] = user.ID
	return nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return ErrNotFound
	}
	rec := cloneRecord(user)
	rec.Email = existing.Email
	r.byID[user.ID] = rec
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(r.byID[id]), nil
}

func (r *memoryUserRepository) List(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := []domain.User{}
	for _, rec := range r.byID {
		if role != "" && rec.Role != role {
			continue
		}
		users = append(users, *rec.User.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func cloneRecord(rec *UserRecord) *UserRecord {
	return &UserRecord{User: *rec.User.Clone(), PasswordHash: rec.PasswordHash}
}

type memoryLeadRepository struct {
	mu    sync.RWMutex
	leads map[string]*domain.Lead
}

// NewMemoryLeadRepository returns an in-process LeadRepository.
func NewMemoryLeadRepository() LeadRepository {
	return &memoryLeadRepository{leads: make(map[string]*domain.Lead)}
}

func (r *memoryLeadRepository) Create(_ context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.leads[lead.ID]; exists {
		return ErrDuplicate
	}
	r.leads[lead.ID] = lead.Clone()
	return nil
}

func (r *memoryLeadRepository) Update(_ context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[lead.ID]; !ok {
		return ErrNotFound
	}
	r.leads[lead.ID] = lead.Clone()
	return nil
}

func (r *memoryLeadRepository) GetByID(_ context.Context, id string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return lead.Clone(), nil
}

func (r *memoryLeadRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[id]; !ok {
		return ErrNotFound
	}
	delete(r.leads, id)
	return nil
}

func (r *memoryLeadRepository) List(_ context.Context, filter domain.LeadFilters) ([]domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	leads := []domain.Lead{}
	for _, lead := range r.leads {
		if filter.Matches(lead) {
			leads = append(leads, *lead.Clone())
		}
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	return leads, nil
}
