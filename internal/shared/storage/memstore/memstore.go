// Package memstore 提供内存版 AccountStore
//
// 行为与 mongostore 对齐（含唯一键冲突与 (nil, nil) 语义），
// 用于 service/handler 层测试，不依赖外部数据库。
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"accounts-admin/internal/shared/model"
	"accounts-admin/internal/shared/storage"
)

// Store 内存账户存储
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
}

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{accounts: make(map[string]*model.Account)}
}

// Compile-time interface check
var _ storage.AccountStore = (*Store)(nil)

func clone(a *model.Account) *model.Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func (s *Store) CreateAccount(_ context.Context, acc *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Email == acc.Email {
			return storage.ErrDuplicateEmail
		}
		if existing.Username == acc.Username {
			return storage.ErrDuplicateUsername
		}
	}
	if _, ok := s.accounts[acc.ID]; ok {
		return storage.ErrDuplicate
	}
	s.accounts[acc.ID] = clone(acc)
	return nil
}

func (s *Store) FindExisting(_ context.Context, email, username string) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emailTaken, usernameTaken bool
	for _, a := range s.accounts {
		if a.Email == email {
			emailTaken = true
		}
		if a.Username == username {
			usernameTaken = true
		}
	}
	return emailTaken, usernameTaken, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.accounts[id]), nil
}

func (s *Store) UpdateAccount(_ context.Context, id string, fields storage.UpdatableFields) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	// 与 mongostore 的唯一索引行为对齐
	if fields.Username != nil {
		for _, other := range s.accounts {
			if other.ID != id && other.Username == *fields.Username {
				return nil, storage.ErrDuplicateUsername
			}
		}
	}
	if fields.FirstName != nil {
		a.FirstName = *fields.FirstName
	}
	if fields.LastName != nil {
		a.LastName = *fields.LastName
	}
	if fields.Username != nil {
		a.Username = *fields.Username
	}
	a.UpdatedAt = time.Now()
	return clone(a), nil
}

func (s *Store) UpdateAccountPassword(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(a *model.Account) {
		a.PasswordHash = passwordHash
	})
}

func (s *Store) SetRefreshToken(_ context.Context, id, token string) error {
	return s.mutate(id, func(a *model.Account) {
		a.RefreshToken = token
	})
}

func (s *Store) ClearRefreshToken(_ context.Context, id string) error {
	return s.mutate(id, func(a *model.Account) {
		a.RefreshToken = ""
	})
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(a *model.Account) {
		t := at
		a.LastLogin = &t
	})
}

func (s *Store) SoftDeleteAccount(_ context.Context, id string) error {
	return s.mutate(id, func(a *model.Account) {
		a.IsActive = false
		a.RefreshToken = ""
	})
}

func (s *Store) ListAccounts(_ context.Context, filter storage.ListFilter, page, pageSize int) ([]*model.Account, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Account
	for _, a := range s.accounts {
		if filter.Role != nil && a.Role != *filter.Role {
			continue
		}
		if filter.IsActive != nil && a.IsActive != *filter.IsActive {
			continue
		}
		matched = append(matched, clone(a))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []*model.Account{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *Store) Close() error {
	return nil
}

// mutate 在写锁内修改账户并维护 updated_at
func (s *Store) mutate(id string, fn func(*model.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = time.Now()
	return nil
}
