package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"electa/internal/account/models"
	id "electa/pkg/domain"
	"electa/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the account does not exist
// - ErrConflict when an email or wallet address is already taken
// - ErrInvalidState when a mutation would break the account invariants
// - validate callback errors are returned unchanged
//
// InMemoryStore keeps accounts in a map for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[id.AccountID]*models.Account)}
}

func (s *InMemoryStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account id taken: %w", sentinel.ErrConflict)
	}
	if err := s.checkUniqueLocked(account); err != nil {
		return err
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[accountID]; ok {
		return a.Clone(), nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return a.Clone(), nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

// ListAll returns accounts oldest first, optionally restricted to roles.
func (s *InMemoryStore) ListAll(_ context.Context, roles ...models.Role) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if len(roles) > 0 && !slices.Contains(roles, a.Role) {
			continue
		}
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	delete(s.accounts, accountID)
	return nil
}

// Execute validates and mutates one account under the store lock. The
// mutation is applied as a single write; readers never see half of it.
func (s *InMemoryStore) Execute(
	_ context.Context,
	accountID id.AccountID,
	validate func(*models.Account) error,
	mutate func(*models.Account),
) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	working := current.Clone()
	if validate != nil {
		if err := validate(working); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(working)
	}
	if err := working.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	if err := s.checkUniqueLocked(working); err != nil {
		return nil, err
	}
	working.Version = current.Version + 1
	s.accounts[accountID] = working
	return working.Clone(), nil
}

func (s *InMemoryStore) checkUniqueLocked(account *models.Account) error {
	for _, other := range s.accounts {
		if other.ID == account.ID {
			continue
		}
		if other.Email == account.Email {
			return fmt.Errorf("%s: %w", ConstraintEmail, sentinel.ErrConflict)
		}
		if other.WalletAddress.Equal(account.WalletAddress) {
			return fmt.Errorf("%s: %w", ConstraintWallet, sentinel.ErrConflict)
		}
	}
	return nil
}
