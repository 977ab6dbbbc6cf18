package accounts

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// Manager is a registry of accounts keyed by label. Each workspace run gets
// its own manager so accounts created inside one run never leak into the
// next.
type Manager struct {
	log logrus.FieldLogger

	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewManager creates an empty account registry.
func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{
		log:      log.WithField("component", "accounts"),
		accounts: make(map[string]*Account),
	}
}

// Create generates a fresh account and registers it under label.
func (m *Manager) Create(label string) (*Account, error) {
	account, err := NewAccount(label)
	if err != nil {
		return nil, err
	}

	if err := m.Add(account); err != nil {
		return nil, err
	}

	return account, nil
}

// Add registers an existing account. The label must be unused.
func (m *Manager) Add(account *Account) error {
	if account.Label() == "" {
		return errors.New("account label is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.Label()]; ok {
		return errors.Wrapf(ErrAccountExists, "%s", account.Label())
	}

	m.accounts[account.Label()] = account

	m.log.WithFields(logrus.Fields{
		"label":   account.Label(),
		"address": account.Address().Hex(),
	}).Debug("Registered account")

	return nil
}

// Get returns the account registered under label.
func (m *Manager) Get(label string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[label]
	if !ok {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s", label)
	}

	return account, nil
}

// MustGet returns the account registered under label and panics if it does
// not exist. Intended for test code where the label is known to be present.
func (m *Manager) MustGet(label string) *Account {
	account, err := m.Get(label)
	if err != nil {
		panic(err)
	}

	return account
}

// List returns all registered accounts ordered by label.
func (m *Manager) List() []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		accounts = append(accounts, account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Label() < accounts[j].Label()
	})

	return accounts
}

// Len returns the number of registered accounts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.accounts)
}

// Clone returns a manager with a copy of the registry. The accounts
// themselves are shared since they are immutable.
func (m *Manager) Clone() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make(map[string]*Account, len(m.accounts))
	for label, account := range m.accounts {
		accounts[label] = account
	}

	return &Manager{
		log:      m.log,
		accounts: accounts,
	}
}
