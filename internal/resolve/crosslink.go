package resolve

import (
	"sync"

	"scamwatch/internal/domain"
)

// Links is the in-memory cross-link table between token contracts and
// social accounts. Links are additive and non-owning: either side keeps its
// own lifecycle and verdict, the table only answers "what is this key
// linked to".
type Links struct {
	mu         sync.RWMutex
	byContract map[string]map[string]domain.CrossLink // contract -> account -> link
	byAccount  map[string]map[string]domain.CrossLink // account -> contract -> link
}

// NewLinks creates an empty cross-link table.
func NewLinks() *Links {
	return &Links{
		byContract: make(map[string]map[string]domain.CrossLink),
		byAccount:  make(map[string]map[string]domain.CrossLink),
	}
}

// Add records a link in both directions. Re-adding an existing pair keeps
// the original link. Reports whether the pair was new.
func (l *Links) Add(link domain.CrossLink) bool {
	if link.ContractKey == "" || link.AccountKey == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byContract[link.ContractKey][link.AccountKey]; ok {
		return false
	}
	if l.byContract[link.ContractKey] == nil {
		l.byContract[link.ContractKey] = make(map[string]domain.CrossLink)
	}
	if l.byAccount[link.AccountKey] == nil {
		l.byAccount[link.AccountKey] = make(map[string]domain.CrossLink)
	}
	l.byContract[link.ContractKey][link.AccountKey] = link
	l.byAccount[link.AccountKey][link.ContractKey] = link
	return true
}

// Linked returns the keys linked to key, regardless of which side it is.
func (l *Links) Linked(key string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string
	for account := range l.byContract[key] {
		out = append(out, account)
	}
	for contract := range l.byAccount[key] {
		out = append(out, contract)
	}
	return out
}

// Accounts returns the account keys linked to a contract.
func (l *Links) Accounts(contractKey string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.byContract[contractKey]))
	for account := range l.byContract[contractKey] {
		out = append(out, account)
	}
	return out
}

// Contracts returns the contract keys linked to an account.
func (l *Links) Contracts(accountKey string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.byAccount[accountKey]))
	for contract := range l.byAccount[accountKey] {
		out = append(out, contract)
	}
	return out
}
