package state

import "fmt"

// AddTransaction appends a transaction to history and saves the state.
func (m *Manager) AddTransaction(tx Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Current.History = append(m.Current.History, tx)
	return m.saveLocked()
}

// Transactions returns a copy of the history, newest last.
func (m *Manager) Transactions() []Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]Transaction, len(m.Current.History))
	copy(history, m.Current.History)
	return history
}

// Transaction finds a transaction by ID.
func (m *Manager) Transaction(id string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tx := range m.Current.History {
		if tx.ID == id {
			return tx, nil
		}
	}
	return Transaction{}, fmt.Errorf("transaction not found: %s", id)
}

// LastTransaction returns the most recent transaction, if any.
func (m *Manager) LastTransaction() (Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.Current.History) == 0 {
		return Transaction{}, false
	}
	return m.Current.History[len(m.Current.History)-1], true
}
