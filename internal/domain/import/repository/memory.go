package repository

import (
	"context"
	"sync"
	"time"
)

type sourceHash struct {
	sourceID int64
	hash     string
}

// MemoryImportRepository keeps imports in process memory. It backs offline
// tooling where no database is available.
type MemoryImportRepository struct {
	mu           sync.RWMutex
	transactions []Transaction
	hashes       map[sourceHash]struct{}
	mappings     map[string]BankMapping
	nextID       int64
}

// NewMemoryImportRepository creates an empty in-memory repository
func NewMemoryImportRepository() *MemoryImportRepository {
	return &MemoryImportRepository{
		hashes:   make(map[sourceHash]struct{}),
		mappings: make(map[string]BankMapping),
	}
}

func (r *MemoryImportRepository) ExistsByHash(_ context.Context, sourceID int64, hash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hashes[sourceHash{sourceID, hash}]
	return ok, nil
}

// InsertTransactions skips rows whose hash is already stored for the source.
func (r *MemoryImportRepository) InsertTransactions(_ context.Context, txs []Transaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, tx := range txs {
		key := sourceHash{tx.SourceID, tx.Hash}
		if _, ok := r.hashes[key]; ok {
			continue
		}
		r.hashes[key] = struct{}{}
		r.transactions = append(r.transactions, tx)
		inserted++
	}
	return inserted, nil
}

func (r *MemoryImportRepository) GetMappingByFingerprint(_ context.Context, fingerprint string) (*BankMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[fingerprint]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MemoryImportRepository) SaveMapping(_ context.Context, m *BankMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.mappings[m.Fingerprint]; ok {
		m.ID, m.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		r.nextID++
		m.ID, m.CreatedAt = r.nextID, now
	}
	m.UpdatedAt = now
	r.mappings[m.Fingerprint] = *m
	return nil
}

// Transactions returns a copy of the stored transactions in insertion order.
func (r *MemoryImportRepository) Transactions() []Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Transaction(nil), r.transactions...)
}
